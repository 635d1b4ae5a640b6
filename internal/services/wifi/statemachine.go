package wifi

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is how often the state machine evaluates the
	// hotspot situation.
	DefaultPollInterval = 10 * time.Second
	// DefaultGracePeriod is how long after entering CONNECTED a "not
	// connected" poll result is ignored, absorbing transient flaps.
	DefaultGracePeriod = 5 * time.Second
	// DefaultDebounceDelay is the wait between deciding to attempt a
	// hotspot connection and actually firing it.
	DefaultDebounceDelay = 5 * time.Second
)

// StateMachineConfig carries the state machine tunables.
type StateMachineConfig struct {
	PollInterval  time.Duration
	GracePeriod   time.Duration
	DebounceDelay time.Duration
	// OnboardingComplete gates driving-mode behavior: until onboarding is
	// done, driving mode still hunts for the hotspot.
	OnboardingComplete bool
}

// StateMachine is the top-level orchestrator. It owns the poll loop, the
// driving/stopped mode concept and the authoritative State. It implements
// StatePort for the managers below it.
type StateMachine struct {
	mu          sync.Mutex
	scanner     *NetworkScanner
	connections *ConnectionManager
	hotspot     *HotspotManager

	state       State
	connectedAt time.Time
	clientCount int

	pollInterval       time.Duration
	gracePeriod        time.Duration
	debounceDelay      time.Duration
	onboardingComplete bool

	running      bool
	stopChan     chan struct{}
	pollInFlight bool

	debounceTimer *time.Timer

	stateCallbacks map[int]func(State)
	nextCallbackID int

	unsubscribeConnChange func()
}

// NewStateMachine creates the state machine. The hotspot manager is bound
// afterwards via BindHotspotManager since it needs this machine as its
// StatePort.
func NewStateMachine(scanner *NetworkScanner, connections *ConnectionManager, cfg StateMachineConfig) *StateMachine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	return &StateMachine{
		scanner:            scanner,
		connections:        connections,
		state:              StateIdle,
		pollInterval:       cfg.PollInterval,
		gracePeriod:        cfg.GracePeriod,
		debounceDelay:      cfg.DebounceDelay,
		onboardingComplete: cfg.OnboardingComplete,
		stateCallbacks:     make(map[int]func(State)),
	}
}

// BindHotspotManager attaches the hotspot manager after construction.
func (m *StateMachine) BindHotspotManager(h *HotspotManager) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotspot = h
}

// State implements StatePort.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetState returns the current state.
func (m *StateMachine) GetState() State {
	return m.State()
}

// SetState transitions to the target state and notifies subscribers. A
// no-op when the target equals the current state, so subscribers never see
// duplicate notifications. Entering CONNECTED records the timestamp used
// for grace-period arithmetic and re-arms the connected-screen flag;
// leaving CONNECTED clears the timestamp.
func (m *StateMachine) SetState(next State) {
	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = next

	if next == StateConnected {
		m.connectedAt = time.Now()
	} else if prev == StateConnected {
		m.connectedAt = time.Time{}
	}

	hotspot := m.hotspot
	callbacks := m.snapshotCallbacksLocked()
	m.mu.Unlock()

	if next == StateConnected && hotspot != nil {
		hotspot.ResetConnectedScreen()
	}

	log.Printf("WiFi state: %s -> %s", prev, next)
	for _, cb := range callbacks {
		invokeStateCallback(cb, next)
	}
}

func (m *StateMachine) snapshotCallbacksLocked() []func(State) {
	callbacks := make([]func(State), 0, len(m.stateCallbacks))
	for _, cb := range m.stateCallbacks {
		callbacks = append(callbacks, cb)
	}
	return callbacks
}

// invokeStateCallback isolates one panicking subscriber from the rest.
func invokeStateCallback(cb func(State), state State) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("State-change callback panicked: %v", r)
		}
	}()
	cb(state)
}

// OnStateChange registers a state-change subscriber and returns an
// unsubscribe closure.
func (m *StateMachine) OnStateChange(cb func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextCallbackID++
	id := m.nextCallbackID
	m.stateCallbacks[id] = cb

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.stateCallbacks, id)
	}
}

// OnConnectionChange registers a connection-flip subscriber on the
// underlying connection manager.
func (m *StateMachine) OnConnectionChange(cb func(connected bool)) func() {
	return m.connections.OnConnectionChange(cb)
}

// Initialize starts the connection monitor and the hotspot poll loop.
func (m *StateMachine) Initialize() error {
	m.mu.Lock()
	if m.hotspot == nil {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.state = StateIdle
	m.stopChan = make(chan struct{})
	stop := m.stopChan
	m.mu.Unlock()

	m.unsubscribeConnChange = m.connections.OnConnectionChange(func(connected bool) {
		log.Printf("Connection changed: connected=%v", connected)
	})
	m.connections.StartConnectionMonitoring()

	go m.pollLoop(stop)
	return nil
}

// Dispose stops both timers, aborts any in-flight attempt, clears all
// subscriber lists and resets the state to IDLE.
func (m *StateMachine) Dispose() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
		m.debounceTimer = nil
	}
	hotspot := m.hotspot
	unsubscribe := m.unsubscribeConnChange
	m.unsubscribeConnChange = nil
	m.stateCallbacks = make(map[int]func(State))
	m.state = StateIdle
	m.connectedAt = time.Time{}
	m.mu.Unlock()

	if hotspot != nil {
		hotspot.AbortConnectionAttempt()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	m.connections.StopConnectionMonitoring()
	m.connections.clearCallbacks()
}

// GetMode returns STOPPED when at least one UI client is attached, else
// DRIVING.
func (m *StateMachine) GetMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modeLocked()
}

func (m *StateMachine) modeLocked() Mode {
	if m.clientCount > 0 {
		return ModeStopped
	}
	return ModeDriving
}

// SetWebSocketClientCount updates the attached UI client count. A 0 to >0
// transition triggers an immediate poll tick; a >0 to 0 transition aborts
// any in-flight hotspot attempt and resets a pending hotspot hunt to IDLE.
func (m *StateMachine) SetWebSocketClientCount(n int) {
	m.mu.Lock()
	prev := m.clientCount
	m.clientCount = n
	hotspot := m.hotspot
	m.mu.Unlock()

	switch {
	case prev == 0 && n > 0:
		go m.pollTick()
	case prev > 0 && n == 0:
		if hotspot != nil {
			hotspot.AbortConnectionAttempt()
		}
		st := m.GetState()
		if st == StateWaitingForHotspot || st == StateConnecting {
			m.SetState(StateIdle)
		}
	}
}

// NotifyConnectedScreenDisplayed records that the UI has shown the
// connected screen.
func (m *StateMachine) NotifyConnectedScreenDisplayed() {
	m.mu.Lock()
	hotspot := m.hotspot
	m.mu.Unlock()
	if hotspot != nil {
		hotspot.MarkConnectedScreenDisplayed()
	}
}

func (m *StateMachine) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Fire-and-forget: a slow tick must not block the timer.
			go m.pollTick()
		}
	}
}

// pollTick evaluates the hotspot situation once. Single-flight: a tick that
// finds another one still running returns immediately, so a slow tick can
// never overlap with the next scheduled one.
func (m *StateMachine) pollTick() {
	m.mu.Lock()
	if !m.running || m.pollInFlight || m.hotspot == nil {
		m.mu.Unlock()
		return
	}
	m.pollInFlight = true
	hotspot := m.hotspot
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.pollInFlight = false
		m.mu.Unlock()
	}()

	ctx := context.Background()

	if hotspot.IsConnectedToMobileHotspot(ctx) {
		m.handleHotspotConnected(hotspot)
		return
	}

	// Loss of the hotspot right after connecting is often transient; give
	// it the grace period before reacting.
	m.mu.Lock()
	withinGrace := m.state == StateConnected && time.Since(m.connectedAt) < m.gracePeriod
	m.mu.Unlock()
	if withinGrace {
		return
	}
	if m.GetState() == StateConnected {
		m.SetState(StateWaitingForHotspot)
	}

	if m.GetMode() == ModeStopped || !m.onboardingComplete {
		m.huntHotspot(ctx, hotspot)
	} else {
		m.reflectConnectivity()
	}
}

func (m *StateMachine) handleHotspotConnected(hotspot *HotspotManager) {
	if m.GetState() != StateConnected {
		m.SetState(StateConnected)
		return
	}

	// Already CONNECTED with nobody attached and no screen shown yet:
	// re-emit so a late-joining UI still gets its notification. A retry
	// signal, not a transition.
	m.mu.Lock()
	reemit := m.clientCount == 0 && !hotspot.ConnectedScreenDisplayed()
	callbacks := m.snapshotCallbacksLocked()
	m.mu.Unlock()

	if reemit {
		for _, cb := range callbacks {
			invokeStateCallback(cb, StateConnected)
		}
	}
}

// huntHotspot is the stopped-mode (or pre-onboarding) branch: look for the
// hotspot and schedule a debounced connection attempt when it is visible.
func (m *StateMachine) huntHotspot(ctx context.Context, hotspot *HotspotManager) {
	if m.GetState() == StateError {
		m.SetState(StateIdle)
	}

	// Don't interfere with an in-flight operation.
	st := m.GetState()
	if st == StateConnecting || st == StateReconnectingFallback {
		return
	}

	ssid := hotspot.EffectiveHotspotSSID(ctx)
	if !m.scanner.IsNetworkVisible(ssid) {
		m.SetState(StateWaitingForHotspot)
		return
	}

	if err := hotspot.SaveFallbackNetwork(ctx); err != nil {
		log.Printf("Failed to save fallback network: %v", err)
	}
	m.SetState(StateWaitingForHotspot)
	m.scheduleAttempt(hotspot)
}

// reflectConnectivity is the driving-mode branch once onboarding is done:
// passive monitoring only, never initiating a hotspot attempt.
func (m *StateMachine) reflectConnectivity() {
	st := m.GetState()
	if st != StateIdle && st != StateDisconnected && st != StateWaitingForHotspot {
		return
	}
	if m.connections.IsConnected() {
		m.SetState(StateIdle)
	} else {
		m.SetState(StateDisconnected)
	}
}

// scheduleAttempt fires the actual connection attempt after the debounce
// delay, re-validating preconditions immediately before firing.
func (m *StateMachine) scheduleAttempt(hotspot *HotspotManager) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.AfterFunc(m.debounceDelay, func() {
		m.mu.Lock()
		rightMode := m.modeLocked() == ModeStopped || !m.onboardingComplete
		ok := m.running && rightMode && m.state == StateWaitingForHotspot
		m.mu.Unlock()
		if !ok {
			return
		}

		if err := hotspot.AttemptMobileHotspotConnection(context.Background()); err != nil {
			if errors.Is(err, ErrAlreadyInProgress) || errors.Is(err, ErrAttemptAborted) {
				return
			}
			log.Printf("Hotspot connection attempt failed: %v", err)
		}
	})
}
