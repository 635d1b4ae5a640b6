package wifi

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stateRecorder collects every notification a subscriber sees, including
// re-emitted ones.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) seen() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

// setClientCount adjusts the attached-client count without the immediate
// poll tick SetWebSocketClientCount would spawn, keeping tick timing in the
// test's hands.
func setClientCount(m *StateMachine, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientCount = n
}

func newTestStateMachine(mock *mockExecutor, cfg StateMachineConfig) (*StateMachine, *HotspotManager, *memoryStore) {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = time.Hour
	}
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 10 * time.Millisecond
	}

	scanner := newTestScanner(mock)
	connections := newTestConnectionManager(mock)
	m := NewStateMachine(scanner, connections, cfg)

	store := &memoryStore{}
	h := NewHotspotManager(scanner, connections, store, m, HotspotManagerConfig{
		DefaultSSID:      "Phone-AP",
		DefaultPassword:  "hotspotpw",
		AttemptTimeout:   time.Second,
		SettleDelay:      time.Millisecond,
		VerifyRetryDelay: time.Millisecond,
	})
	m.BindHotspotManager(h)
	return m, h, store
}

func TestSetState_NoDuplicateNotifications(t *testing.T) {
	mock := newMockExecutor()
	m, _, _ := newTestStateMachine(mock, StateMachineConfig{})

	rec := &stateRecorder{}
	unsubscribe := m.OnStateChange(rec.record)
	defer unsubscribe()

	m.SetState(StateConnecting)
	m.SetState(StateConnecting)
	m.SetState(StateConnected)
	m.SetState(StateConnected)

	assert.Equal(t, []State{StateConnecting, StateConnected}, rec.seen())
}

func TestSetState_ConnectedRearmsScreenFlag(t *testing.T) {
	mock := newMockExecutor()
	m, h, _ := newTestStateMachine(mock, StateMachineConfig{})

	h.MarkConnectedScreenDisplayed()
	m.SetState(StateConnected)
	assert.False(t, h.ConnectedScreenDisplayed())

	m.NotifyConnectedScreenDisplayed()
	assert.True(t, h.ConnectedScreenDisplayed())
}

func TestSetState_PanickingSubscriberIsolated(t *testing.T) {
	mock := newMockExecutor()
	m, _, _ := newTestStateMachine(mock, StateMachineConfig{})

	defer m.OnStateChange(func(State) { panic("boom") })()

	rec := &stateRecorder{}
	defer m.OnStateChange(rec.record)()

	m.SetState(StateConnecting)
	assert.Equal(t, []State{StateConnecting}, rec.seen())
}

func TestInitialize_RequiresHotspotManager(t *testing.T) {
	mock := newMockExecutor()
	scanner := newTestScanner(mock)
	connections := newTestConnectionManager(mock)
	m := NewStateMachine(scanner, connections, StateMachineConfig{})

	assert.ErrorIs(t, m.Initialize(), ErrNotInitialized)
}

func TestPollTick_GracePeriod(t *testing.T) {
	mock := newMockExecutor()
	m, _, _ := newTestStateMachine(mock, StateMachineConfig{GracePeriod: time.Hour})
	require.NoError(t, m.Initialize())
	defer m.Dispose()

	setClientCount(m, 1)
	m.SetState(StateConnected)

	// Hotspot not reachable, but we are inside the grace window.
	m.pollTick()
	assert.Equal(t, StateConnected, m.GetState())

	// Push the connection timestamp outside the window.
	m.mu.Lock()
	m.connectedAt = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	m.pollTick()
	assert.Equal(t, StateWaitingForHotspot, m.GetState())
}

func TestSetWebSocketClientCount_DetachResetsHunt(t *testing.T) {
	mock := newMockExecutor()
	m, h, _ := newTestStateMachine(mock, StateMachineConfig{})

	m.SetWebSocketClientCount(1)
	m.SetState(StateWaitingForHotspot)
	m.SetWebSocketClientCount(0)
	assert.Equal(t, StateIdle, m.GetState())
	assert.False(t, h.IsAttemptInFlight())

	// An established connection survives the UI going away.
	m.SetWebSocketClientCount(1)
	m.SetState(StateConnected)
	m.SetWebSocketClientCount(0)
	assert.Equal(t, StateConnected, m.GetState())
}

func TestGetMode(t *testing.T) {
	mock := newMockExecutor()
	m, _, _ := newTestStateMachine(mock, StateMachineConfig{})

	assert.Equal(t, ModeDriving, m.GetMode())
	m.SetWebSocketClientCount(2)
	assert.Equal(t, ModeStopped, m.GetMode())
	m.SetWebSocketClientCount(0)
	assert.Equal(t, ModeDriving, m.GetMode())
}

func TestPollTick_DrivingModeNeverAttempts(t *testing.T) {
	mock := newMockExecutor()
	// Hotspot visible, but onboarding is done and no UI is attached.
	mock.setResponse(cmdScanList, "Phone-AP:65:WPA2:2437 MHz\n")

	m, _, _ := newTestStateMachine(mock, StateMachineConfig{OnboardingComplete: true})
	require.NoError(t, m.Initialize())
	defer m.Dispose()

	m.pollTick()
	assert.Equal(t, StateDisconnected, m.GetState())

	mock.setResponse(cmdStatus, connectedStatus)
	m.pollTick()
	assert.Equal(t, StateIdle, m.GetState())

	// Passive monitoring only: nothing was added or activated.
	assert.Equal(t, 0, mock.callCount("nmcli connection add"))
	assert.Equal(t, 0, mock.callCount("nmcli connection up"))
}

func TestPollTick_PreOnboardingHuntsWithoutClients(t *testing.T) {
	mock := newMockExecutor()
	m, _, _ := newTestStateMachine(mock, StateMachineConfig{OnboardingComplete: false})
	require.NoError(t, m.Initialize())
	defer m.Dispose()

	// No clients, onboarding incomplete, hotspot not visible: the machine
	// still hunts instead of passively reflecting connectivity.
	m.pollTick()
	assert.Equal(t, StateWaitingForHotspot, m.GetState())
}

func TestPollTick_FullOnboardingFlow(t *testing.T) {
	mock := newMockExecutor()
	mock.setResponse(cmdScanList, "Phone-AP:65:WPA2:2437 MHz\n")

	m, _, _ := newTestStateMachine(mock, StateMachineConfig{DebounceDelay: 10 * time.Millisecond})
	require.NoError(t, m.Initialize())
	defer m.Dispose()

	rec := &stateRecorder{}
	defer m.OnStateChange(rec.record)()

	setClientCount(m, 1)

	// The hotspot is visible, so a debounced attempt gets scheduled.
	m.pollTick()
	require.Equal(t, StateWaitingForHotspot, m.GetState())

	// Once the attempt activates the profile, verification must see the
	// hotspot as the current connection.
	mock.setResponse(cmdStatus, hotspotStatus)

	require.Eventually(t, func() bool {
		return m.GetState() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []State{StateWaitingForHotspot, StateConnecting, StateConnected}, rec.seen())
	assert.GreaterOrEqual(t, mock.callCount(cmdUp("Phone-AP")), 1)
}

func TestScheduleAttempt_RevalidatesStateBeforeFiring(t *testing.T) {
	mock := newMockExecutor()
	mock.setResponse(cmdScanList, "Phone-AP:65:WPA2:2437 MHz\n")

	m, _, _ := newTestStateMachine(mock, StateMachineConfig{DebounceDelay: 30 * time.Millisecond})
	require.NoError(t, m.Initialize())
	defer m.Dispose()

	setClientCount(m, 1)
	m.pollTick()
	require.Equal(t, StateWaitingForHotspot, m.GetState())

	// The state moves on inside the debounce window; the scheduled attempt
	// must notice and stand down.
	m.SetState(StateIdle)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, mock.callCount(cmdUp("Phone-AP")))
}

func TestScheduleAttempt_RevalidatesModeBeforeFiring(t *testing.T) {
	mock := newMockExecutor()
	mock.setResponse(cmdScanList, "Phone-AP:65:WPA2:2437 MHz\n")

	m, _, _ := newTestStateMachine(mock, StateMachineConfig{
		DebounceDelay:      30 * time.Millisecond,
		OnboardingComplete: true,
	})
	require.NoError(t, m.Initialize())
	defer m.Dispose()

	setClientCount(m, 1)
	m.pollTick()
	require.Equal(t, StateWaitingForHotspot, m.GetState())

	// The UI detaches inside the debounce window; with onboarding done,
	// driving mode must not fire the pending attempt.
	setClientCount(m, 0)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, mock.callCount(cmdUp("Phone-AP")))
}

func TestPollTick_HotspotErrorRecovery(t *testing.T) {
	mock := newMockExecutor()
	m, _, _ := newTestStateMachine(mock, StateMachineConfig{})
	require.NoError(t, m.Initialize())
	defer m.Dispose()

	setClientCount(m, 1)
	m.SetState(StateError)

	// ERROR is not terminal: the next tick folds it back into the hunt.
	m.pollTick()
	assert.Equal(t, StateWaitingForHotspot, m.GetState())
}

func TestPollTick_ReemitsConnectedForLateUI(t *testing.T) {
	mock := newMockExecutor()
	mock.setResponse(cmdStatus, hotspotStatus)

	m, h, _ := newTestStateMachine(mock, StateMachineConfig{})
	require.NoError(t, m.Initialize())
	defer m.Dispose()

	m.SetState(StateConnected)

	rec := &stateRecorder{}
	defer m.OnStateChange(rec.record)()

	// Already CONNECTED, nobody attached, screen never shown: re-emit.
	m.pollTick()
	assert.Equal(t, []State{StateConnected}, rec.seen())

	// Once the screen has been shown, ticks go quiet.
	h.MarkConnectedScreenDisplayed()
	m.pollTick()
	assert.Equal(t, []State{StateConnected}, rec.seen())
}

func TestDispose(t *testing.T) {
	mock := newMockExecutor()
	m, _, _ := newTestStateMachine(mock, StateMachineConfig{})
	require.NoError(t, m.Initialize())

	fired := make(chan bool, 1)
	m.OnConnectionChange(func(connected bool) { fired <- connected })

	m.SetState(StateConnected)
	m.Dispose()
	assert.Equal(t, StateIdle, m.GetState())

	// Connection-change subscribers are dropped with everything else.
	mock.setResponse(cmdStatus, connectedStatus)
	m.connections.checkConnection()
	select {
	case <-fired:
		t.Fatal("connection callback survived Dispose")
	default:
	}

	// Ticks after disposal are inert.
	m.pollTick()
	assert.Equal(t, StateIdle, m.GetState())

	// Disposing twice is safe.
	m.Dispose()
}
