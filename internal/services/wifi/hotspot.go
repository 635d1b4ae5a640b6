package wifi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// DefaultAttemptTimeout bounds a whole hotspot connection attempt.
	DefaultAttemptTimeout = 60 * time.Second
	// DefaultSettleDelay is the pause between a successful activation and
	// the first verification, letting DHCP and the driver state settle.
	DefaultSettleDelay = 2 * time.Second
	// DefaultVerifyRetryDelay is the extra wait before the one verification
	// retry.
	DefaultVerifyRetryDelay = 3 * time.Second
	// MinHotspotPasswordLen is the WPA2 passphrase floor.
	MinHotspotPasswordLen = 8
)

// HotspotManagerConfig carries the tunables and the compiled-in hotspot
// identity used when no persisted override exists.
type HotspotManagerConfig struct {
	DefaultSSID      string
	DefaultPassword  string
	AttemptTimeout   time.Duration
	SettleDelay      time.Duration
	VerifyRetryDelay time.Duration
}

// HotspotManager implements the single hotspot-connection attempt protocol
// and the fallback-network bookkeeping. At most one attempt is in flight at
// any time.
type HotspotManager struct {
	mu          sync.Mutex
	scanner     *NetworkScanner
	connections *ConnectionManager
	store       ConfigStore
	state       StatePort

	defaultSSID      string
	defaultPassword  string
	attemptTimeout   time.Duration
	settleDelay      time.Duration
	verifyRetryDelay time.Duration

	attemptInFlight bool
	abortAttempt    context.CancelFunc

	// One-shot flag: has the UI shown the "connected" screen since
	// CONNECTED was last entered?
	screenShown bool
}

// NewHotspotManager creates a hotspot manager. The StatePort is the only way
// it mutates the machine state.
func NewHotspotManager(scanner *NetworkScanner, connections *ConnectionManager, store ConfigStore, state StatePort, cfg HotspotManagerConfig) *HotspotManager {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.VerifyRetryDelay <= 0 {
		cfg.VerifyRetryDelay = DefaultVerifyRetryDelay
	}
	return &HotspotManager{
		scanner:          scanner,
		connections:      connections,
		store:            store,
		state:            state,
		defaultSSID:      cfg.DefaultSSID,
		defaultPassword:  cfg.DefaultPassword,
		attemptTimeout:   cfg.AttemptTimeout,
		settleDelay:      cfg.SettleDelay,
		verifyRetryDelay: cfg.VerifyRetryDelay,
	}
}

// EffectiveHotspotSSID resolves the hotspot SSID: persisted override if
// present, else the compiled-in default.
func (h *HotspotManager) EffectiveHotspotSSID(ctx context.Context) string {
	ssid, _ := h.effectiveConfig(ctx)
	return ssid
}

// EffectiveHotspotPassword resolves the hotspot password the same way.
func (h *HotspotManager) EffectiveHotspotPassword(ctx context.Context) string {
	_, password := h.effectiveConfig(ctx)
	return password
}

// effectiveConfig is the single resolver for "the hotspot" used everywhere
// it is referenced.
func (h *HotspotManager) effectiveConfig(ctx context.Context) (ssid, password string) {
	cfg, err := h.store.HotspotConfig(ctx)
	if err != nil {
		log.Printf("Failed to read hotspot config, using default: %v", err)
	}
	if cfg == nil {
		return h.defaultSSID, h.defaultPassword
	}
	return cfg.SSID, cfg.Password
}

// GetHotspotConfig returns the persisted override, or nil when the
// compiled-in default is in effect.
func (h *HotspotManager) GetHotspotConfig(ctx context.Context) (*HotspotConfig, error) {
	return h.store.HotspotConfig(ctx)
}

// SetHotspotConfig validates and persists a new hotspot identity, saves the
// current network as fallback, then disconnects to force renegotiation
// against the new hotspot.
func (h *HotspotManager) SetHotspotConfig(ctx context.Context, ssid, password string) (*HotspotConfig, error) {
	if ssid == "" {
		return nil, fmt.Errorf("wifi: hotspot SSID must not be empty")
	}
	if len(password) < MinHotspotPasswordLen {
		return nil, fmt.Errorf("wifi: hotspot password must be at least %d characters", MinHotspotPasswordLen)
	}

	cfg, err := h.store.SaveHotspotConfig(ctx, ssid, password)
	if err != nil {
		return nil, fmt.Errorf("persist hotspot config: %w", err)
	}

	if err := h.SaveFallbackNetwork(ctx); err != nil {
		log.Printf("Failed to save fallback network: %v", err)
	}

	if err := h.connections.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		log.Printf("Disconnect after hotspot config change failed: %v", err)
	}

	h.state.SetState(StateWaitingForHotspot)
	h.ResetConnectedScreen()

	return cfg, nil
}

// IsConnectedToMobileHotspot reports whether the current connection is the
// effective hotspot.
func (h *HotspotManager) IsConnectedToMobileHotspot(ctx context.Context) bool {
	conn, err := h.connections.GetCurrentConnection()
	if err != nil || conn == nil {
		return false
	}
	return conn.SSID == h.EffectiveHotspotSSID(ctx)
}

// AttemptMobileHotspotConnection runs one full connection attempt:
// visibility check, connect raced against the attempt timeout and the abort
// signal, then verification. Single-flight: a concurrent call returns
// ErrAlreadyInProgress without touching any state.
func (h *HotspotManager) AttemptMobileHotspotConnection(ctx context.Context) error {
	h.mu.Lock()
	if h.attemptInFlight {
		h.mu.Unlock()
		return ErrAlreadyInProgress
	}
	h.attemptInFlight = true
	attemptCtx, cancel := context.WithCancel(ctx)
	h.abortAttempt = cancel
	h.mu.Unlock()

	// Always clear the in-flight flag and the abort signal, whichever path
	// the attempt took. A stuck flag would block every future attempt.
	defer func() {
		h.mu.Lock()
		h.attemptInFlight = false
		h.abortAttempt = nil
		h.mu.Unlock()
		cancel()
	}()

	ssid, password := h.effectiveConfig(ctx)

	// Checked without disconnecting first: don't abandon current
	// connectivity chasing an absent network.
	if !h.scanner.IsNetworkVisible(ssid) {
		return fmt.Errorf("%w: %s", ErrNetworkNotFound, ssid)
	}

	h.state.SetState(StateConnecting)

	done := make(chan error, 1)
	go func() {
		done <- h.connections.Connect(ssid, password)
	}()

	timer := time.NewTimer(h.attemptTimeout)
	defer timer.Stop()

	var connectErr error
	select {
	case connectErr = <-done:
	case <-timer.C:
		// The driver call keeps running in the background; its outcome is
		// discarded.
		h.state.SetState(StateReconnectingFallback)
		if err := h.ReconnectToFallback(ctx); err != nil {
			log.Printf("Fallback reconnect failed: %v", err)
			h.state.SetState(StateError)
		} else {
			h.state.SetState(StateDisconnected)
		}
		return ErrHotspotConnectionTimeout
	case <-attemptCtx.Done():
		// Caller decides the next state.
		return ErrAttemptAborted
	}

	if connectErr != nil {
		h.state.SetState(StateError)
		return fmt.Errorf("%w: %v", ErrConnectionFailed, connectErr)
	}

	if aborted := h.sleepOrAbort(attemptCtx, h.settleDelay); aborted {
		return ErrAttemptAborted
	}

	verified := h.IsConnectedToMobileHotspot(ctx)
	if !verified {
		if aborted := h.sleepOrAbort(attemptCtx, h.verifyRetryDelay); aborted {
			return ErrAttemptAborted
		}
		verified = h.IsConnectedToMobileHotspot(ctx)
	}

	if !verified {
		// Not terminal: the caller's next poll cycle may retry.
		h.state.SetState(StateWaitingForHotspot)
		return fmt.Errorf("%w: connected but hotspot not verified", ErrConnectionFailed)
	}

	h.state.SetState(StateConnected)
	if err := h.store.ClearFallbackNetwork(ctx); err != nil {
		log.Printf("Failed to clear fallback network: %v", err)
	}
	return nil
}

func (h *HotspotManager) sleepOrAbort(ctx context.Context, d time.Duration) (aborted bool) {
	select {
	case <-time.After(d):
		return false
	case <-ctx.Done():
		return true
	}
}

// AbortConnectionAttempt triggers the in-flight attempt's abort signal.
// A no-op when nothing is in flight.
func (h *HotspotManager) AbortConnectionAttempt() {
	h.mu.Lock()
	cancel := h.abortAttempt
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// IsAttemptInFlight reports whether a connection attempt is running.
func (h *HotspotManager) IsAttemptInFlight() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attemptInFlight
}

// SaveFallbackNetwork records the current network as the one to return to.
// The hotspot's own SSID is never recorded as its fallback.
func (h *HotspotManager) SaveFallbackNetwork(ctx context.Context) error {
	conn, err := h.connections.GetCurrentConnection()
	if err != nil || conn == nil {
		return nil
	}
	if conn.SSID == h.EffectiveHotspotSSID(ctx) {
		return nil
	}
	return h.store.SaveFallbackNetwork(ctx, conn.SSID)
}

// ClearFallbackNetwork removes the fallback record.
func (h *HotspotManager) ClearFallbackNetwork(ctx context.Context) error {
	return h.store.ClearFallbackNetwork(ctx)
}

// ReconnectToFallback disconnects and reactivates the recorded fallback
// profile by name. The driver must still hold that profile's secret from a
// prior successful connection; no password is resupplied. A missing record
// is a no-op success.
func (h *HotspotManager) ReconnectToFallback(ctx context.Context) error {
	fallback, err := h.store.FallbackNetwork(ctx)
	if err != nil {
		log.Printf("Failed to read fallback network: %v", err)
		return nil
	}
	if fallback == nil {
		return nil
	}

	if err := h.connections.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		log.Printf("Disconnect before fallback reconnect failed: %v", err)
	}

	if err := h.connections.ActivateProfile(fallback.SSID); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFallbackReconnectFailed, fallback.SSID, err)
	}
	return nil
}

// ConnectedScreenDisplayed reports whether the UI has shown the connected
// screen since CONNECTED was last entered.
func (h *HotspotManager) ConnectedScreenDisplayed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.screenShown
}

// MarkConnectedScreenDisplayed records that the UI notification has fired.
func (h *HotspotManager) MarkConnectedScreenDisplayed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.screenShown = true
}

// ResetConnectedScreen re-arms the one-shot flag. Called whenever CONNECTED
// is (re-)entered or the hotspot config changes.
func (h *HotspotManager) ResetConnectedScreen() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.screenShown = false
}
