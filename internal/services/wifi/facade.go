package wifi

import "context"

// Thin delegation surface for the surrounding application (web and
// orchestration layers), so callers hold a single handle on the WiFi core.

// ScanNetworks lists currently visible networks.
func (m *StateMachine) ScanNetworks() ([]Network, error) {
	return m.scanner.ScanNetworks()
}

// Connect joins the named network.
func (m *StateMachine) Connect(ssid, password string) error {
	return m.connections.Connect(ssid, password)
}

// Disconnect drops the current connection.
func (m *StateMachine) Disconnect() error {
	return m.connections.Disconnect()
}

// GetCurrentConnection returns the active connection snapshot, if any.
func (m *StateMachine) GetCurrentConnection() (*Connection, error) {
	return m.connections.GetCurrentConnection()
}

// SaveNetwork persists a driver profile without activating it.
func (m *StateMachine) SaveNetwork(cfg NetworkConfig) error {
	return m.connections.SaveNetwork(cfg)
}

// GetSavedNetworks lists saved WiFi profiles.
func (m *StateMachine) GetSavedNetworks() ([]NetworkConfig, error) {
	return m.connections.GetSavedNetworks()
}

// RemoveNetwork deletes a saved profile.
func (m *StateMachine) RemoveNetwork(ssid string) error {
	return m.connections.RemoveNetwork(ssid)
}

// IsConnectedToMobileHotspot reports whether the device is on the hotspot.
func (m *StateMachine) IsConnectedToMobileHotspot(ctx context.Context) bool {
	return m.hotspot.IsConnectedToMobileHotspot(ctx)
}

// AttemptMobileHotspotConnection runs one hotspot connection attempt.
func (m *StateMachine) AttemptMobileHotspotConnection(ctx context.Context) error {
	return m.hotspot.AttemptMobileHotspotConnection(ctx)
}

// GetMobileHotspotSSID resolves the effective hotspot SSID.
func (m *StateMachine) GetMobileHotspotSSID(ctx context.Context) string {
	return m.hotspot.EffectiveHotspotSSID(ctx)
}

// GetHotspotConfig returns the persisted hotspot override, if any.
func (m *StateMachine) GetHotspotConfig(ctx context.Context) (*HotspotConfig, error) {
	return m.hotspot.GetHotspotConfig(ctx)
}

// SetHotspotConfig persists a new hotspot identity.
func (m *StateMachine) SetHotspotConfig(ctx context.Context, ssid, password string) (*HotspotConfig, error) {
	return m.hotspot.SetHotspotConfig(ctx, ssid, password)
}
