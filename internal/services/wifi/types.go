// Package wifi implements the WiFi connectivity core for Papertrail devices:
// a network scanner, a connection manager, a hotspot-connection manager, and
// the state machine that coordinates them. The underlying network driver is
// NetworkManager, invoked through nmcli behind the CommandExecutor interface.
package wifi

import (
	"context"
	"time"
)

// State represents the authoritative WiFi connectivity state. It is mutated
// only through the state machine's SetState.
type State string

const (
	StateIdle                 State = "IDLE"
	StateConnecting           State = "CONNECTING"
	StateConnected            State = "CONNECTED"
	StateWaitingForHotspot    State = "WAITING_FOR_HOTSPOT"
	StateReconnectingFallback State = "RECONNECTING_FALLBACK"
	StateDisconnected         State = "DISCONNECTED"
	StateError                State = "ERROR"
)

// Mode describes how the device is currently being used. Stopped means at
// least one UI client is attached, a proxy for "someone is near the device".
type Mode string

const (
	ModeDriving Mode = "DRIVING"
	ModeStopped Mode = "STOPPED"
)

// Connection is a point-in-time snapshot of the active WiFi connection.
// It is recreated on every query and never cached.
type Connection struct {
	SSID           string
	IPAddress      string
	MACAddress     string
	SignalStrength int // 0-100
	ConnectedAt    time.Time
}

// NetworkConfig describes a saved driver profile. Password is write-only:
// the driver never returns it back, so it is empty on reads.
type NetworkConfig struct {
	SSID        string
	Password    string
	Priority    int
	AutoConnect bool
}

// HotspotConfig is the user-overridable identity of the mobile hotspot.
// Absence means "use the compiled-in default".
type HotspotConfig struct {
	SSID      string
	Password  string
	UpdatedAt time.Time
}

// FallbackNetwork records the network to return to if a hotspot attempt
// fails. At most one record exists at a time, and it is never the effective
// hotspot SSID itself.
type FallbackNetwork struct {
	SSID    string
	SavedAt time.Time
}

// Network is a single scan result.
type Network struct {
	SSID           string
	SignalStrength int
	Security       SecurityType
	Frequency      string
}

// SecurityType is the normalized security classification of a network.
type SecurityType string

const (
	SecurityOpen    SecurityType = "OPEN"
	SecurityWEP     SecurityType = "WEP"
	SecurityWPA     SecurityType = "WPA"
	SecurityWPA2    SecurityType = "WPA2"
	SecurityWPA3    SecurityType = "WPA3"
	SecurityUnknown SecurityType = "UNKNOWN"
)

// CommandExecutor invokes the network driver. Extracted as an interface so
// tests can script driver behavior without a real NetworkManager.
type CommandExecutor interface {
	Execute(name string, args ...string) ([]byte, error)
	ExecuteWithTimeout(timeout time.Duration, name string, args ...string) ([]byte, error)
}

// StatePort is the narrow state-mutation surface managers receive at
// construction instead of a back-pointer to the state machine.
type StatePort interface {
	State() State
	SetState(State)
}

// ConfigStore persists the hotspot override and the fallback-network record.
// The storage format is owned by the database layer; this core only reads and
// writes through it.
type ConfigStore interface {
	HotspotConfig(ctx context.Context) (*HotspotConfig, error)
	SaveHotspotConfig(ctx context.Context, ssid, password string) (*HotspotConfig, error)
	FallbackNetwork(ctx context.Context) (*FallbackNetwork, error)
	SaveFallbackNetwork(ctx context.Context, ssid string) error
	ClearFallbackNetwork(ctx context.Context) error
}
