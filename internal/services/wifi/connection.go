package wifi

import (
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultConnectTimeout bounds a single profile activation. It must
	// exceed DefaultAttemptTimeout so a hotspot attempt times out, and runs
	// its fallback recovery, before the driver call gives up on its own.
	DefaultConnectTimeout = 90 * time.Second
	// DefaultMonitorInterval is how often the connection monitor polls.
	DefaultMonitorInterval = 5 * time.Second
)

// ConnectionManagerConfig carries the tunables for a ConnectionManager.
// Zero values fall back to the defaults above.
type ConnectionManagerConfig struct {
	Interface       string
	ConnectTimeout  time.Duration
	MonitorInterval time.Duration
}

// ConnectionManager wraps the driver's connect/disconnect and profile CRUD
// operations and owns the periodic connection monitor.
type ConnectionManager struct {
	mu       sync.Mutex
	executor CommandExecutor
	scanner  *NetworkScanner

	iface           string
	connectTimeout  time.Duration
	monitorInterval time.Duration

	monitoring    bool
	stopChan      chan struct{}
	lastConnected bool

	callbacks      map[int]func(connected bool)
	nextCallbackID int
}

// NewConnectionManager creates a connection manager over the given driver
// executor. The scanner is used to enrich connection snapshots with signal
// strength.
func NewConnectionManager(executor CommandExecutor, scanner *NetworkScanner, cfg ConnectionManagerConfig) *ConnectionManager {
	if cfg.Interface == "" {
		cfg.Interface = "wlan0"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = DefaultMonitorInterval
	}
	return &ConnectionManager{
		executor:        executor,
		scanner:         scanner,
		iface:           cfg.Interface,
		connectTimeout:  cfg.ConnectTimeout,
		monitorInterval: cfg.MonitorInterval,
		callbacks:       make(map[int]func(bool)),
	}
}

// GetCurrentConnection returns a snapshot of the active connection, or nil
// when not connected. "Not connected" is not an error, and neither is a
// failing status query: only a missing executor is a true failure here.
func (m *ConnectionManager) GetCurrentConnection() (*Connection, error) {
	if m.executor == nil {
		return nil, ErrNotInitialized
	}

	output, err := m.executor.Execute("nmcli", "-t", "-f",
		"GENERAL.CONNECTION,IP4.ADDRESS,GENERAL.HWADDR", "device", "show", m.iface)
	if err != nil {
		log.Printf("Device status query failed, treating as not connected: %v", err)
		return nil, nil
	}

	conn := &Connection{ConnectedAt: time.Now()}
	for _, line := range strings.Split(string(output), "\n") {
		// Split on the first colon only: MAC addresses contain colons.
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		switch {
		case key == "GENERAL.CONNECTION":
			conn.SSID = value
		case strings.HasPrefix(key, "IP4.ADDRESS"):
			if conn.IPAddress == "" {
				conn.IPAddress, _, _ = strings.Cut(value, "/")
			}
		case key == "GENERAL.HWADDR":
			conn.MACAddress = value
		}
	}

	if conn.SSID == "" || conn.SSID == "--" {
		return nil, nil
	}

	if m.scanner != nil {
		conn.SignalStrength = m.scanner.GetSignalStrength(conn.SSID)
	}
	return conn, nil
}

// IsConnected reports whether an active connection exists.
func (m *ConnectionManager) IsConnected() bool {
	conn, err := m.GetCurrentConnection()
	return err == nil && conn != nil
}

// Connect deletes any pre-existing profile of the same name, creates a fresh
// WPA-PSK profile and races its activation against the connect timeout.
func (m *ConnectionManager) Connect(ssid, password string) error {
	if m.executor == nil {
		return ErrNotInitialized
	}

	// Idempotent recreate: a stale profile with old credentials would
	// otherwise win over the new one.
	if _, err := m.executor.Execute("nmcli", "connection", "delete", ssid); err != nil {
		log.Printf("No existing profile %q to delete: %v", ssid, err)
	}

	if _, err := m.executor.Execute("nmcli", profileAddArgs(m.iface, ssid, password)...); err != nil {
		return connectionFailed(fmt.Errorf("profile create: %v", err))
	}

	if _, err := m.executor.ExecuteWithTimeout(m.connectTimeout, "nmcli", "connection", "up", ssid); err != nil {
		return m.classifyConnectError(err)
	}
	return nil
}

// ActivateProfile brings up an already-saved profile by name. The driver is
// expected to still hold that profile's secret; no password is resupplied.
func (m *ConnectionManager) ActivateProfile(name string) error {
	if m.executor == nil {
		return ErrNotInitialized
	}
	if _, err := m.executor.ExecuteWithTimeout(m.connectTimeout, "nmcli", "connection", "up", name); err != nil {
		return m.classifyConnectError(err)
	}
	return nil
}

func (m *ConnectionManager) classifyConnectError(err error) error {
	if IsTimeout(err) {
		return &TimeoutError{Op: "connect", After: m.connectTimeout}
	}
	if isAuthFailure(err) {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return connectionFailed(err)
}

// isAuthFailure recognizes the driver's credential-rejection messages.
func isAuthFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg += " " + strings.ToLower(string(exitErr.Stderr))
	}
	return strings.Contains(msg, "secrets") ||
		strings.Contains(msg, "password") ||
		strings.Contains(msg, "auth")
}

// Disconnect drops the current connection. Fails with ErrNotConnected when
// there is nothing to drop.
func (m *ConnectionManager) Disconnect() error {
	if m.executor == nil {
		return ErrNotInitialized
	}
	if !m.IsConnected() {
		return ErrNotConnected
	}
	if _, err := m.executor.Execute("nmcli", "device", "disconnect", m.iface); err != nil {
		return connectionFailed(err)
	}
	return nil
}

// SaveNetwork creates or replaces a saved profile without activating it.
func (m *ConnectionManager) SaveNetwork(cfg NetworkConfig) error {
	if m.executor == nil {
		return ErrNotInitialized
	}

	if _, err := m.executor.Execute("nmcli", "connection", "delete", cfg.SSID); err != nil {
		log.Printf("No existing profile %q to delete: %v", cfg.SSID, err)
	}

	args := profileAddArgs(m.iface, cfg.SSID, cfg.Password)
	autoconnect := "no"
	if cfg.AutoConnect {
		autoconnect = "yes"
	}
	args = append(args,
		"connection.autoconnect", autoconnect,
		"connection.autoconnect-priority", strconv.Itoa(cfg.Priority),
	)

	if _, err := m.executor.Execute("nmcli", args...); err != nil {
		return connectionFailed(fmt.Errorf("profile create: %v", err))
	}
	return nil
}

// GetSavedNetworks lists the driver's saved profiles, filtered to WiFi-type
// entries only. Passwords are never returned by the driver.
func (m *ConnectionManager) GetSavedNetworks() ([]NetworkConfig, error) {
	if m.executor == nil {
		return nil, ErrNotInitialized
	}

	// Format: NAME:TYPE:AUTOCONNECT:AUTOCONNECT-PRIORITY
	output, err := m.executor.Execute("nmcli", "-t", "-f",
		"NAME,TYPE,AUTOCONNECT,AUTOCONNECT-PRIORITY", "connection", "show")
	if err != nil {
		return nil, connectionFailed(err)
	}

	var configs []NetworkConfig
	for _, line := range strings.Split(string(output), "\n") {
		if line == "" {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) < 4 {
			continue
		}
		priorityStr := parts[len(parts)-1]
		autoconnect := parts[len(parts)-2]
		connType := parts[len(parts)-3]
		name := strings.Join(parts[:len(parts)-3], ":")

		if !strings.Contains(connType, "wireless") && !strings.Contains(connType, "wifi") {
			continue
		}

		priority, err := strconv.Atoi(priorityStr)
		if err != nil {
			priority = 0
		}

		configs = append(configs, NetworkConfig{
			SSID:        name,
			Priority:    priority,
			AutoConnect: autoconnect == "yes",
		})
	}

	return configs, nil
}

// RemoveNetwork deletes a saved profile by name.
func (m *ConnectionManager) RemoveNetwork(ssid string) error {
	if m.executor == nil {
		return ErrNotInitialized
	}
	if _, err := m.executor.Execute("nmcli", "connection", "delete", ssid); err != nil {
		return connectionFailed(err)
	}
	return nil
}

// OnConnectionChange registers a callback invoked on every connected/
// disconnected flip observed by the monitor. Returns an unsubscribe closure.
func (m *ConnectionManager) OnConnectionChange(cb func(connected bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextCallbackID++
	id := m.nextCallbackID
	m.callbacks[id] = cb

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.callbacks, id)
	}
}

// clearCallbacks drops every registered connection-change callback.
func (m *ConnectionManager) clearCallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = make(map[int]func(bool))
}

// StartConnectionMonitoring starts the periodic connected/disconnected check.
func (m *ConnectionManager) StartConnectionMonitoring() {
	m.mu.Lock()
	if m.monitoring {
		m.mu.Unlock()
		return
	}
	m.monitoring = true
	m.stopChan = make(chan struct{})
	stop := m.stopChan
	m.mu.Unlock()

	m.lastConnected = m.IsConnected()

	go m.monitorLoop(stop)
}

// StopConnectionMonitoring stops the monitor loop.
func (m *ConnectionManager) StopConnectionMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.monitoring {
		return
	}
	m.monitoring = false
	close(m.stopChan)
}

func (m *ConnectionManager) monitorLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.checkConnection()
		}
	}
}

func (m *ConnectionManager) checkConnection() {
	connected := m.IsConnected()

	m.mu.Lock()
	changed := connected != m.lastConnected
	m.lastConnected = connected
	callbacks := make([]func(bool), 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		callbacks = append(callbacks, cb)
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	for _, cb := range callbacks {
		invokeConnectionCallback(cb, connected)
	}
}

// invokeConnectionCallback isolates one panicking callback from the rest.
func invokeConnectionCallback(cb func(bool), connected bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Connection-change callback panicked: %v", r)
		}
	}()
	cb(connected)
}

func profileAddArgs(iface, ssid, password string) []string {
	args := []string{
		"connection", "add",
		"type", "wifi",
		"ifname", iface,
		"con-name", ssid,
		"ssid", ssid,
	}
	if password != "" {
		args = append(args,
			"wifi-sec.key-mgmt", "wpa-psk",
			"wifi-sec.psk", password,
		)
	}
	return args
}
