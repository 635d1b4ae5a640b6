package wifi

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// DefaultScanSettle is how long to wait after triggering a rescan before
// listing results, giving the driver time to populate its cache.
const DefaultScanSettle = 2 * time.Second

// NetworkScanner wraps the driver's scan/list operation. It answers
// "what's visible" and "how strong is X" and nothing else.
type NetworkScanner struct {
	executor   CommandExecutor
	scanSettle time.Duration
}

// NewNetworkScanner creates a scanner over the given driver executor.
func NewNetworkScanner(executor CommandExecutor, scanSettle time.Duration) *NetworkScanner {
	if scanSettle < 0 {
		scanSettle = DefaultScanSettle
	}
	return &NetworkScanner{
		executor:   executor,
		scanSettle: scanSettle,
	}
}

// ScanNetworks triggers a rescan and returns the currently visible networks.
// Hidden networks (empty SSID) are dropped. A rescan refusal is tolerated
// (the driver rate-limits rescans and still serves cached results); only a
// failing list invocation yields ErrScanFailed.
func (s *NetworkScanner) ScanNetworks() ([]Network, error) {
	if s.executor == nil {
		return nil, ErrNotInitialized
	}

	if _, err := s.executor.Execute("nmcli", "device", "wifi", "rescan"); err != nil {
		log.Printf("WiFi rescan failed (may be rate-limited): %v", err)
	} else if s.scanSettle > 0 {
		time.Sleep(s.scanSettle)
	}

	// Format: SSID:SIGNAL:SECURITY:FREQ
	output, err := s.executor.Execute("nmcli", "-t", "-f", "SSID,SIGNAL,SECURITY,FREQ", "device", "wifi", "list")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScanFailed, err)
	}

	var networks []Network
	for _, line := range strings.Split(string(output), "\n") {
		if line == "" {
			continue
		}

		// SSID may contain colons; the last three fields are fixed.
		parts := strings.Split(line, ":")
		if len(parts) < 4 {
			continue
		}
		freq := parts[len(parts)-1]
		security := parts[len(parts)-2]
		signalStr := parts[len(parts)-3]
		ssid := strings.Join(parts[:len(parts)-3], ":")

		if ssid == "" {
			continue
		}

		signal, err := strconv.Atoi(signalStr)
		if err != nil {
			signal = 0
		}

		networks = append(networks, Network{
			SSID:           ssid,
			SignalStrength: signal,
			Security:       parseSecurityType(security),
			Frequency:      freq,
		})
	}

	return networks, nil
}

// IsNetworkVisible rescans and reports whether the exact SSID is currently
// listed. A driver failure collapses to "not visible": visibility-unknown
// must never block the rest of the connection logic with an error.
func (s *NetworkScanner) IsNetworkVisible(ssid string) bool {
	networks, err := s.ScanNetworks()
	if err != nil {
		log.Printf("Visibility check for %q failed, treating as not visible: %v", ssid, err)
		return false
	}

	for _, network := range networks {
		if network.SSID == ssid {
			return true
		}
	}
	return false
}

// GetSignalStrength returns the signal strength of the named network, or 0
// when the network is absent or the driver value is unparsable. Absence of a
// measurement is not an error condition here.
func (s *NetworkScanner) GetSignalStrength(ssid string) int {
	networks, err := s.ScanNetworks()
	if err != nil {
		return 0
	}

	for _, network := range networks {
		if network.SSID == ssid {
			return network.SignalStrength
		}
	}
	return 0
}

// parseSecurityType normalizes the driver's security label by substring
// priority: WPA3 > WPA2 > WPA > WEP > open > unknown.
func parseSecurityType(security string) SecurityType {
	s := strings.ToUpper(security)
	switch {
	case strings.Contains(s, "WPA3"):
		return SecurityWPA3
	case strings.Contains(s, "WPA2"):
		return SecurityWPA2
	case strings.Contains(s, "WPA"):
		return SecurityWPA
	case strings.Contains(s, "WEP"):
		return SecurityWEP
	case s == "" || s == "--":
		return SecurityOpen
	default:
		return SecurityUnknown
	}
}
