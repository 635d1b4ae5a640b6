package wifi

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for actionable faults. Results that represent absence of a
// fact (no current connection, zero signal, network not visible after a scan
// error) are normalized into successful nil/0/false results instead.
var (
	ErrNotInitialized           = errors.New("wifi: service not initialized")
	ErrScanFailed               = errors.New("wifi: scan failed")
	ErrNetworkNotFound          = errors.New("wifi: network not found")
	ErrAuthFailed               = errors.New("wifi: authentication failed")
	ErrConnectionFailed         = errors.New("wifi: connection failed")
	ErrNotConnected             = errors.New("wifi: not connected")
	ErrAlreadyInProgress        = errors.New("wifi: connection attempt already in progress")
	ErrHotspotConnectionTimeout = errors.New("wifi: hotspot connection timed out")
	ErrFallbackReconnectFailed  = errors.New("wifi: fallback reconnect failed")
	ErrAttemptAborted           = errors.New("wifi: connection attempt aborted")
)

// TimeoutError reports an operation that ran out of time.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("wifi: %s timed out after %s", e.Op, e.After)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

func connectionFailed(cause error) error {
	return fmt.Errorf("%w: %v", ErrConnectionFailed, cause)
}
