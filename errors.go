package entry

import (
	"github.com/pkg/errors"
)

// Error taxonomy. Components wrap these at the source so callers can
// classify with errors.Is.
var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrBLEUnavailable      = errors.New("ble unavailable")
	ErrNetworkUnavailable  = errors.New("network unavailable")
	ErrRemoteValidation    = errors.New("remote validation failed")
	ErrInvalidToken        = errors.New("invalid token")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrStorage             = errors.New("storage error")

	// ErrNotConnected is returned by writes issued without a current peripheral.
	ErrNotConnected = errors.Wrap(ErrBLEUnavailable, "no peripheral connected")
)

var taxonomy = []error{
	ErrPermissionDenied,
	ErrBLEUnavailable,
	ErrNetworkUnavailable,
	ErrRemoteValidation,
	ErrInvalidToken,
	ErrAuthorizationDenied,
	ErrStorage,
}

// Classify returns the taxonomy error err belongs to, or nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
