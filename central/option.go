package central

import (
	"time"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/clock"
)

// An Option configures a Manager.
type Option func(*Manager)

// OptClock sets the clock driving the settle delay, the reconnect loop
// and the scan window.
func OptClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// OptSettle sets the delay between dialing and service discovery.
func OptSettle(d time.Duration) Option {
	return func(m *Manager) { m.settle = d }
}

// OptReconnectInterval sets the reconnect loop period.
func OptReconnectInterval(d time.Duration) Option {
	return func(m *Manager) { m.reconnect = d }
}

// OptScanWindow bounds how long StartScan scans.
func OptScanWindow(d time.Duration) Option {
	return func(m *Manager) { m.scanWindow = d }
}

// OptPermission sets the check run before any radio operation. It should
// return an error wrapping entry.ErrPermissionDenied when BLE use is not
// authorized.
func OptPermission(f func() error) Option {
	return func(m *Manager) { m.permission = f }
}

// OptLogger sets the logger.
func OptLogger(l entry.Logger) Option {
	return func(m *Manager) { m.logger = l }
}
