package validation

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/clock"
)

// DefaultProbeInterval is how often the Monitor re-probes the service.
const DefaultProbeInterval = 5 * time.Second

// Monitor tracks whether the token service accepts TCP connections.
// It reports offline until the first successful probe.
type Monitor struct {
	addr     string
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock
	logger   entry.Logger
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)

	mu     sync.Mutex
	online bool

	observers entry.Observers[bool]
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

func OptProbeInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = d }
}

func OptProbeClock(c clock.Clock) MonitorOption {
	return func(m *Monitor) { m.clock = c }
}

func OptMonitorLogger(l entry.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// NewMonitor returns a Monitor probing the host of baseURL.
func NewMonitor(baseURL string, opts ...MonitorOption) (*Monitor, error) {
	addr, err := hostPort(baseURL)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		addr:     addr,
		interval: DefaultProbeInterval,
		timeout:  DefaultTimeout,
		clock:    clock.Real(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = entry.Component("network")
	}
	if m.dial == nil {
		d := &net.Dialer{Timeout: m.timeout}
		m.dial = d.DialContext
	}
	return m, nil
}

func hostPort(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid endpoint %q", baseURL)
	}
	if u.Host == "" {
		return "", errors.Errorf("invalid endpoint %q: no host", baseURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Probe dials the service once and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dial(ctx, "tcp", m.addr)
	online := err == nil
	if online {
		conn.Close()
	}

	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if changed {
		if online {
			m.logger.Infof("%s reachable", m.addr)
		} else {
			m.logger.Warnf("%s unreachable: %v", m.addr, err)
		}
		m.observers.Notify(online)
	}
	return online
}

// Run probes immediately and then every probe interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Probe(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Online reports the result of the last probe.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Observe registers f to be called whenever reachability changes.
func (m *Monitor) Observe(f func(online bool)) *entry.Subscription {
	return m.observers.Observe(f)
}
