// Package central owns the connection to the lock actuator: discovery,
// connect and handshake, bonding, and the reconnect loop.
package central

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/bond"
	"github.com/beblucech/entry/clock"
)

const (
	DefaultSettle            = 1000 * time.Millisecond
	DefaultReconnectInterval = 5000 * time.Millisecond
	DefaultScanWindow        = 30 * time.Second
)

// ErrConnectInProgress is returned when another connect sequence already
// holds the peripheral identity.
var ErrConnectInProgress = errors.New("connect already in progress")

// Authenticator proves possession of the shared secret over a fresh link.
type Authenticator interface {
	Authenticate(ctx context.Context, link entry.Link) error
}

// Manager is the connection manager. At most one peripheral identity is
// current at a time; a connect sequence claims it before dialing.
type Manager struct {
	radio  entry.Radio
	bonds  bond.Manager
	auth   Authenticator
	clock  clock.Clock
	logger entry.Logger

	settle     time.Duration
	reconnect  time.Duration
	scanWindow time.Duration
	permission func() error

	mu         sync.Mutex
	state      State
	id         entry.PeripheralID
	claim      uint64
	link       entry.Link
	connected  bool
	scanCancel context.CancelFunc
	scanGen    uint64

	observers entry.Observers[State]
}

// New returns a Manager in state Idle.
func New(radio entry.Radio, bonds bond.Manager, auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		radio:      radio,
		bonds:      bonds,
		auth:       auth,
		clock:      clock.Real(),
		settle:     DefaultSettle,
		reconnect:  DefaultReconnectInterval,
		scanWindow: DefaultScanWindow,
		permission: func() error { return nil },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = entry.Component("central")
	}
	return m
}

// StartScan starts discovery of actuators advertising the entry service.
// The scan runs in the background until a peripheral is found, the scan
// window elapses or ctx is done. It is a no-op while a scan is running.
func (m *Manager) StartScan(ctx context.Context) error {
	if err := m.permission(); err != nil {
		m.logger.Warnf("can't scan: %v", err)
		return err
	}

	m.mu.Lock()
	if m.scanCancel != nil {
		m.mu.Unlock()
		return nil
	}
	sctx, cancel := context.WithCancel(ctx)
	m.scanCancel = cancel
	m.scanGen++
	gen := m.scanGen
	changed := m.id.IsZero() && m.setStateLocked(Scanning)
	m.mu.Unlock()

	if changed {
		m.observers.Notify(Scanning)
	}
	m.logger.Infof("scanning for %v", m.scanWindow)

	timer := m.clock.AfterFunc(m.scanWindow, cancel)
	go func() {
		defer timer.Stop()

		err := m.radio.Scan(sctx, entry.ServiceUUID, func(d entry.Discovery) {
			m.onDiscovered(ctx, d)
		})
		if err != nil {
			m.logger.Errorf("scan failed: %v", err)
		}

		m.mu.Lock()
		if m.scanGen == gen {
			m.scanCancel = nil
		}
		changed := m.state == Scanning && m.setStateLocked(Idle)
		m.mu.Unlock()
		cancel()

		if changed {
			m.observers.Notify(Idle)
		}
	}()

	return nil
}

// StopScan ends a running scan.
func (m *Manager) StopScan() {
	m.mu.Lock()
	cancel := m.scanCancel
	m.scanCancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (m *Manager) onDiscovered(ctx context.Context, d entry.Discovery) {
	m.StopScan()

	claim, ok := m.tryClaim(d.ID)
	if !ok {
		m.logger.Debugf("ignoring %s: connect in progress", d.ID)
		return
	}
	m.logger.Infof("discovered %s (%s, rssi %d)", d.ID, d.Name, d.RSSI)

	// The radio's event loop delivers discoveries; don't dial on it.
	go m.connect(ctx, d.ID, claim)
}

// Connect claims id and runs the connect sequence: dial, settle, service
// discovery, handshake and bonding. It returns ErrConnectInProgress without
// dialing if an identity is already claimed.
func (m *Manager) Connect(ctx context.Context, id entry.PeripheralID) error {
	claim, ok := m.tryClaim(id)
	if !ok {
		return ErrConnectInProgress
	}
	return m.connect(ctx, id, claim)
}

func (m *Manager) tryClaim(id entry.PeripheralID) (uint64, bool) {
	m.mu.Lock()
	if !m.id.IsZero() || id.IsZero() {
		m.mu.Unlock()
		return 0, false
	}
	m.id = id
	m.claim++
	claim := m.claim
	m.setStateLocked(Connecting)
	m.mu.Unlock()

	m.observers.Notify(Connecting)
	return claim, true
}

func (m *Manager) connect(ctx context.Context, id entry.PeripheralID, claim uint64) error {
	logger := m.logger.ChildLogger(map[string]interface{}{"peripheral": id.String()})
	logger.Info("connecting")

	link, err := m.radio.Dial(ctx, id)
	if err != nil {
		return m.fail(logger, claim, nil, errors.Wrapf(entry.ErrBLEUnavailable, "can't dial: %v", err))
	}

	select {
	case <-m.clock.After(m.settle):
	case <-ctx.Done():
		return m.fail(logger, claim, link, ctx.Err())
	}

	if err := link.DiscoverServices(ctx); err != nil {
		return m.fail(logger, claim, link, errors.Wrapf(entry.ErrBLEUnavailable, "can't discover services: %v", err))
	}

	if !m.transition(claim, HandshakeInProgress) {
		return m.fail(logger, claim, link, errors.New("connect aborted"))
	}

	if err := m.auth.Authenticate(ctx, link); err != nil {
		return m.fail(logger, claim, link, errors.Wrap(err, "handshake failed"))
	}

	// The bond is saved under the claim check so a Disconnect racing the
	// handshake can't have its cleared bond written back.
	m.mu.Lock()
	if m.claim != claim || m.id != id {
		m.mu.Unlock()
		return m.fail(logger, claim, link, errors.New("connect aborted"))
	}
	if err := m.bonds.Save(id); err != nil {
		logger.Errorf("can't persist bond: %v", err)
	}
	m.link = link
	m.connected = true
	m.setStateLocked(Ready)
	m.mu.Unlock()

	m.observers.Notify(Ready)
	logger.Info("ready")

	go m.watch(link, claim)
	return nil
}

// transition moves to s if claim is still current.
func (m *Manager) transition(claim uint64, s State) bool {
	m.mu.Lock()
	if m.claim != claim || m.id.IsZero() {
		m.mu.Unlock()
		return false
	}
	m.setStateLocked(s)
	m.mu.Unlock()

	m.observers.Notify(s)
	return true
}

func (m *Manager) fail(logger entry.Logger, claim uint64, link entry.Link, err error) error {
	logger.Errorf("connect failed: %v", err)

	if link != nil {
		if derr := link.Disconnect(); derr != nil {
			logger.Warnf("can't drop link: %v", derr)
		}
	}

	m.mu.Lock()
	released := m.claim == claim && !m.id.IsZero()
	if released {
		m.id = ""
		m.setStateLocked(Disconnected)
	}
	m.mu.Unlock()

	if released {
		m.observers.Notify(Disconnected)
	}
	return err
}

// watch clears the session when the peripheral drops this link.
func (m *Manager) watch(link entry.Link, claim uint64) {
	<-link.Disconnected()

	m.mu.Lock()
	current := m.claim == claim && m.link != nil
	if current {
		m.id = ""
		m.link = nil
		m.connected = false
		m.setStateLocked(Disconnected)
	}
	m.mu.Unlock()

	if current {
		m.logger.Warnf("%s disconnected", link.ID())
		m.observers.Notify(Disconnected)
	}
}

// Disconnect forgets the bonded peripheral and drops the current link.
// Any in-flight connect is invalidated before the bond is cleared, and the
// bond is cleared before the link teardown, so neither a late handshake
// nor a failing teardown can leave the reconnect loop pointed at the old
// actuator.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	m.claim++
	link := m.link
	m.mu.Unlock()

	berr := m.bonds.Clear()
	if berr != nil {
		m.logger.Errorf("can't clear bond: %v", berr)
	}

	defer func() {
		m.mu.Lock()
		m.id = ""
		m.link = nil
		m.connected = false
		changed := m.setStateLocked(Disconnected)
		m.mu.Unlock()

		if changed {
			m.observers.Notify(Disconnected)
		}
	}()

	if link != nil {
		if err := link.Disconnect(); err != nil {
			m.logger.Warnf("can't disconnect %s: %v", link.ID(), err)
		} else {
			m.logger.Infof("disconnected %s", link.ID())
		}
	}

	return berr
}

// Close stops scanning and drops the current link but keeps the bond, so
// the next process reconnects to the same actuator.
func (m *Manager) Close() error {
	m.StopScan()

	m.mu.Lock()
	link := m.link
	m.id = ""
	m.link = nil
	m.connected = false
	m.claim++
	changed := m.setStateLocked(Idle)
	m.mu.Unlock()

	if changed {
		m.observers.Notify(Idle)
	}
	if link == nil {
		return nil
	}
	return link.Disconnect()
}

// Run is the reconnect loop. It checks immediately and then every
// reconnect interval: when no identity is current it connects to the
// bonded peripheral. Run returns when ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.reconnect)
	defer ticker.Stop()

	for {
		m.reconnectOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) reconnectOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := m.permission(); err != nil {
		m.logger.Debugf("skipping reconnect: %v", err)
		return
	}

	m.mu.Lock()
	busy := !m.id.IsZero()
	m.mu.Unlock()
	if busy {
		return
	}

	id, ok, err := m.bonds.Find()
	if err != nil {
		m.logger.Errorf("can't read bond: %v", err)
		return
	}
	if !ok {
		return
	}

	if err := m.Connect(ctx, id); err != nil && !errors.Is(err, ErrConnectInProgress) {
		m.logger.Debugf("reconnect to %s failed: %v", id, err)
	}
}

// WriteCommand writes payload to the command characteristic of the
// current peripheral. It fails with entry.ErrNotConnected when no link is
// ready.
func (m *Manager) WriteCommand(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	link, connected := m.link, m.connected
	m.mu.Unlock()

	if !connected || link == nil {
		return entry.ErrNotConnected
	}
	if err := link.WriteCharacteristic(ctx, entry.ServiceUUID, entry.CommandCharUUID, payload); err != nil {
		return errors.Wrapf(entry.ErrBLEUnavailable, "can't write command: %v", err)
	}
	return nil
}

// Connected reports whether a handshaken link is ready.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	s := Status{
		State:     m.state,
		StateName: m.state.String(),
		ID:        m.id.String(),
		Connected: m.connected,
		Scanning:  m.scanCancel != nil,
	}
	m.mu.Unlock()

	if _, ok, err := m.bonds.Find(); err == nil {
		s.Bonded = ok
	}
	return s
}

// Observe registers f to be called on every state change.
func (m *Manager) Observe(f func(State)) *entry.Subscription {
	return m.observers.Observe(f)
}

// must hold m.mu
func (m *Manager) setStateLocked(s State) bool {
	if m.state == s {
		return false
	}
	m.logger.Debugf("state %s -> %s", m.state, s)
	m.state = s
	return true
}
