// Package bletest provides in-memory Radio and Link implementations for
// tests of code built on entry.Radio.
package bletest

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
)

// Link is a fake GATT connection. Characteristic values are keyed by
// characteristic UUID; the service argument is ignored.
type Link struct {
	id entry.PeripheralID

	mu          sync.Mutex
	values      map[string][]byte
	writes      [][]byte
	readErr     error
	writeErr    error
	discoverErr error
	discovered  bool
	disconnects int

	once sync.Once
	done chan struct{}
}

// NewLink returns a connected fake link to id.
func NewLink(id entry.PeripheralID) *Link {
	return &Link{
		id:     id,
		values: make(map[string][]byte),
		done:   make(chan struct{}),
	}
}

func (l *Link) ID() entry.PeripheralID { return l.id }

func (l *Link) DiscoverServices(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.discoverErr != nil {
		return l.discoverErr
	}
	l.discovered = true
	return nil
}

func (l *Link) ReadCharacteristic(ctx context.Context, service, char string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	v, ok := l.values[char]
	if !ok {
		return nil, errors.Errorf("characteristic %s not found", char)
	}
	return append([]byte(nil), v...), nil
}

func (l *Link) WriteCharacteristic(ctx context.Context, service, char string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	l.writes = append(l.writes, append([]byte(nil), value...))
	return nil
}

func (l *Link) Disconnect() error {
	l.mu.Lock()
	l.disconnects++
	l.mu.Unlock()
	l.Drop()
	return nil
}

func (l *Link) Disconnected() <-chan struct{} { return l.done }

// Drop simulates the peripheral going away.
func (l *Link) Drop() {
	l.once.Do(func() { close(l.done) })
}

// SetValue sets the value returned when char is read.
func (l *Link) SetValue(char string, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values[char] = value
}

// FailReads makes every read return err.
func (l *Link) FailReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

// FailWrites makes every write return err.
func (l *Link) FailWrites(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

// FailDiscovery makes DiscoverServices return err.
func (l *Link) FailDiscovery(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.discoverErr = err
}

// Writes returns a copy of every value written so far.
func (l *Link) Writes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.writes))
	copy(out, l.writes)
	return out
}

// Discovered reports whether DiscoverServices succeeded.
func (l *Link) Discovered() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.discovered
}

// Disconnects returns how many times Disconnect was called.
func (l *Link) Disconnects() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disconnects
}

// Radio is a fake host controller. Advertisements queued with Advertise
// are delivered to the running Scan.
type Radio struct {
	// Challenge is installed on every link the radio dials.
	Challenge []byte

	mu       sync.Mutex
	links    map[entry.PeripheralID]*Link
	dials    []entry.PeripheralID
	dialErr  error
	scanErr  error
	gate     chan struct{}
	scanning bool
	scans    int
	adverts  chan entry.Discovery
	started  chan struct{}
}

// NewRadio returns an idle fake radio.
func NewRadio() *Radio {
	return &Radio{
		Challenge: []byte("0123456789abcdef"),
		links:     make(map[entry.PeripheralID]*Link),
		adverts:   make(chan entry.Discovery, 16),
		started:   make(chan struct{}, 16),
	}
}

func (r *Radio) Scan(ctx context.Context, service string, h entry.DiscoveryHandler) error {
	r.mu.Lock()
	if r.scanErr != nil {
		err := r.scanErr
		r.mu.Unlock()
		return err
	}
	r.scanning = true
	r.scans++
	r.mu.Unlock()

	r.started <- struct{}{}

	defer func() {
		r.mu.Lock()
		r.scanning = false
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-r.adverts:
			h(d)
		}
	}
}

func (r *Radio) Dial(ctx context.Context, id entry.PeripheralID) (entry.Link, error) {
	r.mu.Lock()
	r.dials = append(r.dials, id)
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dialErr != nil {
		return nil, r.dialErr
	}

	l, ok := r.links[id]
	if ok {
		select {
		case <-l.Disconnected():
			ok = false
		default:
		}
	}
	if !ok {
		l = NewLink(id)
		l.SetValue(entry.ChallengeCharUUID, r.Challenge)
		r.links[id] = l
	}
	return l, nil
}

// Advertise queues a discovery for the running or next Scan.
func (r *Radio) Advertise(d entry.Discovery) {
	r.adverts <- d
}

// WaitScanStarted blocks until a Scan call has started.
func (r *Radio) WaitScanStarted() {
	<-r.started
}

// SetLink makes Dial to l.ID() return l.
func (r *Radio) SetLink(l *Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[l.ID()] = l
}

// Link returns the last link dialed to id.
func (r *Radio) Link(id entry.PeripheralID) *Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.links[id]
}

// FailDial makes Dial return err.
func (r *Radio) FailDial(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialErr = err
}

// FailScan makes Scan return err immediately.
func (r *Radio) FailScan(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanErr = err
}

// HoldDials blocks Dial until the returned function is called.
func (r *Radio) HoldDials() (release func()) {
	gate := make(chan struct{})
	r.mu.Lock()
	r.gate = gate
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.gate = nil
			r.mu.Unlock()
			close(gate)
		})
	}
}

// Dials returns the ids passed to Dial, in order.
func (r *Radio) Dials() []entry.PeripheralID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entry.PeripheralID(nil), r.dials...)
}

// Scanning reports whether a Scan is running.
func (r *Radio) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanning
}

// Scans returns how many Scan calls have started.
func (r *Radio) Scans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}
