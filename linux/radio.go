//go:build linux

// Package linux implements entry.Radio on a local HCI controller.
package linux

import (
	"context"
	"sync"
	"time"

	"github.com/go-ble/ble"
	blelinux "github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/beblucech/entry"
)

// Radio drives one HCI device.
type Radio struct {
	dev    *blelinux.Device
	logger entry.Logger
}

type config struct {
	deviceID      int
	dialerTimeout time.Duration
	logger        entry.Logger
}

// An Option configures a Radio.
type Option func(*config)

// OptDeviceID selects the hci device index.
func OptDeviceID(id int) Option {
	return func(c *config) { c.deviceID = id }
}

// OptDialerTimeout bounds connection establishment.
func OptDialerTimeout(d time.Duration) Option {
	return func(c *config) { c.dialerTimeout = d }
}

func OptLogger(l entry.Logger) Option {
	return func(c *config) { c.logger = l }
}

// NewRadio opens the HCI device. Opening a raw HCI socket needs
// CAP_NET_ADMIN; without it the error wraps entry.ErrPermissionDenied.
func NewRadio(opts ...Option) (*Radio, error) {
	cfg := config{dialerTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = entry.Component("radio")
	}

	dev, err := blelinux.NewDevice(ble.OptDeviceID(cfg.deviceID), ble.OptDialerTimeout(cfg.dialerTimeout))
	if err != nil {
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			return nil, errors.Wrapf(entry.ErrPermissionDenied, "can't open hci%d: %v", cfg.deviceID, err)
		}
		return nil, errors.Wrapf(entry.ErrBLEUnavailable, "can't open hci%d: %v", cfg.deviceID, err)
	}

	cfg.logger.Infof("opened hci%d", cfg.deviceID)
	return &Radio{dev: dev, logger: cfg.logger}, nil
}

// Scan reports peripherals advertising service until ctx is done.
func (r *Radio) Scan(ctx context.Context, service string, h entry.DiscoveryHandler) error {
	u, err := ble.Parse(service)
	if err != nil {
		return errors.Wrapf(err, "invalid service uuid %q", service)
	}

	err = r.dev.Scan(ctx, false, func(a ble.Advertisement) {
		if !advertises(a, u) {
			return
		}
		h(entry.Discovery{
			ID:   entry.NewPeripheralID(a.Addr().String()),
			Name: a.LocalName(),
			RSSI: a.RSSI(),
		})
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return errors.Wrapf(entry.ErrBLEUnavailable, "scan: %v", err)
	}
	return nil
}

// Dial connects to the peripheral with address id.
func (r *Radio) Dial(ctx context.Context, id entry.PeripheralID) (entry.Link, error) {
	cln, err := r.dev.Dial(ctx, ble.NewAddr(id.String()))
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial %s", id)
	}
	return &link{id: id, cln: cln}, nil
}

func advertises(a ble.Advertisement, u ble.UUID) bool {
	for _, s := range a.Services() {
		if s.Equal(u) {
			return true
		}
	}
	return false
}

// Close stops the HCI device.
func (r *Radio) Close() error {
	return r.dev.Stop()
}

type link struct {
	id  entry.PeripheralID
	cln ble.Client

	mu      sync.Mutex
	profile *ble.Profile
}

func (l *link) ID() entry.PeripheralID { return l.id }

func (l *link) DiscoverServices(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.cln.DiscoverProfile(true)
	if err != nil {
		return errors.Wrap(err, "can't discover profile")
	}

	l.mu.Lock()
	l.profile = p
	l.mu.Unlock()
	return nil
}

func (l *link) ReadCharacteristic(ctx context.Context, service, char string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := l.characteristic(service, char)
	if err != nil {
		return nil, err
	}
	return l.cln.ReadCharacteristic(c)
}

func (l *link) WriteCharacteristic(ctx context.Context, service, char string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := l.characteristic(service, char)
	if err != nil {
		return err
	}
	return l.cln.WriteCharacteristic(c, value, false)
}

func (l *link) Disconnect() error {
	return l.cln.CancelConnection()
}

func (l *link) Disconnected() <-chan struct{} {
	return l.cln.Disconnected()
}

func (l *link) characteristic(service, char string) (*ble.Characteristic, error) {
	l.mu.Lock()
	p := l.profile
	l.mu.Unlock()

	if p == nil {
		return nil, errors.New("services not discovered")
	}
	return findCharacteristic(p, service, char)
}

func findCharacteristic(p *ble.Profile, service, char string) (*ble.Characteristic, error) {
	su, err := ble.Parse(service)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid service uuid %q", service)
	}
	cu, err := ble.Parse(char)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid characteristic uuid %q", char)
	}

	for _, s := range p.Services {
		if !s.UUID.Equal(su) {
			continue
		}
		for _, c := range s.Characteristics {
			if c.UUID.Equal(cu) {
				return c, nil
			}
		}
		return nil, errors.Errorf("characteristic %s not found in service %s", char, service)
	}
	return nil, errors.Errorf("service %s not found", service)
}
