// Package bond persists the identity of the paired actuator so the
// connection manager can reconnect without a fresh discovery.
package bond

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
)

// Manager stores at most one bonded peripheral.
type Manager interface {
	// Find returns the bonded peripheral, if any.
	Find() (entry.PeripheralID, bool, error)

	// Save records id as the bonded peripheral.
	Save(id entry.PeripheralID) error

	// Clear forgets the bonded peripheral.
	Clear() error
}

type manager struct {
	lock  sync.RWMutex
	store entry.Store
}

// NewManager returns a Manager persisting into store under entry.KeyPeripheralID.
func NewManager(store entry.Store) Manager {
	return &manager{store: store}
}

func (m *manager) Find() (entry.PeripheralID, bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	v, ok, err := m.store.Get(entry.KeyPeripheralID)
	if err != nil {
		return "", false, errors.Wrap(err, "can't load bond")
	}

	//an explicit disconnect leaves an empty value behind
	id := entry.NewPeripheralID(string(v))
	if !ok || id.IsZero() {
		return "", false, nil
	}

	return id, true, nil
}

func (m *manager) Save(id entry.PeripheralID) error {
	if id.IsZero() {
		return errors.New("empty peripheral id")
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.store.Set(entry.KeyPeripheralID, []byte(id.String())); err != nil {
		return errors.Wrapf(err, "can't save bond for %s", id)
	}
	return nil
}

func (m *manager) Clear() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.store.Set(entry.KeyPeripheralID, []byte{}); err != nil {
		return errors.Wrap(err, "can't clear bond")
	}
	return nil
}
