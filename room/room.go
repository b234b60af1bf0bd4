// Package room holds the data of one installation: who may enter
// (the roster), how the room is configured (settings) and who entered
// (the entry log). Everything is persisted through an entry.Store.
package room

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/beblucech/entry"
)

// Room bundles the accessors sharing one store.
type Room struct {
	Roster   *Roster
	Settings *Settings
	Log      *Log
}

// New returns the room persisted in store.
func New(store entry.Store) *Room {
	return &Room{
		Roster:   NewRoster(store),
		Settings: NewSettings(store),
		Log:      NewLog(store),
	}
}

func loadJSON(store entry.Store, key string, v interface{}) (bool, error) {
	in, ok, err := store.Get(key)
	if err != nil {
		return false, err
	}
	if !ok || len(in) == 0 {
		return false, nil
	}

	if err := jsoniter.Unmarshal(in, v); err != nil {
		return false, errors.Wrapf(entry.ErrStorage, "decode %s: %s", key, err)
	}
	return true, nil
}

func storeJSON(store entry.Store, key string, v interface{}) error {
	out, err := jsoniter.Marshal(v)
	if err != nil {
		return errors.Wrapf(entry.ErrStorage, "encode %s: %s", key, err)
	}
	return store.Set(key, out)
}
