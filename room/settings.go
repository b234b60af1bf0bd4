package room

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
)

// Settings are the scalar configuration values of the room, stored as strings.
type Settings struct {
	store entry.Store
}

func NewSettings(store entry.Store) *Settings {
	return &Settings{store: store}
}

// CompanyID returns the configured company id. An empty value counts as unset.
func (s *Settings) CompanyID() (string, bool, error) {
	v, err := s.get(entry.KeyCompanyID)
	if err != nil {
		return "", false, err
	}
	return v, v != "", nil
}

func (s *Settings) SetCompanyID(id string) error {
	return s.set(entry.KeyCompanyID, strings.TrimSpace(id))
}

func (s *Settings) RoomName() (string, error) {
	return s.get(entry.KeyRoomName)
}

func (s *Settings) SetRoomName(name string) error {
	return s.set(entry.KeyRoomName, strings.TrimSpace(name))
}

// AllowGuest reports whether guest passes are admitted. Only "true" enables it.
func (s *Settings) AllowGuest() (bool, error) {
	v, err := s.get(entry.KeyAllowGuest)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (s *Settings) SetAllowGuest(allow bool) error {
	v := "false"
	if allow {
		v = "true"
	}
	return s.set(entry.KeyAllowGuest, v)
}

func (s *Settings) get(key string) (string, error) {
	v, ok, err := s.store.Get(key)
	if err != nil {
		return "", errors.Wrapf(err, "can't load %s", key)
	}
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(string(v)), nil
}

func (s *Settings) set(key, value string) error {
	if err := s.store.Set(key, []byte(value)); err != nil {
		return errors.Wrapf(err, "can't save %s", key)
	}
	return nil
}
