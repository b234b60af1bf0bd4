package room

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/beblucech/entry"
)

var (
	ErrDuplicateMember = errors.New("member already granted")
	ErrMemberNotFound  = errors.New("member not found")
)

// Roster is the set of members authorized for the room, keyed by id.
//
// Revoking a member this Roster added, with no other write in between,
// puts back exactly what was stored before the Add, including absence.
type Roster struct {
	mu    sync.Mutex
	store entry.Store
	undo  map[int64]snapshot
}

// snapshot records the stored roster around one Add.
type snapshot struct {
	prior   []byte
	present bool
	wrote   []byte
}

func NewRoster(store entry.Store) *Roster {
	return &Roster{store: store, undo: map[int64]snapshot{}}
}

// List returns the members in insertion order.
func (r *Roster) List() ([]entry.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Contains reports whether id is on the roster.
func (r *Roster) Contains(id int64) (bool, error) {
	_, ok, err := r.Find(id)
	return ok, err
}

// Find returns the member with id.
func (r *Roster) Find(id int64) (entry.Member, bool, error) {
	members, err := r.List()
	if err != nil {
		return entry.Member{}, false, err
	}
	for _, m := range members {
		if m.ID == id {
			return m, true, nil
		}
	}
	return entry.Member{}, false, nil
}

// Add appends m. Ids are unique; adding a known id fails with ErrDuplicateMember.
func (r *Roster) Add(m entry.Member) error {
	if m.ID == entry.GuestID {
		return errors.Errorf("id %d is reserved for guests", m.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	raw, present, members, err := r.read()
	if err != nil {
		return err
	}
	for _, v := range members {
		if v.ID == m.ID {
			return errors.Wrapf(ErrDuplicateMember, "member %s", v.Name)
		}
	}

	out, err := jsoniter.Marshal(append(members, m))
	if err != nil {
		return errors.Wrapf(entry.ErrStorage, "encode %s: %s", entry.KeyMembers, err)
	}
	if err := r.store.Set(entry.KeyMembers, out); err != nil {
		return err
	}

	r.undo[m.ID] = snapshot{prior: raw, present: present, wrote: out}
	return nil
}

// Revoke removes the member with id.
func (r *Roster) Revoke(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, present, members, err := r.read()
	if err != nil {
		return err
	}

	kept := make([]entry.Member, 0, len(members))
	for _, v := range members {
		if v.ID != id {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(members) {
		return errors.Wrapf(ErrMemberNotFound, "id %d", id)
	}

	snap, ok := r.undo[id]
	delete(r.undo, id)
	if ok && present && bytes.Equal(raw, snap.wrote) {
		if !snap.present {
			return r.store.Delete(entry.KeyMembers)
		}
		return r.store.Set(entry.KeyMembers, snap.prior)
	}

	return storeJSON(r.store, entry.KeyMembers, kept)
}

// must hold r.mu
func (r *Roster) load() ([]entry.Member, error) {
	_, _, members, err := r.read()
	return members, err
}

// read returns the stored bytes alongside the decoded members.
// must hold r.mu
func (r *Roster) read() ([]byte, bool, []entry.Member, error) {
	raw, present, err := r.store.Get(entry.KeyMembers)
	if err != nil {
		return nil, false, nil, errors.Wrap(err, "can't load roster")
	}

	members := make([]entry.Member, 0)
	if present && len(raw) > 0 {
		if err := jsoniter.Unmarshal(raw, &members); err != nil {
			return nil, false, nil, errors.Wrapf(entry.ErrStorage, "can't load roster: decode %s: %s", entry.KeyMembers, err)
		}
	}
	if members == nil {
		members = make([]entry.Member, 0)
	}
	return raw, present, members, nil
}
