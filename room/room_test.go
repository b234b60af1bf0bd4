package room

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/store"
)

func TestRosterAddRevokeRestoresBytes(t *testing.T) {
	s := store.NewMemory()
	r := NewRoster(s)

	if err := r.Add(entry.Member{ID: 1, Name: "Bob", CompanyID: 42}); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(entry.Member{ID: 3, Name: "Carol", CompanyID: 42}); err != nil {
		t.Fatal(err)
	}
	before, _, _ := s.Get(entry.KeyMembers)

	if err := r.Add(entry.Member{ID: 7, Name: "Alice", CompanyID: 42}); err != nil {
		t.Fatal(err)
	}
	if err := r.Revoke(7); err != nil {
		t.Fatal(err)
	}

	after, _, _ := s.Get(entry.KeyMembers)
	if !bytes.Equal(before, after) {
		t.Fatalf("roster changed after add+revoke:\n%s\n%s", before, after)
	}
}

func TestRosterAddRevokeOnEmptyStore(t *testing.T) {
	s := store.NewMemory()
	r := NewRoster(s)

	if err := r.Add(entry.Member{ID: 7, Name: "Alice", CompanyID: 42}); err != nil {
		t.Fatal(err)
	}
	if err := r.Revoke(7); err != nil {
		t.Fatal(err)
	}

	if v, ok, _ := s.Get(entry.KeyMembers); ok {
		t.Fatalf("expected no stored roster after add+revoke, got %q", v)
	}
}

func TestRosterAddRevokeKeepsForeignEncoding(t *testing.T) {
	s := store.NewMemory()
	before := []byte(`[{"id": 1, "name": "Bob", "companyId": 42, "badge": "A1"}]`)
	if err := s.Set(entry.KeyMembers, before); err != nil {
		t.Fatal(err)
	}
	r := NewRoster(s)

	if err := r.Add(entry.Member{ID: 7, Name: "Alice", CompanyID: 42}); err != nil {
		t.Fatal(err)
	}
	if err := r.Revoke(7); err != nil {
		t.Fatal(err)
	}

	after, _, _ := s.Get(entry.KeyMembers)
	if !bytes.Equal(before, after) {
		t.Fatalf("roster changed after add+revoke:\n%s\n%s", before, after)
	}
}

func TestRosterRevokeAfterOtherWrite(t *testing.T) {
	s := store.NewMemory()
	r := NewRoster(s)

	if err := r.Add(entry.Member{ID: 7, Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(entry.Member{ID: 3, Name: "Carol"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Revoke(7); err != nil {
		t.Fatal(err)
	}

	members, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].ID != 3 {
		t.Fatalf("unexpected roster %+v", members)
	}

	if err := r.Revoke(3); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := s.Get(entry.KeyMembers); string(v) != "[]" {
		t.Fatalf("expected empty roster, got %q", v)
	}
}

func TestRosterRejectsDuplicate(t *testing.T) {
	r := NewRoster(store.NewMemory())
	if err := r.Add(entry.Member{ID: 7, Name: "Alice"}); err != nil {
		t.Fatal(err)
	}

	err := r.Add(entry.Member{ID: 7, Name: "Alice again"})
	if !errors.Is(err, ErrDuplicateMember) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	members, _ := r.List()
	if len(members) != 1 || members[0].Name != "Alice" {
		t.Fatalf("unexpected roster %+v", members)
	}
}

func TestRosterRevokeUnknown(t *testing.T) {
	r := NewRoster(store.NewMemory())
	if err := r.Revoke(9); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRosterRejectsGuestID(t *testing.T) {
	r := NewRoster(store.NewMemory())
	if err := r.Add(entry.Member{ID: entry.GuestID}); err == nil {
		t.Fatal("guest id must not join the roster")
	}
}

func TestRosterReadsExistingJSON(t *testing.T) {
	s := store.NewMemory()
	s.Set(entry.KeyMembers, []byte(`[{"id":7,"name":"Alice","companyId":42}]`))

	ok, err := NewRoster(s).Contains(7)
	if err != nil || !ok {
		t.Fatalf("expected member 7, ok=%v err=%v", ok, err)
	}
}

func TestRosterCorruptJSON(t *testing.T) {
	s := store.NewMemory()
	s.Set(entry.KeyMembers, []byte(`{not json`))

	if _, err := NewRoster(s).List(); !errors.Is(err, entry.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	st := NewSettings(store.NewMemory())

	if _, ok, _ := st.CompanyID(); ok {
		t.Fatal("company id should be unset")
	}
	st.SetCompanyID(" 42 ")
	if id, ok, _ := st.CompanyID(); !ok || id != "42" {
		t.Fatalf("unexpected company id %q", id)
	}
	st.SetCompanyID("")
	if _, ok, _ := st.CompanyID(); ok {
		t.Fatal("empty company id counts as unset")
	}

	if allow, _ := st.AllowGuest(); allow {
		t.Fatal("guests allowed by default")
	}
	st.SetAllowGuest(true)
	if allow, _ := st.AllowGuest(); !allow {
		t.Fatal("guests not allowed after enabling")
	}

	st.SetRoomName("Lobby")
	if name, _ := st.RoomName(); name != "Lobby" {
		t.Fatalf("unexpected room name %q", name)
	}
}

func TestLogAppendRecent(t *testing.T) {
	l := NewLog(store.NewMemory())
	base := time.Unix(1700000000, 0)

	for i := int64(1); i <= 3; i++ {
		if err := l.Append(entry.NewEntryLogRecord(i, "m", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := l.List()
	if len(all) != 3 || all[0].ID != 1 || all[2].ID != 3 {
		t.Fatalf("log not newest-last: %+v", all)
	}

	recent, _ := l.Recent(2)
	if len(recent) != 2 || recent[0].ID != 3 || recent[1].ID != 2 {
		t.Fatalf("recent not newest-first: %+v", recent)
	}

	if recent[0].Timestamp != base.Add(3*time.Second).UnixNano()/int64(time.Millisecond) {
		t.Fatalf("unexpected timestamp %d", recent[0].Timestamp)
	}
}
