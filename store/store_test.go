package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/pkg/errors"

	"github.com/beblucech/entry"
)

func newTestStore(t *testing.T) (entry.Store, string, *age.X25519Identity) {
	dir := t.TempDir()
	id, err := GenerateIdentity(filepath.Join(dir, "identity.txt"))
	if err != nil {
		t.Fatalf("failed to generate identity: %v", err)
	}
	filename := filepath.Join(dir, "entry.store")
	return New(filename, id), filename, id
}

func TestFileStoreSetGet(t *testing.T) {
	s, _, _ := newTestStore(t)

	if _, ok, err := s.Get(entry.KeyCompanyID); err != nil || ok {
		t.Fatalf("expected missing key on empty store, got ok=%v err=%v", ok, err)
	}

	if err := s.Set(entry.KeyCompanyID, []byte("42")); err != nil {
		t.Fatalf("expected nil error but got %s instead", err)
	}
	if err := s.Set(entry.KeyRoomName, []byte("lobby")); err != nil {
		t.Fatalf("expected nil error but got %s instead", err)
	}

	v, ok, err := s.Get(entry.KeyCompanyID)
	if err != nil || !ok {
		t.Fatalf("expected to find key: ok=%v err=%v", ok, err)
	}
	if string(v) != "42" {
		t.Fatalf("got %q, want 42", v)
	}
}

func TestFileStoreReopen(t *testing.T) {
	s, filename, id := newTestStore(t)
	if err := s.Set(entry.KeyPeripheralID, []byte("aa:bb")); err != nil {
		t.Fatal(err)
	}

	reopened := New(filename, id)
	v, ok, err := reopened.Get(entry.KeyPeripheralID)
	if err != nil || !ok || string(v) != "aa:bb" {
		t.Fatalf("reopened store lost value: %q ok=%v err=%v", v, ok, err)
	}
}

func TestFileStoreDelete(t *testing.T) {
	s, filename, id := newTestStore(t)

	if err := s.Delete(entry.KeyMembers); err != nil {
		t.Fatalf("expected nil error deleting from an empty store, got %s", err)
	}
	if _, err := os.Stat(filename); !os.IsNotExist(err) {
		t.Fatalf("delete on an empty store created %s", filename)
	}

	if err := s.Set(entry.KeyMembers, []byte("[]")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(entry.KeyRoomName, []byte("lobby")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(entry.KeyMembers); err != nil {
		t.Fatal(err)
	}

	reopened := New(filename, id)
	if _, ok, err := reopened.Get(entry.KeyMembers); err != nil || ok {
		t.Fatalf("deleted key still present: ok=%v err=%v", ok, err)
	}
	if v, ok, _ := reopened.Get(entry.KeyRoomName); !ok || string(v) != "lobby" {
		t.Fatalf("delete dropped an unrelated key: %q ok=%v", v, ok)
	}
}

func TestFileStoreIsEncrypted(t *testing.T) {
	s, filename, _ := newTestStore(t)
	if err := s.Set(entry.KeyRoomName, []byte("secret-room-name")); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("secret-room-name")) {
		t.Fatal("store file contains plaintext")
	}
}

func TestFileStoreWrongIdentity(t *testing.T) {
	s, filename, _ := newTestStore(t)
	if err := s.Set(entry.KeyRoomName, []byte("x")); err != nil {
		t.Fatal(err)
	}

	other, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = New(filename, other).Get(entry.KeyRoomName)
	if !errors.Is(err, entry.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestLoadIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.txt")
	gen, err := LoadOrGenerateIdentity(path)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadOrGenerateIdentity(path)
	if err != nil {
		t.Fatal(err)
	}
	if gen.String() != loaded.String() {
		t.Fatal("loaded identity differs from generated identity")
	}

	if _, err := GenerateIdentity(path); err == nil {
		t.Fatal("expected refusal to overwrite identity")
	}
}

func TestMemoryCopies(t *testing.T) {
	m := NewMemory()
	v := []byte("abc")
	if err := m.Set("k", v); err != nil {
		t.Fatal(err)
	}
	v[0] = 'x'

	got, ok, _ := m.Get("k")
	if !ok || string(got) != "abc" {
		t.Fatalf("memory store aliased caller buffer: %q", got)
	}
}
