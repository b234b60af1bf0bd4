package bond

import (
	"testing"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/store"
)

func TestManagerSaveFindClear(t *testing.T) {
	m := NewManager(store.NewMemory())

	if _, ok, err := m.Find(); err != nil || ok {
		t.Fatalf("expected no bond, got ok=%v err=%v", ok, err)
	}

	if err := m.Save(entry.NewPeripheralID("AA:BB:CC:DD:EE:FF")); err != nil {
		t.Fatalf("failed to save bond: %v", err)
	}

	id, ok, err := m.Find()
	if err != nil || !ok {
		t.Fatalf("expected bond, got ok=%v err=%v", ok, err)
	}
	if id != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("unexpected bond %q", id)
	}

	if err := m.Clear(); err != nil {
		t.Fatalf("failed to clear bond: %v", err)
	}
	if _, ok, _ := m.Find(); ok {
		t.Fatal("bond survived clear")
	}
}

func TestManagerRejectsEmptyID(t *testing.T) {
	m := NewManager(store.NewMemory())
	if err := m.Save(""); err == nil {
		t.Fatal("expected error saving empty id")
	}
}
