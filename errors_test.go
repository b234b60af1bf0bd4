package entry

import (
	"testing"

	"github.com/pkg/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{nil, nil},
		{errors.New("other"), nil},
		{ErrNotConnected, ErrBLEUnavailable},
		{errors.Wrap(ErrStorage, "write logs"), ErrStorage},
		{errors.Wrapf(errors.Wrap(ErrInvalidToken, "prefix"), "token %q", "x"), ErrInvalidToken},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Fatalf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestEntryLogRecordDisplay(t *testing.T) {
	r := EntryLogRecord{ID: GuestID, Name: "whoever", Timestamp: 1}
	if r.DisplayName() != "Guest" || r.DisplayID() != "#" {
		t.Fatalf("guest record displayed as %s/%s", r.DisplayName(), r.DisplayID())
	}

	r = EntryLogRecord{ID: 7, Name: "Alice"}
	if r.DisplayName() != "Alice" || r.DisplayID() != "7" {
		t.Fatalf("member record displayed as %s/%s", r.DisplayName(), r.DisplayID())
	}
}

func TestNewPeripheralID(t *testing.T) {
	if id := NewPeripheralID(" AA:BB:CC:DD:EE:FF "); id != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("unexpected id %q", id)
	}
	if !PeripheralID("").IsZero() {
		t.Fatal("empty id should be zero")
	}
}

func TestObservers(t *testing.T) {
	var o Observers[int]
	var got []int

	sub := o.Observe(func(v int) { got = append(got, v) })
	o.Notify(1)
	sub.Release()
	sub.Release()
	o.Notify(2)

	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("unexpected notifications %v", got)
	}
}
