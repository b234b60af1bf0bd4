package command

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/clock"
)

type recordingWriter struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (w *recordingWriter) WriteCommand(_ context.Context, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.payloads = append(w.payloads, append([]byte(nil), payload...))
	return nil
}

func (w *recordingWriter) sent() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.payloads))
	for i, p := range w.payloads {
		out[i] = string(p)
	}
	return out
}

func TestMarshal(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Opcode: Open}, "1|"},
		{Command{Opcode: Close}, "0|"},
		{Command{Opcode: RespondChallenge, Params: []byte("a1b2")}, "3|a1b2"},
	}
	for _, tt := range tests {
		if got := tt.cmd.Marshal(); !bytes.Equal(got, []byte(tt.want)) {
			t.Fatalf("Marshal(%v) = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	cmd, err := Parse([]byte("3|a|b"))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Opcode != RespondChallenge || string(cmd.Params) != "a|b" {
		t.Fatalf("unexpected command %+v", cmd)
	}

	for _, bad := range []string{"", "|x", "x|", "12"} {
		if _, err := Parse([]byte(bad)); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestUnlockPulse(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	w := &recordingWriter{}
	ch := NewChannel(w, OptClock(fc), OptLogger(entry.DiscardLogger()))

	if err := ch.Unlock(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := w.sent(); len(got) != 1 || got[0] != "1|" {
		t.Fatalf("expected Open only, got %q", got)
	}
	if ch.Pending() != 1 {
		t.Fatalf("expected pending close, got %d", ch.Pending())
	}

	fc.Advance(DefaultPulse - time.Millisecond)
	if len(w.sent()) != 1 {
		t.Fatal("closed before the pulse elapsed")
	}

	fc.Advance(time.Millisecond)
	ch.Wait()
	if got := w.sent(); len(got) != 2 || got[1] != "0|" {
		t.Fatalf("expected Close after pulse, got %q", got)
	}
	if ch.Pending() != 0 {
		t.Fatalf("pending closes left: %d", ch.Pending())
	}
}

func TestUnlockWithoutPeripheral(t *testing.T) {
	fc := clock.Fake(time.Unix(0, 0))
	w := &recordingWriter{err: entry.ErrNotConnected}
	ch := NewChannel(w, OptClock(fc), OptLogger(entry.DiscardLogger()))

	err := ch.Unlock(context.Background())
	if !errors.Is(err, entry.ErrBLEUnavailable) {
		t.Fatalf("expected ble unavailable, got %v", err)
	}
	if fc.PendingCount() != 0 || ch.Pending() != 0 {
		t.Fatal("close scheduled although the lock never opened")
	}
}
