package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFunc(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(5*time.Second, func() { fired++ })

	c.Advance(4 * time.Second)
	if fired != 0 {
		t.Fatalf("fired early")
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("expected one call, got %d", fired)
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("one-shot fired %d times", fired)
	}
}

func TestFakeTimerStop(t *testing.T) {
	c := Fake(epoch)
	tm := c.AfterFunc(time.Second, func() { t.Fatal("stopped timer fired") })
	if !tm.Stop() {
		t.Fatal("expected pending timer to stop")
	}
	if tm.Stop() {
		t.Fatal("second stop should report false")
	}
	c.Advance(2 * time.Second)
	if c.PendingCount() != 0 {
		t.Fatalf("expected no pending waiters, got %d", c.PendingCount())
	}
}

func TestFakeTicker(t *testing.T) {
	c := Fake(epoch)
	tk := c.NewTicker(5 * time.Second)
	defer tk.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-tk.C:
	default:
		t.Fatal("expected tick")
	}

	c.Advance(5 * time.Second)
	select {
	case <-tk.C:
	default:
		t.Fatal("expected second tick")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("After did not fire")
	}
}
