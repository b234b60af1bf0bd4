package command

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/clock"
)

// DefaultPulse is how long the lock stays open after Unlock.
const DefaultPulse = 5 * time.Second

// Writer writes payloads to the actuator's command characteristic.
// It must fail fast with entry.ErrNotConnected when no peripheral is current.
type Writer interface {
	WriteCommand(ctx context.Context, payload []byte) error
}

// Channel sends commands over a Writer. Writes are never retried.
type Channel struct {
	w      Writer
	clock  clock.Clock
	pulse  time.Duration
	logger entry.Logger

	mu      sync.Mutex
	pending int
	wg      sync.WaitGroup
}

// Option configures a Channel.
type Option func(*Channel)

// OptClock sets the clock used for the unlock pulse.
func OptClock(c clock.Clock) Option {
	return func(ch *Channel) { ch.clock = c }
}

// OptPulse overrides DefaultPulse.
func OptPulse(d time.Duration) Option {
	return func(ch *Channel) { ch.pulse = d }
}

// OptLogger sets the logger.
func OptLogger(l entry.Logger) Option {
	return func(ch *Channel) { ch.logger = l }
}

// NewChannel returns a Channel writing through w.
func NewChannel(w Writer, opts ...Option) *Channel {
	ch := &Channel{
		w:     w,
		clock: clock.Real(),
		pulse: DefaultPulse,
	}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.logger == nil {
		ch.logger = entry.Component("command")
	}
	return ch
}

// Send writes op with params.
func (ch *Channel) Send(ctx context.Context, op Opcode, params []byte) error {
	cmd := Command{Opcode: op, Params: params}
	if err := ch.w.WriteCommand(ctx, cmd.Marshal()); err != nil {
		return errors.Wrapf(err, "can't send %s", op)
	}
	ch.logger.Debugf("sent %s", op)
	return nil
}

// Unlock opens the lock and schedules the Close that ends the pulse.
// If Open fails nothing is scheduled and the error is returned.
func (ch *Channel) Unlock(ctx context.Context) error {
	if err := ch.Send(ctx, Open, nil); err != nil {
		return err
	}
	ch.logger.Info("entry unlocked")

	ch.mu.Lock()
	ch.pending++
	ch.mu.Unlock()
	ch.wg.Add(1)

	ch.clock.AfterFunc(ch.pulse, func() {
		defer ch.wg.Done()
		defer func() {
			ch.mu.Lock()
			ch.pending--
			ch.mu.Unlock()
		}()

		if err := ch.Send(context.Background(), Close, nil); err != nil {
			ch.logger.Errorf("can't close after pulse: %v", err)
			return
		}
		ch.logger.Info("entry closed")
	})

	return nil
}

// Pending returns the number of scheduled Close commands.
func (ch *Channel) Pending() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.pending
}

// Wait blocks until every scheduled Close has been sent or has failed.
func (ch *Channel) Wait() {
	ch.wg.Wait()
}
