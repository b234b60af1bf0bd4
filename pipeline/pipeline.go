// Package pipeline turns decoded QR tokens into entry decisions.
//
// One scan is processed at a time. A scan holds the pipeline lock from the
// moment it is accepted until a fixed display delay after its outcome;
// tokens delivered in between are dropped, which also debounces the camera
// reporting the same code many times.
package pipeline

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/clock"
	"github.com/beblucech/entry/room"
	"github.com/beblucech/entry/validation"
)

// DefaultDisplayDelay is how long an outcome is shown and the lock held.
const DefaultDisplayDelay = 5000 * time.Millisecond

type LinkStatus interface {
	Connected() bool
}

type NetworkStatus interface {
	Online() bool
}

// Validator checks a token with the remote service.
type Validator interface {
	Check(ctx context.Context, token string) (*validation.Result, error)
}

type Unlocker interface {
	Unlock(ctx context.Context) error
}

// Pipeline validates scans for one room.
type Pipeline struct {
	room      *room.Room
	link      LinkStatus
	network   NetworkStatus
	validator Validator
	unlocker  Unlocker

	clock  clock.Clock
	delay  time.Duration
	prefix string
	logger entry.Logger

	mu      sync.Mutex
	mode    Mode
	locked  bool
	display Outcome

	observers entry.Observers[Outcome]
}

// An Option configures a Pipeline.
type Option func(*Pipeline)

func OptClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// OptDisplayDelay overrides DefaultDisplayDelay.
func OptDisplayDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.delay = d }
}

// OptTokenPrefix overrides entry.TokenPrefix.
func OptTokenPrefix(prefix string) Option {
	return func(p *Pipeline) { p.prefix = prefix }
}

func OptMode(m Mode) Option {
	return func(p *Pipeline) { p.mode = m }
}

func OptLogger(l entry.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New returns an idle pipeline in ModeEntry.
func New(r *room.Room, link LinkStatus, network NetworkStatus, validator Validator, unlocker Unlocker, opts ...Option) *Pipeline {
	p := &Pipeline{
		room:      r,
		link:      link,
		network:   network,
		validator: validator,
		unlocker:  unlocker,
		clock:     clock.Real(),
		delay:     DefaultDisplayDelay,
		prefix:    entry.TokenPrefix,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = entry.Component("pipeline")
	}
	return p
}

// SetMode switches between entry and enrollment. It takes effect for the
// next accepted scan.
func (p *Pipeline) SetMode(m Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = m
}

func (p *Pipeline) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Submit processes token. It returns false, without any side effect, if
// another scan holds the lock. Otherwise the outcome is returned and the
// lock is released after the display delay, whatever the outcome.
func (p *Pipeline) Submit(ctx context.Context, token string) (out Outcome, accepted bool) {
	p.mu.Lock()
	if p.locked {
		p.mu.Unlock()
		p.logger.Debug("scan in progress, dropping token")
		return Outcome{}, false
	}
	p.locked = true
	mode := p.mode
	p.display = Outcome{State: Processing}
	p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("panic while validating token: %v", r)
			out = Outcome{State: Failed, Err: errors.Errorf("panic: %v", r)}
		}
		p.finish(out)
		accepted = true
	}()

	p.observers.Notify(Outcome{State: Processing})
	out = p.evaluate(ctx, mode, token)
	return out, true
}

func (p *Pipeline) finish(out Outcome) {
	// the release is scheduled even if an observer panics
	defer p.clock.AfterFunc(p.delay, p.release)

	p.mu.Lock()
	p.display = out
	p.mu.Unlock()

	if out.Err != nil {
		p.logger.Infof("scan %s: %v", out.State, out.Err)
	} else {
		p.logger.Infof("scan %s", out.State)
	}
	p.observers.Notify(out)
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.locked = false
	p.display = Outcome{State: Idle}
	p.mu.Unlock()

	p.observers.Notify(Outcome{State: Idle})
}

func (p *Pipeline) evaluate(ctx context.Context, mode Mode, token string) Outcome {
	if mode == ModeEntry && !p.link.Connected() {
		return Outcome{State: DeviceIssue, Err: entry.ErrNotConnected}
	}
	if !p.network.Online() {
		return Outcome{State: NetworkIssue, Err: entry.ErrNetworkUnavailable}
	}

	if !strings.HasPrefix(token, p.prefix) {
		return Outcome{State: Failed, Err: errors.Wrap(entry.ErrInvalidToken, "missing token prefix")}
	}

	company, ok, err := p.room.Settings.CompanyID()
	if err != nil {
		return Outcome{State: Failed, Err: err}
	}
	if !ok {
		return Outcome{State: Failed, Err: errors.Wrap(entry.ErrAuthorizationDenied, "no company configured")}
	}

	res, err := p.validator.Check(ctx, token)
	if err != nil {
		return Outcome{State: Retry, Err: err}
	}
	if !res.IsValid {
		return Outcome{State: Expired, Err: errors.Wrap(entry.ErrInvalidToken, "token rejected by service")}
	}

	member := &entry.Member{ID: res.ID, Name: res.Name, CompanyID: res.CompanyID}
	if strconv.FormatInt(res.CompanyID, 10) != company {
		return Outcome{
			State:  Failed,
			Err:    errors.Wrapf(entry.ErrAuthorizationDenied, "company %d is not %s", res.CompanyID, company),
			Member: member,
		}
	}

	if mode == ModeEnroll {
		return p.enroll(member)
	}
	return p.admit(ctx, member)
}

func (p *Pipeline) admit(ctx context.Context, member *entry.Member) Outcome {
	if member.ID == entry.GuestID {
		allow, err := p.room.Settings.AllowGuest()
		if err != nil {
			return Outcome{State: Failed, Err: err, Member: member}
		}
		if !allow {
			return Outcome{State: Failed, Err: errors.Wrap(entry.ErrAuthorizationDenied, "guests not allowed"), Member: member}
		}
	} else {
		ok, err := p.room.Roster.Contains(member.ID)
		if err != nil {
			return Outcome{State: Failed, Err: err, Member: member}
		}
		if !ok {
			return Outcome{State: Failed, Err: errors.Wrapf(entry.ErrAuthorizationDenied, "%d not on roster", member.ID), Member: member}
		}
	}

	// Record before actuating: an entry that can't be logged is refused.
	rec := entry.NewEntryLogRecord(member.ID, member.Name, p.clock.Now())
	if err := p.room.Log.Append(rec); err != nil {
		return Outcome{State: Failed, Err: err, Member: member}
	}

	if err := p.unlocker.Unlock(ctx); err != nil {
		return Outcome{State: DeviceIssue, Err: err, Member: member}
	}
	return Outcome{State: Success, Member: member}
}

func (p *Pipeline) enroll(member *entry.Member) Outcome {
	if err := p.room.Roster.Add(*member); err != nil {
		return Outcome{State: Failed, Err: err, Member: member}
	}
	p.logger.Infof("enrolled %d (%s)", member.ID, member.Name)
	return Outcome{State: Success, Member: member}
}

// Status reports what the pipeline should display now. Connectivity
// problems take precedence over the outcome of the last scan.
func (p *Pipeline) Status() State {
	p.mu.Lock()
	mode, display := p.mode, p.display
	p.mu.Unlock()

	if mode == ModeEntry && !p.link.Connected() {
		return DeviceIssue
	}
	if !p.network.Online() {
		return NetworkIssue
	}
	return display.State
}

// Locked reports whether a scan holds the lock.
func (p *Pipeline) Locked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

// Observe registers f to be called on every displayed outcome, including
// Processing when a scan is accepted and Idle when the lock is released.
func (p *Pipeline) Observe(f func(Outcome)) *entry.Subscription {
	return p.observers.Observe(f)
}
