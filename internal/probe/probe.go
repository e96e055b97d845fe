package probe

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the outcome of the existence check.
type State int

const (
	// Unknown means no result yet; nothing should be decided on it.
	Unknown State = iota
	// Exists means the user already owns a portfolio.
	Exists
	// Absent means the user has no portfolio, or the check could not tell.
	Absent
)

func (s State) String() string {
	switch s {
	case Exists:
		return "exists"
	case Absent:
		return "absent"
	}
	return "unknown"
}

// DefaultDebounce coalesces triggers arriving within this window.
const DefaultDebounce = 300 * time.Millisecond

// CheckFunc asks the portfolio service whether a portfolio exists.
type CheckFunc func(ctx context.Context) (bool, error)

// Options tune a Probe.
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
	// Observe is called once with the resolved state and the check error.
	Observe func(State, error)
}

// Probe runs one debounced existence check. Every Trigger issues a new
// token; a result is applied only while its token is the latest and the
// probe has not been cancelled. The first applied result is final.
type Probe struct {
	check    CheckFunc
	debounce time.Duration
	logger   *slog.Logger
	observe  func(State, error)

	root       context.Context
	cancelRoot context.CancelFunc

	mu        sync.Mutex
	token     uint64
	timer     *time.Timer
	inflight  context.CancelFunc
	state     State
	err       error
	cancelled bool
	done      chan struct{}
	closed    bool
}

// New returns an idle probe. Nothing runs until Trigger.
func New(check CheckFunc, opts Options) *Probe {
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Probe{
		check:      check,
		debounce:   opts.Debounce,
		logger:     opts.Logger,
		observe:    opts.Observe,
		root:       root,
		cancelRoot: cancel,
		done:       make(chan struct{}),
	}
}

// Trigger schedules the check after the debounce window, superseding any
// pending or in-flight check. It is a no-op once resolved or cancelled.
func (p *Probe) Trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled || p.state != Unknown {
		return
	}

	p.token++
	tok := p.token
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.inflight != nil {
		p.inflight()
		p.inflight = nil
	}
	p.timer = time.AfterFunc(p.debounce, func() { p.fire(tok) })
}

func (p *Probe) fire(tok uint64) {
	p.mu.Lock()
	if p.cancelled || tok != p.token {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(p.root)
	p.inflight = cancel
	p.mu.Unlock()

	exists, err := p.check(ctx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled || tok != p.token {
		p.logger.Debug("discarding stale probe result", slog.Uint64("token", tok))
		return
	}
	p.inflight = nil

	switch {
	case err != nil:
		p.logger.Warn("portfolio existence check failed", slog.Any("error", err))
		p.state, p.err = Absent, err
	case exists:
		p.state = Exists
	default:
		p.state = Absent
	}
	if p.observe != nil {
		p.observe(p.state, p.err)
	}
	p.closeDone()
}

// Wait blocks until the probe resolves, is cancelled, or ctx ends, and
// returns the state at that point.
func (p *Probe) Wait(ctx context.Context) State {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return p.State()
}

// State returns the current state.
func (p *Probe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the error of the resolving check, if it failed.
func (p *Probe) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Cancel tears the probe down: the pending timer is stopped, the in-flight
// check is aborted and any late result is dropped.
func (p *Probe) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return
	}
	p.cancelled = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.cancelRoot()
	p.closeDone()
}

func (p *Probe) closeDone() {
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}
