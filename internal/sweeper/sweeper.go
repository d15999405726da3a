package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is how often a sweep runs when no interval is given.
const DefaultInterval = 5 * time.Minute

// Target is something that can drop its expired entries.
type Target interface {
	Sweep(ctx context.Context, now time.Time) (removed int, err error)
}

// TargetFunc adapts an ordinary function to the Target interface.
type TargetFunc func(ctx context.Context, now time.Time) (int, error)

// Sweep calls f(ctx, now).
func (f TargetFunc) Sweep(ctx context.Context, now time.Time) (int, error) {
	return f(ctx, now)
}

// Logger is the subset of oidcmetadata.Logger the sweeper writes to.
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// State is the lifecycle state of a Sweeper.
type State int

const (
	// Idle: constructed, not started.
	Idle State = iota
	// Running: the loop goroutine is alive.
	Running
	// Stopped is terminal.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sweeper periodically asks every target to drop expired entries.
//
// The interval is a coarse cleanup period, not an expiry timer: readers must
// still check expiry themselves.
type Sweeper struct {
	interval time.Duration
	targets  map[string]Target
	names    []string
	logger   Logger
	now      func() time.Time
	onSweep  func(name string, removed int, err error)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock sets the time source handed to targets. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnSweep registers a hook called after each target is swept.
func WithOnSweep(fn func(name string, removed int, err error)) Option {
	return func(s *Sweeper) {
		s.onSweep = fn
	}
}

// WithTarget adds a named target. Targets are swept in the order added.
func WithTarget(name string, t Target) Option {
	return func(s *Sweeper) {
		if _, exists := s.targets[name]; !exists {
			s.names = append(s.names, name)
		}
		s.targets[name] = t
	}
}

// New builds an idle Sweeper. A non-positive interval means DefaultInterval.
func New(interval time.Duration, opts ...Option) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s := &Sweeper{
		interval: interval,
		targets:  make(map[string]Target),
		logger:   discard{},
		now:      time.Now,
		state:    Idle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the loop. It is a no-op unless the Sweeper is Idle.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = Running

	go s.loop(ctx, s.done)
}

// Stop cancels the loop, interrupting a sleep or a scan in progress, and
// waits for it to exit. No sweep runs after Stop returns. Stop is
// idempotent and safe to call from any goroutine.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	state, cancel, done := s.state, s.cancel, s.done
	s.state = Stopped
	s.mu.Unlock()

	if state != Running {
		return
	}
	cancel()
	<-done
}

// State returns the current lifecycle state.
func (s *Sweeper) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RunOnce sweeps every target once, synchronously, and returns the total
// number of entries removed.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	now := s.now()

	var total int
	for _, name := range s.names {
		if ctx.Err() != nil {
			break
		}
		total += s.sweepTarget(ctx, name, now)
	}
	return total
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// sweepTarget never lets a failing target take the loop down.
func (s *Sweeper) sweepTarget(ctx context.Context, name string, now time.Time) (removed int) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			removed = 0
		}
		if err != nil && ctx.Err() == nil {
			s.logger.Errorf("sweep of %s cache failed: %v", name, err)
		}
		if removed > 0 {
			s.logger.Debugf("evicted %d expired entries from %s cache", removed, name)
		}
		if s.onSweep != nil {
			s.onSweep(name, removed, err)
		}
	}()

	removed, err = s.targets[name].Sweep(ctx, now)
	return removed
}

type discard struct{}

func (discard) Debugf(string, ...interface{}) {}
func (discard) Errorf(string, ...interface{}) {}
