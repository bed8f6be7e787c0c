// Package readiness gates the dashboard behind a fixed warm-up period.
//
// A Sequencer starts in Loading. Start issues the staged (cosmetic) loading
// triggers in order and arms a single timer; when it fires the sequencer
// moves to Ready. The transition happens at most once and never before the
// delay has elapsed, however often Complete is called.
package readiness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leanbalancer/admindash/internal/clock"
)

// State is the readiness of the application.
type State int

const (
	Loading State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// DefaultDelay is the observed loading-screen duration.
const DefaultDelay = 4 * time.Second

// Stage is one step of the loading sequence, such as a fade-in. Trigger is
// called once, in order, when the sequence starts.
type Stage struct {
	Name    string
	Trigger func()
}

type Option func(*Sequencer)

// WithStages sets the loading stages issued by Start.
func WithStages(stages ...Stage) Option {
	return func(s *Sequencer) { s.stages = append(s.stages, stages...) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Sequencer) { s.logger = logger }
}

// Sequencer is a two-state machine with one guarded transition.
type Sequencer struct {
	clock  clock.Clock
	delay  time.Duration
	stages []Stage
	logger *zap.Logger

	mu        sync.Mutex
	state     State
	started   bool
	startedAt time.Time
	timer     *clock.Timer
	listeners map[int]func(State)
	nextID    int
	ready     chan struct{}
}

// New returns a Sequencer in Loading. A negative delay is treated as zero.
func New(c clock.Clock, delay time.Duration, opts ...Option) *Sequencer {
	if delay < 0 {
		delay = 0
	}
	s := &Sequencer{
		clock:     c,
		delay:     delay,
		logger:    zap.NewNop(),
		state:     Loading,
		listeners: make(map[int]func(State)),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start issues the loading stages and arms the completion timer. Later
// calls do nothing.
func (s *Sequencer) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.startedAt = s.clock.Now()
	stages := s.stages
	s.mu.Unlock()

	// Every stage is issued before the timer exists, so Ready always
	// follows the last trigger.
	for _, st := range stages {
		s.logger.Debug("loading stage", zap.String("stage", st.Name))
		if st.Trigger != nil {
			st.Trigger()
		}
	}

	s.logger.Info("loading", zap.Duration("delay", s.delay), zap.Int("stages", len(stages)))
	timer := s.clock.AfterFunc(s.delay, func() { s.Complete() })

	s.mu.Lock()
	if s.state == Loading {
		s.timer = timer
	}
	s.mu.Unlock()
}

// Complete performs the Loading → Ready transition. It reports whether this
// call made the transition; it returns false before Start, before the delay
// has elapsed, and on every call after the first successful one.
func (s *Sequencer) Complete() bool {
	s.mu.Lock()
	if !s.started || s.state == Ready {
		s.mu.Unlock()
		return false
	}
	if s.clock.Now().Sub(s.startedAt) < s.delay {
		s.mu.Unlock()
		return false
	}

	s.state = Ready
	s.timer = nil
	close(s.ready)
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.logger.Info("ready")
	for _, fn := range listeners {
		fn(Ready)
	}
	return true
}

// Stop cancels a pending completion timer, e.g. on shutdown.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	timer := s.timer
	s.timer = nil
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready is closed when the sequencer becomes Ready.
func (s *Sequencer) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until Ready or ctx is done.
func (s *Sequencer) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn to be called once with Ready. If the sequencer is
// already Ready, fn is called immediately.
func (s *Sequencer) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	if s.state == Ready {
		s.mu.Unlock()
		fn(Ready)
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
