// Package liveclock emits the current time once per interval to each
// subscriber. Every subscription owns exactly one ticker, which is stopped
// when the subscriber unsubscribes.
package liveclock

import (
	"sync"
	"time"

	"github.com/leanbalancer/admindash/internal/clock"
)

// DefaultInterval matches a seconds display.
const DefaultInterval = time.Second

// Source hands out clock subscriptions.
type Source struct {
	clock    clock.Clock
	interval time.Duration

	mu     sync.Mutex
	active int

	// OnChange, if set, is called with the number of live subscriptions
	// after every Subscribe and Unsubscribe.
	OnChange func(active int)
}

// NewSource returns a Source ticking every interval (DefaultInterval if
// interval <= 0).
func NewSource(c clock.Clock, interval time.Duration) *Source {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Source{clock: c, interval: interval}
}

// Active returns the number of live subscriptions.
func (s *Source) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Subscription delivers ticks on C until Unsubscribe. C is unbuffered, so
// nothing is queued for a subscriber that has gone away, and it is closed
// once the subscription ends.
type Subscription struct {
	C <-chan time.Time

	source *Source
	ticker *clock.Ticker
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Subscribe starts a subscription. The first value on C is the time at
// subscription; later values follow every interval.
func (s *Source) Subscribe() *Subscription {
	out := make(chan time.Time)
	sub := &Subscription{
		C:      out,
		source: s,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	now := s.clock.Now()
	sub.ticker = s.clock.NewTicker(s.interval)
	s.adjust(1)

	go sub.forward(out, now)
	return sub
}

func (sub *Subscription) forward(out chan<- time.Time, first time.Time) {
	defer close(sub.done)
	defer close(out)

	select {
	case out <- first:
	case <-sub.stop:
		return
	}
	for {
		select {
		case <-sub.stop:
			return
		case t := <-sub.ticker.C:
			select {
			case out <- t:
			case <-sub.stop:
				return
			}
		}
	}
}

// Unsubscribe stops the ticker and returns once the subscription can no
// longer deliver a value. Calling it again is a no-op.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.ticker.Stop()
		close(sub.stop)
		<-sub.done
		sub.source.adjust(-1)
	})
}

func (s *Source) adjust(delta int) {
	s.mu.Lock()
	s.active += delta
	n := s.active
	onChange := s.OnChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(n)
	}
}
