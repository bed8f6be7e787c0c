package liveclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/leanbalancer/admindash/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func receive(t *testing.T, sub *Subscription) time.Time {
	t.Helper()
	select {
	case ts, ok := <-sub.C:
		require.True(t, ok, "subscription closed early")
		return ts
	case <-time.After(5 * time.Second):
		t.Fatal("no tick")
		return time.Time{}
	}
}

func TestSubscribeEmitsImmediately(t *testing.T) {
	fake := clock.Fake(epoch)
	src := NewSource(fake, time.Second)

	sub := src.Subscribe()
	defer sub.Unsubscribe()
	assert.Equal(t, epoch, receive(t, sub))
}

// Five one-second windows with the display unmounted at second 2: one tick
// per window while subscribed, none afterwards.
func TestTicksOncePerIntervalUntilUnsubscribed(t *testing.T) {
	fake := clock.Fake(epoch)
	src := NewSource(fake, time.Second)

	var counts []int
	src.OnChange = func(n int) { counts = append(counts, n) }

	sub := src.Subscribe()
	receive(t, sub)
	require.Equal(t, 1, fake.Pending())

	var ticks []time.Time
	for sec := 1; sec <= 5; sec++ {
		fake.Advance(time.Second)
		if sec <= 2 {
			ticks = append(ticks, receive(t, sub))
		}
		if sec == 2 {
			sub.Unsubscribe()
			assert.Equal(t, 0, fake.Pending(), "timer cancelled, not just ignored")
		}
	}

	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(2 * time.Second)}, ticks)
	_, ok := <-sub.C
	assert.False(t, ok, "no emission after unsubscribe")
	assert.Equal(t, 0, src.Active())
	assert.Equal(t, []int{1, 0}, counts)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	src := NewSource(clock.Fake(epoch), time.Second)
	sub := src.Subscribe()
	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, src.Active())
}

func TestUnsubscribeBeforeFirstRead(t *testing.T) {
	fake := clock.Fake(epoch)
	src := NewSource(fake, time.Second)

	sub := src.Subscribe()
	fake.Advance(time.Second)
	sub.Unsubscribe()

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestRepeatedMountUnmountLeaksNoTimers(t *testing.T) {
	fake := clock.Fake(epoch)
	src := NewSource(fake, time.Second)

	for i := 0; i < 100; i++ {
		sub := src.Subscribe()
		receive(t, sub)
		sub.Unsubscribe()
	}
	assert.Equal(t, 0, fake.Pending())
	assert.Equal(t, 0, src.Active())
}

func TestIndependentSubscriptions(t *testing.T) {
	fake := clock.Fake(epoch)
	src := NewSource(fake, time.Second)

	a := src.Subscribe()
	b := src.Subscribe()
	receive(t, a)
	receive(t, b)
	assert.Equal(t, 2, src.Active())
	assert.Equal(t, 2, fake.Pending())

	a.Unsubscribe()
	fake.Advance(time.Second)
	assert.Equal(t, epoch.Add(time.Second), receive(t, b))
	b.Unsubscribe()
}

func TestRealClock(t *testing.T) {
	src := NewSource(clock.Real(), 10*time.Millisecond)
	sub := src.Subscribe()
	first := receive(t, sub)
	second := receive(t, sub)
	sub.Unsubscribe()
	assert.True(t, second.After(first))
}

func TestDefaultInterval(t *testing.T) {
	src := NewSource(clock.Real(), 0)
	assert.Equal(t, DefaultInterval, src.interval)
}
