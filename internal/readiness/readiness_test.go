package readiness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leanbalancer/admindash/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNotReadyBeforeDelay(t *testing.T) {
	fake := clock.Fake(epoch)
	seq := New(fake, DefaultDelay)
	seq.Start()

	for _, step := range []time.Duration{0, time.Second, 2 * time.Second, 999 * time.Millisecond} {
		fake.Advance(step)
		assert.Equal(t, Loading, seq.State())
	}

	fake.Advance(time.Millisecond)
	assert.Equal(t, Ready, seq.State())
	select {
	case <-seq.Ready():
	default:
		t.Fatal("Ready channel not closed")
	}
}

func TestCompleteBeforeDelayIsIgnored(t *testing.T) {
	fake := clock.Fake(epoch)
	seq := New(fake, DefaultDelay)

	assert.False(t, seq.Complete(), "before Start")
	seq.Start()
	fake.Advance(3 * time.Second)
	assert.False(t, seq.Complete(), "before the delay")
	assert.Equal(t, Loading, seq.State())

	fake.Advance(time.Second)
	assert.Equal(t, Ready, seq.State())
}

func TestTransitionHappensOnce(t *testing.T) {
	fake := clock.Fake(epoch)
	seq := New(fake, DefaultDelay)

	var notified int
	seq.Subscribe(func(s State) {
		assert.Equal(t, Ready, s)
		notified++
	})

	seq.Start()
	seq.Start()
	assert.Equal(t, 1, fake.Pending(), "one timer regardless of Start calls")

	fake.Advance(DefaultDelay)
	assert.False(t, seq.Complete())
	assert.False(t, seq.Complete())
	fake.Advance(time.Hour)

	assert.Equal(t, 1, notified)
	assert.Equal(t, Ready, seq.State())
}

func TestConcurrentComplete(t *testing.T) {
	fake := clock.Fake(epoch)
	seq := New(fake, time.Second)
	seq.Start()
	seq.Stop()
	fake.Advance(time.Second)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if seq.Complete() {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}

func TestStagesIssuedInOrderBeforeReady(t *testing.T) {
	fake := clock.Fake(epoch)
	var order []string
	stage := func(name string) Stage {
		return Stage{Name: name, Trigger: func() { order = append(order, name) }}
	}

	seq := New(fake, DefaultDelay, WithStages(stage("fade-in"), stage("zoom-in"), stage("zoom-out")))
	seq.Subscribe(func(State) { order = append(order, "ready") })

	seq.Start()
	assert.Equal(t, []string{"fade-in", "zoom-in", "zoom-out"}, order)

	fake.Advance(DefaultDelay)
	assert.Equal(t, []string{"fade-in", "zoom-in", "zoom-out", "ready"}, order)
}

func TestZeroDelayBecomesReadyOnStart(t *testing.T) {
	seq := New(clock.Fake(epoch), 0)
	seq.Start()
	assert.Equal(t, Ready, seq.State())
}

func TestStopCancelsTimer(t *testing.T) {
	fake := clock.Fake(epoch)
	seq := New(fake, DefaultDelay)
	seq.Start()
	seq.Stop()

	assert.Equal(t, 0, fake.Pending())
	fake.Advance(time.Minute)
	assert.Equal(t, Loading, seq.State())
}

func TestWait(t *testing.T) {
	fake := clock.Fake(epoch)
	seq := New(fake, DefaultDelay)
	seq.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, seq.Wait(ctx), context.Canceled)

	done := make(chan error, 1)
	go func() { done <- seq.Wait(context.Background()) }()
	fake.Advance(DefaultDelay)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestSubscribeAfterReadyCallsImmediately(t *testing.T) {
	fake := clock.Fake(epoch)
	seq := New(fake, time.Second)
	seq.Start()
	fake.Advance(time.Second)

	var got State = Loading
	seq.Subscribe(func(s State) { got = s })
	assert.Equal(t, Ready, got)
}

func TestUnsubscribeStopsNotification(t *testing.T) {
	fake := clock.Fake(epoch)
	seq := New(fake, time.Second)

	called := false
	unsubscribe := seq.Subscribe(func(State) { called = true })
	unsubscribe()

	seq.Start()
	fake.Advance(time.Second)
	assert.False(t, called)
}

func TestLogsTransition(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fake := clock.Fake(epoch)
	seq := New(fake, DefaultDelay, WithLogger(zap.New(core)))

	seq.Start()
	fake.Advance(DefaultDelay)

	assert.Equal(t, 1, logs.FilterMessage("loading").Len())
	assert.Equal(t, 1, logs.FilterMessage("ready").Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "unknown", State(7).String())
}
