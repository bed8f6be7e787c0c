package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leanbalancer/admindash/internal/clock"
	"github.com/leanbalancer/admindash/internal/config"
	"github.com/leanbalancer/admindash/internal/liveclock"
	"github.com/leanbalancer/admindash/internal/preference"
	"github.com/leanbalancer/admindash/internal/proxy"
	"github.com/leanbalancer/admindash/internal/readiness"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	mux   *http.ServeMux
	fake  *clock.FakeClock
	seq   *readiness.Sequencer
	prefs *preference.Store
	live  *liveclock.Source
}

func newFixture(t *testing.T, px *proxy.Proxy) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Preferences.Backend = "memory"
	require.NoError(t, cfg.Finalize())

	fake := clock.Fake(epoch)
	f := &fixture{
		mux:   http.NewServeMux(),
		fake:  fake,
		seq:   readiness.New(fake, cfg.LoadingDelay()),
		prefs: preference.Open(preference.NewMemoryBackend(), nil, nil),
		live:  liveclock.NewSource(fake, time.Second),
	}
	NewHandler(Deps{
		Config:      cfg,
		Clock:       fake,
		Readiness:   f.seq,
		Preferences: f.prefs,
		LiveClock:   f.live,
		Proxy:       px,
	}).RegisterRoutes(f.mux)
	return f
}

func (f *fixture) ready() {
	f.seq.Start()
	f.fake.Advance(readiness.DefaultDelay)
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestLoadingScreenUntilReady(t *testing.T) {
	f := newFixture(t, nil)
	f.seq.Start()

	rec := f.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Loading...")
	assert.NotContains(t, rec.Body.String(), "Grafana Dashboard")

	f.fake.Advance(3999 * time.Millisecond)
	assert.Contains(t, f.do(http.MethodGet, "/", "").Body.String(), "Loading...")

	f.fake.Advance(time.Millisecond)
	body := f.do(http.MethodGet, "/", "").Body.String()
	assert.NotContains(t, body, "Loading...")
	assert.Contains(t, body, "Grafana Dashboard")
	assert.Contains(t, body, `src="http://localhost:3000/goto/HCv_it0HR?orgId=1"`)
	assert.Contains(t, body, `href="http://localhost:9090"`)
	assert.Contains(t, body, `class="theme-light"`)
}

func TestPageAppliesTheme(t *testing.T) {
	f := newFixture(t, nil)
	f.ready()
	f.prefs.Set(preference.Dark)

	body := f.do(http.MethodGet, "/", "").Body.String()
	assert.Contains(t, body, `class="theme-dark"`)
	assert.Contains(t, body, "Light mode")
}

func TestUnknownPathIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPost, "/", "").Code)
}

func TestStateEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	var s State
	require.NoError(t, json.NewDecoder(f.do(http.MethodGet, "/api/state", "").Body).Decode(&s))
	assert.Equal(t, State{State: "loading", Theme: "light", Time: epoch.Format(time.RFC3339)}, s)

	f.ready()
	require.NoError(t, json.NewDecoder(f.do(http.MethodGet, "/api/state", "").Body).Decode(&s))
	assert.Equal(t, "ready", s.State)
}

func TestThemeAPI(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/theme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"theme":"dark"}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/theme", `{"theme":"dark"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, preference.Dark, f.prefs.Theme())

	assert.JSONEq(t, `{"theme":"dark"}`, f.do(http.MethodGet, "/api/theme", "").Body.String())
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/theme", `{"theme":"blue"}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodDelete, "/api/theme", "").Code)
}

func TestClockNotServedWhileLoading(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/clock", "").Code)
	assert.Equal(t, 0, f.live.Active())
}

func TestClockStreamSubscribesPerConnection(t *testing.T) {
	f := newFixture(t, nil)
	f.ready()

	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/clock", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := bufio.NewReader(resp.Body)
	readEvent := func() string {
		t.Helper()
		for {
			line, err := events.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	assert.Equal(t, epoch.Format(time.RFC3339), readEvent())
	assert.Equal(t, 1, f.live.Active())

	f.fake.Advance(time.Second)
	assert.Equal(t, epoch.Add(time.Second).Format(time.RFC3339), readEvent())

	// Disconnect unmounts the clock.
	cancel()
	require.Eventually(t, func() bool { return f.live.Active() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.fake.Pending())
}

func TestMetricsProxyMounted(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "admindash_ready 1\n")
	}))
	defer upstream.Close()

	cfg := config.Default().Proxy
	cfg.Target = upstream.URL
	px, err := proxy.New(cfg, nil, nil)
	require.NoError(t, err)

	f := newFixture(t, px)
	rec := f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admindash_ready 1\n", rec.Body.String())

	f.ready()
	assert.Contains(t, f.do(http.MethodGet, "/", "").Body.String(), `id="probe"`)
}

func TestLoadingStagesLogInOrder(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	fake := clock.Fake(epoch)
	seq := readiness.New(fake, time.Second, readiness.WithStages(LoadingStages(zap.New(core))...))
	seq.Start()

	var got []string
	for _, e := range logs.FilterMessage("loading animation started").All() {
		got = append(got, e.ContextMap()["animation"].(string))
	}
	assert.Equal(t, []string{"logo-fade-in", "server-bounce", "server-glow", "text-pulse"}, got)
	seq.Stop()
}
