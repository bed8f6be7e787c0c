// Package dashboard serves the admin dashboard shell: a loading screen until
// the readiness sequence completes, then the dashboard page with the theme
// applied, a live clock and the metrics links.
package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/leanbalancer/admindash/internal/clock"
	"github.com/leanbalancer/admindash/internal/config"
	"github.com/leanbalancer/admindash/internal/liveclock"
	"github.com/leanbalancer/admindash/internal/middleware"
	"github.com/leanbalancer/admindash/internal/preference"
	"github.com/leanbalancer/admindash/internal/proxy"
	"github.com/leanbalancer/admindash/internal/readiness"
)

var (
	loadingTmpl   = template.Must(template.New("loading").Parse(loadingHTML))
	dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))
)

// Deps are the state holders the shell renders. Proxy may be nil.
type Deps struct {
	Config      *config.Config
	Clock       clock.Clock
	Readiness   *readiness.Sequencer
	Preferences *preference.Store
	LiveClock   *liveclock.Source
	Proxy       *proxy.Proxy
	Logger      *zap.Logger
}

type Handler struct {
	cfg       config.DashboardConfig
	clock     clock.Clock
	readiness *readiness.Sequencer
	prefs     *preference.Store
	live      *liveclock.Source
	proxy     *proxy.Proxy
	logger    *zap.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := d.Clock
	if c == nil {
		c = clock.Real()
	}
	return &Handler{
		cfg:       d.Config.Dashboard,
		clock:     c,
		readiness: d.Readiness,
		prefs:     d.Preferences,
		live:      d.LiveClock,
		proxy:     d.Proxy,
		logger:    logger,
	}
}

// LoadingStages are the loading-screen animations, issued in order when
// the readiness sequence starts.
func LoadingStages(logger *zap.Logger) []readiness.Stage {
	names := []string{"logo-fade-in", "server-bounce", "server-glow", "text-pulse"}
	stages := make([]readiness.Stage, len(names))
	for i, name := range names {
		stages[i] = readiness.Stage{Name: name, Trigger: func() {
			logger.Debug("loading animation started", zap.String("animation", name))
		}}
	}
	return stages
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.servePage)
	mux.HandleFunc("/api/state", h.serveState)
	mux.HandleFunc("/api/theme", h.handleTheme)
	mux.HandleFunc("/api/clock", h.serveClock)
	if h.proxy != nil {
		mux.Handle(h.proxy.Prefix(), h.proxy)
		mux.Handle(h.proxy.Prefix()+"/", h.proxy)
	}
}

type pageData struct {
	Title         string
	Theme         preference.Theme
	Now           string
	GrafanaURL    string
	PrometheusURL string
	ProjectURL    string
	MetricsPath   string
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		middleware.WriteError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	data := pageData{
		Title:         h.cfg.Title,
		Theme:         h.prefs.Theme(),
		Now:           h.clock.Now().Format("15:04:05"),
		GrafanaURL:    h.cfg.GrafanaURL,
		PrometheusURL: h.cfg.PrometheusURL,
		ProjectURL:    h.cfg.ProjectURL,
	}
	if h.proxy != nil {
		data.MetricsPath = h.proxy.Prefix()
	}

	// Nothing of the dashboard is rendered before Ready.
	tmpl := loadingTmpl
	if h.readiness.State() == readiness.Ready {
		tmpl = dashboardTmpl
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := tmpl.Execute(w, data); err != nil {
		h.logger.Error("rendering page failed", zap.String("page", tmpl.Name()), zap.Error(err))
	}
}

// State is the /api/state body.
type State struct {
	State    string `json:"state"`
	Theme    string `json:"theme"`
	Time     string `json:"time"`
	Degraded bool   `json:"preferences_degraded"`
}

func (h *Handler) serveState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, State{
		State:    h.readiness.State().String(),
		Theme:    string(h.prefs.Theme()),
		Time:     h.clock.Now().Format(time.RFC3339),
		Degraded: h.prefs.Degraded(),
	})
}

func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"theme": string(h.prefs.Theme())})
	case http.MethodPost:
		var req struct {
			Theme string `json:"theme"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			middleware.WriteError(w, http.StatusBadRequest, "invalid_request_error", "body must be empty or {\"theme\":\"light\"|\"dark\"}")
			return
		}

		var theme preference.Theme
		if req.Theme == "" {
			theme = h.prefs.Toggle()
		} else {
			t, err := preference.ParseTheme(req.Theme)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
				return
			}
			h.prefs.Set(t)
			theme = t
		}
		writeJSON(w, http.StatusOK, map[string]string{"theme": string(theme)})
	default:
		middleware.WriteError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
	}
}

// serveClock streams the time as server-sent events. Each connection holds
// one clock subscription, released when the client disconnects.
func (h *Handler) serveClock(w http.ResponseWriter, r *http.Request) {
	if h.readiness.State() != readiness.Ready {
		middleware.WriteError(w, http.StatusServiceUnavailable, "not_ready", "dashboard is still loading")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "server_error", "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.live.Subscribe()
	defer sub.Unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-sub.C:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", t.Format(time.RFC3339)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
