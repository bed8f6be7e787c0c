package admin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/leanbalancer/admindash/internal/config"
	"github.com/leanbalancer/admindash/internal/liveclock"
	"github.com/leanbalancer/admindash/internal/metrics"
	"github.com/leanbalancer/admindash/internal/middleware"
	"github.com/leanbalancer/admindash/internal/preference"
	"github.com/leanbalancer/admindash/internal/readiness"
)

// Handler provides admin API endpoints on the boundary server.
type Handler struct {
	cfg       *config.Config
	readiness *readiness.Sequencer
	prefs     *preference.Store
	clock     *liveclock.Source
	metrics   *metrics.Metrics
	logger    *zap.Logger
	startTime time.Time
}

func NewHandler(cfg *config.Config, seq *readiness.Sequencer, prefs *preference.Store, clock *liveclock.Source, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:       cfg,
		readiness: seq,
		prefs:     prefs,
		clock:     clock,
		metrics:   m,
		logger:    logger,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin", h.handlePanel)
	mux.HandleFunc("/admin/status", h.handleStatus)
	mux.HandleFunc("/admin/theme", h.handleTheme)
}

func (h *Handler) handlePanel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "Admin Panel")
}

// Status is the /admin/status body.
type Status struct {
	Status             string   `json:"status"`
	Profile            string   `json:"profile"`
	Readiness          string   `json:"readiness"`
	Theme              string   `json:"theme"`
	PreferencesBackend string   `json:"preferences_backend"`
	PreferencesHealthy bool     `json:"preferences_healthy"`
	ClockSubscriptions int      `json:"clock_subscriptions"`
	ProxyTarget        string   `json:"proxy_target,omitempty"`
	AllowedOrigins     []string `json:"allowed_origins"`
	UptimeSec          float64  `json:"uptime_sec"`
}

func (h *Handler) status() Status {
	s := Status{
		Status:             "running",
		Profile:            string(h.cfg.Profile),
		Readiness:          h.readiness.State().String(),
		Theme:              string(h.prefs.Theme()),
		PreferencesBackend: h.cfg.Preferences.Backend,
		PreferencesHealthy: !h.prefs.Degraded(),
		ClockSubscriptions: h.clock.Active(),
		AllowedOrigins:     h.cfg.Boundary.AllowedOrigins,
		UptimeSec:          time.Since(h.startTime).Seconds(),
	}
	if h.cfg.Proxy.Enabled {
		s.ProxyTarget = h.cfg.Proxy.Target
	}
	if s.AllowedOrigins == nil {
		s.AllowedOrigins = []string{}
	}
	return s
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

type themeRequest struct {
	Theme string `json:"theme"`
}

// handleTheme sets the theme from {"theme":"dark"}, or toggles it when the
// body is empty.
func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	var req themeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_request_error", "body must be {\"theme\":\"light\"|\"dark\"}")
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

	h.logger.Info("theme changed via admin API", zap.String("theme", string(theme)),
		zap.String("request_id", middleware.GetRequestID(r.Context())))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"theme":     theme,
		"persisted": h.prefs.Persisted(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
