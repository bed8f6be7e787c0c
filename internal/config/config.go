package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile selects the trust profile of the process.
type Profile string

const (
	ProfileDevelopment Profile = "development"
	ProfileProduction  Profile = "production"
)

var (
	// ErrInsecureProduction is returned when the production profile asks the
	// metrics proxy to skip upstream certificate verification.
	ErrInsecureProduction = errors.New("insecure_skip_verify is only allowed in the development profile")
	ErrInvalidOrigin      = errors.New("invalid origin")
)

type BoundaryConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`     // Boundary server listen address (e.g. ":9002")
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins granted CORS access (exact match)
}

type DashboardConfig struct {
	Enabled         bool   `yaml:"enabled"`           // Serve the dashboard shell
	ListenAddr      string `yaml:"listen_addr"`       // Dashboard origin listen address (e.g. ":3000")
	Title           string `yaml:"title"`             // Page title
	LoadingDelayMs  int    `yaml:"loading_delay_ms"`  // Readiness delay before the dashboard is shown
	ClockIntervalMs int    `yaml:"clock_interval_ms"` // Live clock tick interval
	GrafanaURL      string `yaml:"grafana_url"`       // Embedded Grafana panel
	PrometheusURL   string `yaml:"prometheus_url"`    // Prometheus UI link
	ProjectURL      string `yaml:"project_url"`       // "Learn more" link
}

// ProxyConfig is the /metrics forwarding route. It is fixed for the
// lifetime of the process.
type ProxyConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Mount the forwarding proxy on the dashboard origin
	PathPrefix string `yaml:"path_prefix"` // Requests under this prefix are forwarded
	Target     string `yaml:"target"`      // Upstream origin (e.g. "http://localhost:9002")
	// Unset means "profile default": on for development, off for production.
	InsecureSkipVerify *bool `yaml:"insecure_skip_verify"`
	TimeoutSec         int   `yaml:"timeout_sec"` // Dial and response-header timeout
}

type PreferencesConfig struct {
	Backend string `yaml:"backend"` // "file", "sqlite" or "memory"
	Path    string `yaml:"path"`    // File or database path
	Watch   bool   `yaml:"watch"`   // Pick up edits made by other processes (file backend)
}

type AuthConfig struct {
	Enabled   bool     `yaml:"enabled"`    // Require a key for /admin/ endpoints
	AdminKeys []string `yaml:"admin_keys"` // Keys with admin access
}

type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`          // Enable rate limiting on the boundary server
	RequestsPerMin int  `yaml:"requests_per_min"` // Max requests per minute per client IP
	BurstSize      int  `yaml:"burst_size"`       // Burst allowance
}

type LoggingConfig struct {
	Format string `yaml:"format"` // "json" or "text" (default "text")
	Level  string `yaml:"level"`  // debug, info, warn, error
}

type Config struct {
	Profile     Profile           `yaml:"profile"`
	Boundary    BoundaryConfig    `yaml:"boundary"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Proxy       ProxyConfig       `yaml:"proxy"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Logging     LoggingConfig     `yaml:"logging"`

	configPath        string `yaml:"-"`
	insecureDefaulted bool   `yaml:"-"` // InsecureSkipVerify came from the profile
}

// ConfigPath returns the path to the loaded config file, or "" for defaults.
func (c *Config) ConfigPath() string { return c.configPath }

// Default returns the observed local topology: boundary on :9002 granting
// http://localhost:3000, dashboard on :3000 forwarding /metrics to the
// boundary server.
func Default() *Config {
	return &Config{
		Profile: ProfileDevelopment,
		Boundary: BoundaryConfig{
			ListenAddr:     ":9002",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Dashboard: DashboardConfig{
			Enabled:         true,
			ListenAddr:      ":3000",
			Title:           "Admin Dashboard",
			LoadingDelayMs:  4000,
			ClockIntervalMs: 1000,
			GrafanaURL:      "http://localhost:3000/goto/HCv_it0HR?orgId=1",
			PrometheusURL:   "http://localhost:9090",
			ProjectURL:      "https://github.com/siddhu949/leanbalancer.git",
		},
		Proxy: ProxyConfig{
			Enabled:    true,
			PathPrefix: "/metrics",
			Target:     "http://localhost:9002",
			TimeoutSec: 5,
		},
		Preferences: PreferencesConfig{
			Backend: "file",
			Watch:   true,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load reads path on top of Default. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		cfg.configPath = path
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize fills profile-dependent defaults and validates. Call it again
// after applying flag overrides.
func (c *Config) Finalize() error {
	if c.Profile == "" {
		c.Profile = ProfileDevelopment
	}
	if c.Profile != ProfileDevelopment && c.Profile != ProfileProduction {
		return fmt.Errorf("unknown profile %q", c.Profile)
	}

	if c.Proxy.InsecureSkipVerify == nil || c.insecureDefaulted {
		skip := c.Profile == ProfileDevelopment
		c.Proxy.InsecureSkipVerify = &skip
		c.insecureDefaulted = true
	}
	if c.Proxy.TimeoutSec == 0 {
		c.Proxy.TimeoutSec = 5
	}
	if c.Proxy.PathPrefix == "" {
		c.Proxy.PathPrefix = "/metrics"
	}

	// Defaults for rate limiting
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin == 0 {
		c.RateLimit.RequestsPerMin = 600
	}
	if c.RateLimit.Enabled && c.RateLimit.BurstSize == 0 {
		c.RateLimit.BurstSize = 50
	}

	if c.Dashboard.ClockIntervalMs == 0 {
		c.Dashboard.ClockIntervalMs = 1000
	}
	if c.Preferences.Backend == "" {
		c.Preferences.Backend = "file"
	}
	if c.Preferences.Path == "" && c.Preferences.Backend != "memory" {
		c.Preferences.Path = defaultPreferencePath(c.Preferences.Backend)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.Boundary.ListenAddr == "" {
		return fmt.Errorf("boundary.listen_addr is required")
	}
	for i, origin := range c.Boundary.AllowedOrigins {
		if err := checkOrigin(origin); err != nil {
			return fmt.Errorf("boundary.allowed_origins[%d]: %w", i, err)
		}
	}

	if c.Dashboard.Enabled && c.Dashboard.ListenAddr == "" {
		return fmt.Errorf("dashboard.listen_addr is required when the dashboard is enabled")
	}
	if c.Dashboard.LoadingDelayMs < 0 {
		return fmt.Errorf("dashboard.loading_delay_ms must not be negative")
	}
	if c.Dashboard.ClockIntervalMs < 0 {
		return fmt.Errorf("dashboard.clock_interval_ms must be positive")
	}

	if c.Proxy.Enabled {
		if err := checkPathPrefix(c.Proxy.PathPrefix); err != nil {
			return err
		}
		u, err := url.Parse(c.Proxy.Target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("proxy.target %q must be an http(s) URL", c.Proxy.Target)
		}
		if c.Proxy.TimeoutSec < 0 {
			return fmt.Errorf("proxy.timeout_sec must not be negative")
		}
	}
	if c.Profile == ProfileProduction && *c.Proxy.InsecureSkipVerify {
		return ErrInsecureProduction
	}

	switch c.Preferences.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("preferences.backend %q: want file, sqlite or memory", c.Preferences.Backend)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: want text or json", c.Logging.Format)
	}
	return nil
}

// checkOrigin accepts scheme://host[:port] with nothing after it.
func checkOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidOrigin, origin, err)
	}
	if u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return fmt.Errorf("%w %q: want scheme://host[:port]", ErrInvalidOrigin, origin)
	}
	return nil
}

func defaultPreferencePath(backend string) string {
	name := "preferences.yaml"
	if backend == "sqlite" {
		name = "preferences.db"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".admindash", name)
	}
	return filepath.Join(dir, "admindash", name)
}

// LoadingDelay is the readiness delay.
func (c *Config) LoadingDelay() time.Duration {
	return time.Duration(c.Dashboard.LoadingDelayMs) * time.Millisecond
}

// ClockInterval is the live clock tick interval.
func (c *Config) ClockInterval() time.Duration {
	return time.Duration(c.Dashboard.ClockIntervalMs) * time.Millisecond
}

// Timeout bounds how long the proxy waits to connect and for
// response headers.
func (p ProxyConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// SkipVerify reports whether upstream TLS verification is disabled.
func (p ProxyConfig) SkipVerify() bool {
	return p.InsecureSkipVerify != nil && *p.InsecureSkipVerify
}

// checkPathPrefix rejects forwarding prefixes the dashboard mux cannot
// register next to its own routes.
func checkPathPrefix(prefix string) error {
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("proxy.path_prefix %q must start with /", prefix)
	}
	trimmed := strings.TrimRight(prefix, "/")
	if trimmed == "" {
		return fmt.Errorf("proxy.path_prefix %q would shadow the dashboard page", prefix)
	}
	if trimmed == "/api" || strings.HasPrefix(trimmed, "/api/") {
		return fmt.Errorf("proxy.path_prefix %q overlaps the dashboard /api routes", prefix)
	}
	if strings.ContainsAny(trimmed, " {}") {
		return fmt.Errorf("proxy.path_prefix %q must be a literal path", prefix)
	}
	return nil
}
