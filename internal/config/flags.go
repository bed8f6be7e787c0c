package config

import (
	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set are
// applied, so a config file value is not clobbered by a flag default.
type Flags struct {
	fs *pflag.FlagSet

	profile        string
	boundaryAddr   string
	allowedOrigins []string
	dashboardAddr  string
	loadingDelayMs int
	proxyTarget    string
	proxyInsecure  bool
	prefBackend    string
	prefPath       string
	logFormat      string
	logLevel       string
}

// RegisterFlags adds the override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.profile, "profile", "", "Trust profile: development or production")
	fs.StringVar(&f.boundaryAddr, "listen", "", "Boundary server listen address (default :9002)")
	fs.StringSliceVar(&f.allowedOrigins, "allowed-origin", nil, "Origin granted CORS access (repeatable)")
	fs.StringVar(&f.dashboardAddr, "dashboard-listen", "", "Dashboard listen address (default :3000)")
	fs.IntVar(&f.loadingDelayMs, "loading-delay-ms", 0, "Readiness delay in milliseconds (default 4000)")
	fs.StringVar(&f.proxyTarget, "proxy-target", "", "Upstream origin for the /metrics proxy")
	fs.BoolVar(&f.proxyInsecure, "proxy-insecure", false, "Skip upstream TLS verification (development only)")
	fs.StringVar(&f.prefBackend, "preferences-backend", "", "Preference storage: file, sqlite or memory")
	fs.StringVar(&f.prefPath, "preferences-path", "", "Preference file or database path")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	return f
}

// Apply copies every changed flag into cfg and re-runs Finalize.
func (f *Flags) Apply(cfg *Config) error {
	if f.changed("profile") {
		cfg.Profile = Profile(f.profile)
	}
	if f.changed("listen") {
		cfg.Boundary.ListenAddr = f.boundaryAddr
	}
	if f.changed("allowed-origin") {
		cfg.Boundary.AllowedOrigins = f.allowedOrigins
	}
	if f.changed("dashboard-listen") {
		cfg.Dashboard.ListenAddr = f.dashboardAddr
	}
	if f.changed("loading-delay-ms") {
		cfg.Dashboard.LoadingDelayMs = f.loadingDelayMs
	}
	if f.changed("proxy-target") {
		cfg.Proxy.Target = f.proxyTarget
	}
	if f.changed("proxy-insecure") {
		v := f.proxyInsecure
		cfg.Proxy.InsecureSkipVerify = &v
		cfg.insecureDefaulted = false
	}
	if f.changed("preferences-backend") {
		cfg.Preferences.Backend = f.prefBackend
		if !f.changed("preferences-path") {
			cfg.Preferences.Path = ""
		}
	}
	if f.changed("preferences-path") {
		cfg.Preferences.Path = f.prefPath
	}
	if f.changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if f.changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	return cfg.Finalize()
}

func (f *Flags) changed(name string) bool {
	fl := f.fs.Lookup(name)
	return fl != nil && fl.Changed
}
