package preference

import (
	"fmt"

	"github.com/leanbalancer/admindash/internal/config"
)

// OpenBackend builds the backend named by cfg.Backend.
func OpenBackend(cfg config.PreferencesConfig) (Backend, error) {
	switch cfg.Backend {
	case "file", "":
		return NewFileBackend(cfg.Path), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown preference backend %q", cfg.Backend)
	}
}
