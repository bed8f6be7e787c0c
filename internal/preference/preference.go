// Package preference persists the dashboard's UI preferences. The only
// preference is the theme, stored under the key "theme" as "light" or
// "dark".
//
// A Store owns the in-memory value and mirrors it into a Scope (the
// presentation flag the shell renders from). Writes go to the backend
// first; if the backend fails, the in-memory value still changes and stays
// authoritative for the rest of the session.
package preference

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Theme is the dashboard colour scheme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ThemeKey is the durable key the theme is stored under.
const ThemeKey = "theme"

var ErrInvalidTheme = errors.New("invalid theme")

// ParseTheme accepts exactly "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case Light, Dark:
		return Theme(s), nil
	}
	return "", fmt.Errorf("%w %q: want light or dark", ErrInvalidTheme, s)
}

// Opposite returns the other theme.
func (t Theme) Opposite() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Backend is durable key/value storage.
type Backend interface {
	// Load returns ok=false when key was never written.
	Load(key string) (value string, ok bool, err error)
	Save(key, value string) error
	Close() error
}

// Scope receives the theme on every change, e.g. to toggle a CSS class.
type Scope interface {
	ApplyTheme(Theme)
}

// ScopeFunc adapts a function to Scope.
type ScopeFunc func(Theme)

func (f ScopeFunc) ApplyTheme(t Theme) { f(t) }

// Store is an observable holder for the theme preference.
type Store struct {
	mu        sync.Mutex
	backend   Backend
	scope     Scope
	theme     Theme
	degraded  bool
	unsynced  bool // last Save failed; memory is ahead of the backend
	listeners map[int]func(Theme)
	nextID    int
	logger    *zap.Logger

	// OnPersistFailure, if set, is called after a failed write.
	OnPersistFailure func(error)
}

// Open reads the theme once from backend and applies it to scope. A
// missing, unreadable or invalid value yields Light; read errors are
// logged and mark the store degraded. scope and logger may be nil.
func Open(backend Backend, scope Scope, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend:   backend,
		scope:     scope,
		theme:     Light,
		listeners: make(map[int]func(Theme)),
		logger:    logger,
	}

	raw, ok, err := backend.Load(ThemeKey)
	switch {
	case err != nil:
		s.degraded = true
		logger.Error("preference storage unavailable, using in-memory theme", zap.Error(err))
	case ok:
		t, perr := ParseTheme(raw)
		if perr != nil {
			logger.Warn("ignoring stored theme", zap.String("value", raw))
		} else {
			s.theme = t
		}
	}

	if s.scope != nil {
		s.scope.ApplyTheme(s.theme)
	}
	return s
}

// Theme returns the current theme.
func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Set persists t, then applies it to the scope and notifies listeners.
// Persistence failures are logged, not returned.
func (s *Store) Set(t Theme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(t, true)
}

// Toggle flips the theme and returns the new value.
func (s *Store) Toggle() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.theme.Opposite()
	s.setLocked(next, true)
	return next
}

// Persisted reports whether the most recent Set or Toggle reached the
// backend. It is true before the first write.
func (s *Store) Persisted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unsynced
}

// Degraded reports whether the backend has failed during this session.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Subscribe registers fn to run after every change. Listeners run with the
// store locked, so they must not call back into the Store.
func (s *Store) Subscribe(fn func(Theme)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) setLocked(t Theme, persist bool) {
	if persist {
		err := s.backend.Save(ThemeKey, string(t))
		s.unsynced = err != nil
		if err != nil {
			s.degraded = true
			s.logger.Error("persisting theme failed, keeping in-memory value",
				zap.String("theme", string(t)), zap.Error(err))
			if s.OnPersistFailure != nil {
				s.OnPersistFailure(err)
			}
		}
	}

	s.theme = t
	if s.scope != nil {
		s.scope.ApplyTheme(t)
	}
	for _, fn := range s.listeners {
		fn(t)
	}
}

// reload applies a value written by someone else without writing it back.
// The backend is read under the lock so a concurrent Set cannot be undone
// by a stale read.
func (s *Store) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsynced {
		return
	}

	raw, ok, err := s.backend.Load(ThemeKey)
	if err != nil {
		s.logger.Warn("re-reading theme failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	t, err := ParseTheme(raw)
	if err != nil {
		s.logger.Warn("ignoring stored theme", zap.String("value", raw))
		return
	}
	if t == s.theme {
		return
	}
	s.logger.Info("theme changed externally", zap.String("theme", string(t)))
	s.setLocked(t, false)
}
