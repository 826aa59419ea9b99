package socialsecurity

import (
	"context"
	"strings"
	"sync"
)

// SettingsStore persists per-user social security settings. Get returns
// DefaultSettings when nothing is stored for the user.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (Settings, error)
	Save(ctx context.Context, userID string, settings Settings) error
}

// MemoryStore is an in-process SettingsStore.
type MemoryStore struct {
	mu       sync.RWMutex
	defaults Settings
	settings map[string]Settings
}

// NewMemoryStore creates an empty store that falls back to defaults.
func NewMemoryStore(defaults Settings) *MemoryStore {
	return &MemoryStore{defaults: defaults, settings: make(map[string]Settings)}
}

// Get returns the stored settings for userID.
func (s *MemoryStore) Get(_ context.Context, userID string) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if settings, ok := s.settings[normalizeUserID(userID)]; ok {
		return settings, nil
	}
	return s.defaults, nil
}

// Save replaces the settings for userID.
func (s *MemoryStore) Save(_ context.Context, userID string, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[normalizeUserID(userID)] = settings
	return nil
}

func normalizeUserID(userID string) string {
	return strings.TrimSpace(userID)
}
