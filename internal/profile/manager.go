package profile

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SetProfileKey(userID, key, value string) error
	GetAllProfileKeys(userID string) (map[string]string, error)
	DeleteProfileKey(userID, key string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	profile  Profile
	cachedAt time.Time
}

// Manager provides cached access to creator profiles stored in SQLite.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// GetProfile returns the user's profile, zero-valued when nothing is stored.
func (m *Manager) GetProfile(userID string) (Profile, error) {
	m.mu.RLock()
	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		m.mu.RUnlock()
		return e.profile, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		return e.profile, nil
	}

	keys, err := m.store.GetAllProfileKeys(userID)
	if err != nil {
		return Profile{}, fmt.Errorf("loading profile keys: %w", err)
	}
	var p Profile
	for k, v := range keys {
		p.Set(k, v)
	}
	m.cache[userID] = cacheEntry{profile: p, cachedAt: m.clock.Now()}
	return p, nil
}

// Upsert replaces every field of the user's profile. Empty fields are
// removed from the store.
func (m *Manager) Upsert(userID string, p Profile) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range Keys {
		value := strings.TrimSpace(p.fields()[key])
		var err error
		if value == "" {
			err = m.store.DeleteProfileKey(userID, key)
		} else {
			err = m.store.SetProfileKey(userID, key, value)
		}
		if err != nil {
			delete(m.cache, userID)
			return Profile{}, fmt.Errorf("saving profile key %q: %w", key, err)
		}
	}
	delete(m.cache, userID)

	var out Profile
	for k, v := range p.fields() {
		out.Set(k, strings.TrimSpace(v))
	}
	return out, nil
}

// SetField persists one profile key and invalidates the user's cache entry.
func (m *Manager) SetField(userID, key, value string) error {
	var probe Profile
	if !probe.Set(key, value) {
		return fmt.Errorf("unknown profile key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetProfileKey(userID, key, value); err != nil {
		return fmt.Errorf("setting profile key %q: %w", key, err)
	}
	delete(m.cache, userID)
	return nil
}

// GetSummary returns a compact description of the profile for prompts.
func (m *Manager) GetSummary(userID string) (string, error) {
	p, err := m.GetProfile(userID)
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	return Summarize(p), nil
}

// maxSummaryChars caps the summary to stay under ~500 tokens (4 chars/token).
const maxSummaryChars = 2000

// Summarize renders p as prompt context, or "" when it is empty.
func Summarize(p Profile) string {
	var parts []string
	if p.ChannelName != "" {
		parts = append(parts, fmt.Sprintf("Channel: %s.", p.ChannelName))
	}
	if p.ContentType != "" {
		parts = append(parts, fmt.Sprintf("Content type: %s.", p.ContentType))
	}
	if p.Niche != "" {
		parts = append(parts, fmt.Sprintf("Niche: %s.", p.Niche))
	}
	if p.Tone != "" {
		parts = append(parts, fmt.Sprintf("Tone: %s.", p.Tone))
	}
	if p.TargetAudience != "" {
		parts = append(parts, fmt.Sprintf("Target audience: %s.", p.TargetAudience))
	}
	if len(parts) == 0 {
		return ""
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}
