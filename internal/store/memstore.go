package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bbrooks37/vscode-mssql/model"
)

// MemoryConnectionStore is an in-memory ConnectionStore for testing and
// single-instance deployments.
type MemoryConnectionStore struct {
	mu       sync.RWMutex
	profiles map[string]*model.ConnectionProfile // key: profile name
	secrets  map[string]string                   // key: profile name
	recents  []recentEntry
}

type recentEntry struct {
	profile *model.ConnectionProfile
	usedAt  time.Time
}

// NewMemoryConnectionStore creates a new in-memory connection store.
func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{
		profiles: make(map[string]*model.ConnectionProfile),
		secrets:  make(map[string]string),
	}
}

// LoadAll returns saved profiles sorted by name, plus recents when requested.
func (s *MemoryConnectionStore) LoadAll(_ context.Context, includeRecents bool) ([]model.ListedProfile, []model.ListedProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	saved := make([]model.ListedProfile, 0, len(names))
	for _, name := range names {
		saved = append(saved, model.ListedProfile{Profile: s.profiles[name].Clone()})
	}

	var recent []model.ListedProfile
	if includeRecents {
		for _, entry := range s.recents {
			recent = append(recent, model.ListedProfile{Profile: entry.profile.Clone(), Recent: true})
		}
	}
	return saved, recent, nil
}

// LookupPassword returns the stored password for the named profile.
func (s *MemoryConnectionStore) LookupPassword(_ context.Context, profileName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secrets[profileName], nil
}

// Save persists the profile under its profile name. The password is moved to
// the secret table when savePassword is set, and dropped otherwise.
func (s *MemoryConnectionStore) Save(_ context.Context, profile *model.ConnectionProfile) error {
	name := profile.GetString(model.FieldProfileName)
	if name == "" {
		return fmt.Errorf("store: profile has no name")
	}

	stored := profile.Clone()
	password := stored.GetString(model.FieldPassword)
	stored.Clear(model.FieldPassword)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[name] = stored
	if profile.GetBool(model.FieldSavePassword) && password != "" {
		s.secrets[name] = password
	} else {
		delete(s.secrets, name)
	}
	return nil
}

// RemoveProfile deletes the named profile and its stored credential.
func (s *MemoryConnectionStore) RemoveProfile(_ context.Context, profileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profileName]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("profile %q not found", profileName))
	}
	delete(s.profiles, profileName)
	delete(s.secrets, profileName)
	return nil
}

// AddRecent prepends the profile to the recently-used list.
func (s *MemoryConnectionStore) AddRecent(_ context.Context, profile *model.ConnectionProfile) error {
	stored := profile.Clone()
	stored.Clear(model.FieldPassword)
	key := recentKey(stored)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.recents[:0]
	for _, entry := range s.recents {
		if recentKey(entry.profile) != key {
			kept = append(kept, entry)
		}
	}
	s.recents = append([]recentEntry{{profile: stored, usedAt: time.Now().UTC()}}, kept...)
	if len(s.recents) > maxRecents {
		s.recents = s.recents[:maxRecents]
	}
	return nil
}

// RemoveRecent deletes matching entries from the recently-used list.
func (s *MemoryConnectionStore) RemoveRecent(_ context.Context, profile *model.ConnectionProfile) error {
	key := recentKey(profile)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.recents[:0]
	for _, entry := range s.recents {
		if recentKey(entry.profile) != key {
			kept = append(kept, entry)
		}
	}
	s.recents = kept
	return nil
}

// Len returns the number of saved profiles. For testing.
func (s *MemoryConnectionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// HealthCheck always succeeds for the in-memory store.
func (s *MemoryConnectionStore) HealthCheck(_ context.Context) error {
	return nil
}
