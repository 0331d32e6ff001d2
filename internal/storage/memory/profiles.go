package memory

import (
	"context"
	"sync"

	"github.com/campuslink/campuslink-backend/internal/models"
)

// ProfileStore is an in-memory stand-in for the external profile service.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]*models.Profile)}
}

// Put registers or replaces a profile.
func (s *ProfileStore) Put(p *models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// GetProfileByID returns nil, nil for an unknown id: an unresolved
// participant, not an error.
func (s *ProfileStore) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}
