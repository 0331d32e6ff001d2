package valkeycache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/campuslink/campuslink-backend/internal/models"
	"github.com/campuslink/campuslink-backend/internal/storage"
	"github.com/valkey-io/valkey-go"
)

// profileTTL bounds how long a cached profile is served before the
// external collaborator is consulted again. Roughly one session.
const profileTTL = 30 * time.Minute

// ProfileCache is a read-through cache in front of a ProfileStore.
// Conversation aggregation resolves the same handful of profiles on every
// recompute; this keeps those lookups off the profiles service. Cache
// failures degrade to the underlying store, never to an error.
type ProfileCache struct {
	client valkey.Client
	next   storage.ProfileStore
}

// NewProfileCache connects to Valkey at addr and wraps next.
func NewProfileCache(addr string, next storage.ProfileStore) (*ProfileCache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", addr, err)
	}
	log.Printf("Connected to Valkey profile cache at %s", addr)
	return &ProfileCache{client: client, next: next}, nil
}

func profileKey(id string) string {
	return "profile:" + id
}

func (c *ProfileCache) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	raw, err := c.client.Do(ctx, c.client.B().Get().Key(profileKey(id)).Build()).AsBytes()
	if err == nil {
		p := &models.Profile{}
		if err := json.Unmarshal(raw, p); err == nil {
			return p, nil
		}
		log.Printf("[CACHE] corrupt profile entry for %s, refetching", id)
	} else if !valkey.IsValkeyNil(err) {
		log.Printf("[CACHE] valkey get failed for %s: %v", id, err)
	}

	p, err := c.next.GetProfileByID(ctx, id)
	if err != nil || p == nil {
		// Unresolved profiles are not cached: the user may appear later.
		return p, err
	}

	if encoded, err := json.Marshal(p); err == nil {
		setCmd := c.client.B().Set().Key(profileKey(id)).Value(string(encoded)).Ex(profileTTL).Build()
		if err := c.client.Do(ctx, setCmd).Error(); err != nil {
			log.Printf("[CACHE] valkey set failed for %s: %v", id, err)
		}
	}
	return p, nil
}

// Close releases the Valkey connection.
func (c *ProfileCache) Close() {
	c.client.Close()
}
