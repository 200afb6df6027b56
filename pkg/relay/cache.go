package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/ctdf"
	"golang.org/x/exp/slices"
)

const mirrorTimeout = time.Second

// LocationCache keeps the last known position per entity for observers that
// reconnect. It holds at most capacity entries and evicts the least recently
// updated one first. An optional mirror shares positions with other replicas.
type LocationCache struct {
	mutex    sync.Mutex
	capacity int
	entries  map[string]ctdf.LocationUpdate
	order    []string

	mirror      *cache.Cache[string]
	mirrorMutex sync.Mutex
}

func NewLocationCache(capacity int) *LocationCache {
	if capacity < 1 {
		capacity = 1
	}

	return &LocationCache{
		capacity: capacity,
		entries:  map[string]ctdf.LocationUpdate{},
	}
}

// NewRedisMirror builds the shared store used by WithMirror
func NewRedisMirror(client *redis.Client, ttl time.Duration) *cache.Cache[string] {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return cache.New[string](redisStore)
}

func (c *LocationCache) WithMirror(mirror *cache.Cache[string]) *LocationCache {
	c.mirror = mirror
	return c
}

func (c *LocationCache) Put(update ctdf.LocationUpdate) {
	key := update.CacheKey()

	c.mutex.Lock()
	if _, exists := c.entries[key]; exists {
		c.removeFromOrderLocked(key)
	} else if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = update
	c.order = append(c.order, key)
	c.mutex.Unlock()

	if c.mirror != nil {
		go c.mirrorPut(key, update)
	}
}

func (c *LocationCache) mirrorPut(key string, update ctdf.LocationUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	updateJSON, err := json.Marshal(update)
	if err != nil {
		return
	}

	c.mirrorMutex.Lock()
	defer c.mirrorMutex.Unlock()

	if err := c.mirror.Set(ctx, mirrorKey(key), string(updateJSON)); err != nil {
		log.Debug().Err(err).Str("entity", key).Msg("Failed to mirror location")
		return
	}

	if update.AccidentID == "" {
		return
	}

	keys := c.mirroredKeys(ctx, update.AccidentID)
	if slices.Contains(keys, key) {
		return
	}
	keys = append(keys, key)

	keysJSON, err := json.Marshal(keys)
	if err != nil {
		return
	}
	if err := c.mirror.Set(ctx, incidentIndexKey(update.AccidentID), string(keysJSON)); err != nil {
		log.Debug().Err(err).Str("incident", update.AccidentID).Msg("Failed to index mirrored location")
	}
}

// mirroredKeys lists the entities any replica has mirrored for an incident
func (c *LocationCache) mirroredKeys(ctx context.Context, incidentID string) []string {
	indexed, err := c.mirror.Get(ctx, incidentIndexKey(incidentID))
	if err != nil {
		return nil
	}

	var keys []string
	if err := json.Unmarshal([]byte(indexed), &keys); err != nil {
		return nil
	}
	return keys
}

// Get returns the last position of an entity, falling back to the mirror
func (c *LocationCache) Get(ctx context.Context, entityType ctdf.EntityType, entityID string) (*ctdf.LocationUpdate, bool) {
	key := (&ctdf.LocationUpdate{EntityType: entityType, EntityID: entityID}).CacheKey()

	c.mutex.Lock()
	update, ok := c.entries[key]
	c.mutex.Unlock()

	if ok {
		return &update, true
	}

	if c.mirror == nil {
		return nil, false
	}

	mirrored, err := c.mirror.Get(ctx, mirrorKey(key))
	if err != nil {
		return nil, false
	}

	var mirroredUpdate ctdf.LocationUpdate
	if err := json.Unmarshal([]byte(mirrored), &mirroredUpdate); err != nil {
		return nil, false
	}

	return &mirroredUpdate, true
}

// Recent returns the last position of every entity on an incident. Entities only
// another replica has seen come from the mirror and are listed first.
func (c *LocationCache) Recent(ctx context.Context, incidentID string) []ctdf.LocationUpdate {
	var local []ctdf.LocationUpdate
	seen := map[string]bool{}

	c.mutex.Lock()
	for _, key := range c.order {
		if update := c.entries[key]; update.AccidentID == incidentID {
			local = append(local, update)
			seen[key] = true
		}
	}
	c.mutex.Unlock()

	if c.mirror == nil {
		return local
	}

	var updates []ctdf.LocationUpdate
	for _, key := range c.mirroredKeys(ctx, incidentID) {
		if seen[key] {
			continue
		}

		mirrored, err := c.mirror.Get(ctx, mirrorKey(key))
		if err != nil {
			continue
		}

		var update ctdf.LocationUpdate
		if err := json.Unmarshal([]byte(mirrored), &update); err != nil || update.AccidentID != incidentID {
			continue
		}
		updates = append(updates, update)
	}

	return append(updates, local...)
}

// List returns the cached positions oldest first
func (c *LocationCache) List() []ctdf.LocationUpdate {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	updates := make([]ctdf.LocationUpdate, 0, len(c.order))
	for _, key := range c.order {
		updates = append(updates, c.entries[key])
	}
	return updates
}

func (c *LocationCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.order)
}

func (c *LocationCache) removeFromOrderLocked(key string) {
	for i, existing := range c.order {
		if existing == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func mirrorKey(key string) string {
	return fmt.Sprintf("corridor:location:%s", key)
}

func incidentIndexKey(incidentID string) string {
	return fmt.Sprintf("corridor:incident:%s:locations", incidentID)
}
