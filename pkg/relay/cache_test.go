package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/corridor/pkg/ctdf"
)

func ambulanceAt(id string, lat float64) ctdf.LocationUpdate {
	return ctdf.LocationUpdate{
		AccidentID: "ACC-1",
		EntityID:   id,
		EntityType: ctdf.EntityTypeAmbulance,
		Location:   ctdf.NewGeoPoint(lat, 73.85),
	}
}

func entityIDs(updates []ctdf.LocationUpdate) []string {
	var ids []string
	for _, update := range updates {
		ids = append(ids, update.EntityID)
	}
	return ids
}

func TestLocationCacheEvictsOldest(t *testing.T) {
	cache := NewLocationCache(3)

	for i := 1; i <= 5; i++ {
		cache.Put(ambulanceAt(fmt.Sprintf("AMB-%d", i), 18.5))
	}

	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, []string{"AMB-3", "AMB-4", "AMB-5"}, entityIDs(cache.List()))

	_, ok := cache.Get(context.Background(), ctdf.EntityTypeAmbulance, "AMB-1")
	assert.False(t, ok)
}

func TestLocationCacheUpdateRefreshesEntry(t *testing.T) {
	cache := NewLocationCache(3)

	cache.Put(ambulanceAt("AMB-1", 18.50))
	cache.Put(ambulanceAt("AMB-2", 18.50))
	cache.Put(ambulanceAt("AMB-3", 18.50))
	cache.Put(ambulanceAt("AMB-1", 18.51))
	cache.Put(ambulanceAt("AMB-4", 18.50))

	assert.Equal(t, []string{"AMB-3", "AMB-1", "AMB-4"}, entityIDs(cache.List()))

	latest, ok := cache.Get(context.Background(), ctdf.EntityTypeAmbulance, "AMB-1")
	require.True(t, ok)
	assert.Equal(t, 18.51, latest.Location.Latitude)
}

func TestLocationCacheKeysByEntityType(t *testing.T) {
	cache := NewLocationCache(10)

	victim := ambulanceAt("X-1", 18.4)
	victim.EntityType = ctdf.EntityTypeVictim
	cache.Put(ambulanceAt("X-1", 18.5))
	cache.Put(victim)

	assert.Equal(t, 2, cache.Len())
}

func TestLocationCacheMirror(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	writer := NewLocationCache(10).WithMirror(NewRedisMirror(client, time.Minute))
	writer.Put(ambulanceAt("AMB-1", 18.52))

	// A second replica with an empty in-process cache
	reader := NewLocationCache(10).WithMirror(NewRedisMirror(client, time.Minute))

	require.Eventually(t, func() bool {
		_, ok := reader.Get(context.Background(), ctdf.EntityTypeAmbulance, "AMB-1")
		return ok
	}, time.Second, 10*time.Millisecond)

	mirrored, _ := reader.Get(context.Background(), ctdf.EntityTypeAmbulance, "AMB-1")
	assert.Equal(t, 18.52, mirrored.Location.Latitude)
	assert.True(t, server.Exists("corridor:location:AMBULANCE:AMB-1"))
}
