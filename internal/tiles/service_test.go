package tiles

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcom-dev/mapclusters/internal/cache"
	"github.com/jcom-dev/mapclusters/internal/cluster"
	"github.com/jcom-dev/mapclusters/internal/models"
	"github.com/jcom-dev/mapclusters/internal/pointstore"
)

func parisFixture() *pointstore.Store {
	return pointstore.New([]models.Point{
		{ID: "p1", Latitude: 48.85, Longitude: 2.35},
		{ID: "p2", Latitude: 48.86, Longitude: 2.36},
		{ID: "p3", Latitude: 43.30, Longitude: 5.40},
	})
}

func totalCount(clusters []models.Cluster) int {
	n := 0
	for _, c := range clusters {
		n += c.Count
	}
	return n
}

func TestGetTileColdThenWarm(t *testing.T) {
	store := parisFixture()
	c := cache.NewMemoryStore()
	svc := New(store, cluster.New(cluster.ModeGrid), c)

	ctx := context.Background()
	cold, err := svc.GetTile(ctx, 6, 32, 22)
	require.NoError(t, err)
	assert.Equal(t, 2, totalCount(cold))

	warm, err := svc.GetTile(ctx, 6, 32, 22)
	require.NoError(t, err)
	assert.Equal(t, cold, warm)
}

func TestGetTileEmptyTileNotCached(t *testing.T) {
	store := pointstore.New(nil)
	c := cache.NewMemoryStore()
	svc := New(store, cluster.New(cluster.ModeGrid), c)

	clusters, err := svc.GetTile(context.Background(), 6, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, clusters)

	_, ok := c.Get(context.Background(), "tile:6:0:0")
	assert.False(t, ok, "an empty result must not be written to the cache")
}

// instrumentedClusterer counts how many times Cluster actually runs the
// aggregation, used to verify the tile service's singleflight property:
// N concurrent callers on the same cold key must trigger at most one
// compute.
type instrumentedClusterer struct {
	inner cluster.Clusterer
	calls *atomic.Int64
}

func (c *instrumentedClusterer) Cluster(points []models.Point, zoom int, bbox orb.Bound) []models.Cluster {
	c.calls.Add(1)
	return c.inner.Cluster(points, zoom, bbox)
}

func TestGetTileSingleflightDedup(t *testing.T) {
	store := parisFixture()
	c := cache.NewMemoryStore()

	var calls atomic.Int64
	svc := New(store, &instrumentedClusterer{inner: cluster.GridClusterer{}, calls: &calls}, c)

	ctx := context.Background()
	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.GetTile(ctx, 6, 32, 22)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int64(1))
}
