package viewport

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcom-dev/mapclusters/internal/apierr"
	"github.com/jcom-dev/mapclusters/internal/cache"
	"github.com/jcom-dev/mapclusters/internal/models"
)

type fakeTileGetter struct {
	calls atomic.Int64
	fn    func(z, x, y int) ([]models.Cluster, error)
}

func (f *fakeTileGetter) GetTile(_ context.Context, z, x, y int) ([]models.Cluster, error) {
	f.calls.Add(1)
	return f.fn(z, x, y)
}

func onePointPerTile() *fakeTileGetter {
	return &fakeTileGetter{fn: func(z, x, y int) ([]models.Cluster, error) {
		return []models.Cluster{{Latitude: 48.85, Longitude: 2.35, Count: 1}}, nil
	}}
}

func TestGetMarkersComputesAndCachesViewport(t *testing.T) {
	tg := onePointPerTile()
	c := cache.NewMemoryStore()
	svc := New(tg, c, 4)

	ctx := context.Background()
	clusters, err := svc.GetMarkers(ctx, 48.8, 48.9, 2.3, 2.4, 14)
	require.NoError(t, err)
	assert.NotEmpty(t, clusters)

	firstCalls := tg.calls.Load()
	assert.Greater(t, firstCalls, int64(0))

	// A second identical call must hit the viewport cache rather than
	// fanning out to the tile service again.
	again, err := svc.GetMarkers(ctx, 48.8, 48.9, 2.3, 2.4, 14)
	require.NoError(t, err)
	assert.Equal(t, clusters, again)
	assert.Equal(t, firstCalls, tg.calls.Load())
}

func TestGetMarkersRejectsInvalidParams(t *testing.T) {
	svc := New(onePointPerTile(), cache.NewMemoryStore(), 4)
	ctx := context.Background()

	cases := []struct {
		name                                 string
		minLat, maxLat, minLon, maxLon, zoom float64
	}{
		{"min>max lat", 48.9, 48.8, 2.3, 2.4, 10},
		{"min>max lon", 48.8, 48.9, 2.4, 2.3, 10},
		{"lat out of range", -91, 48.9, 2.3, 2.4, 10},
		{"lon out of range", 48.8, 48.9, -181, 2.4, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GetMarkers(ctx, tc.minLat, tc.maxLat, tc.minLon, tc.maxLon, tc.zoom)
			var apiErr *apierr.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, apierr.KindInvalidParams, apiErr.Kind)
		})
	}
}

func TestGetMarkersDegradesWhenCacheMGetFails(t *testing.T) {
	tg := onePointPerTile()
	svc := New(tg, cache.NewMemoryStore(), 4)

	// An empty cache means every tile is a miss; the viewport must still
	// resolve correctly by fanning out to the tile service.
	clusters, err := svc.GetMarkers(context.Background(), 48.8, 48.9, 2.3, 2.4, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, clusters)
}

func TestGetMarkersSwallowsPerTileFailures(t *testing.T) {
	tg := &fakeTileGetter{fn: func(z, x, y int) ([]models.Cluster, error) {
		return nil, assertErr
	}}
	svc := New(tg, cache.NewMemoryStore(), 4)

	clusters, err := svc.GetMarkers(context.Background(), 48.8, 48.9, 2.3, 2.4, 10)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

var assertErr = errSentinel("boom")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }

func TestClampZoom(t *testing.T) {
	assert.Equal(t, 6, clampZoom(0))
	assert.Equal(t, 14, clampZoom(20))
	assert.Equal(t, 10, clampZoom(10))
}
