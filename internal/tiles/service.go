// Package tiles implements the tile service (component E): cache-backed,
// singleflight-deduplicated computation of a single (z, x, y) tile's
// cluster set.
package tiles

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jcom-dev/mapclusters/internal/cache"
	"github.com/jcom-dev/mapclusters/internal/cluster"
	"github.com/jcom-dev/mapclusters/internal/geotile"
	"github.com/jcom-dev/mapclusters/internal/models"
	"github.com/jcom-dev/mapclusters/internal/pointstore"
)

// tileTTL is the 30-day cache lifetime for a precomputed or lazily-computed
// tile entry.
const tileTTL = 30 * 24 * time.Hour

// Service answers get_tile queries. A single Service should be shared
// across all request handlers in a process; its singleflight group is what
// gives the process-local dedup property.
type Service struct {
	store     *pointstore.Store
	clusterer cluster.Clusterer
	cache     cache.Store

	sf singleflight.Group
}

// New constructs a tile Service over store using the given clustering mode
// and cache backend.
func New(store *pointstore.Store, clusterer cluster.Clusterer, c cache.Store) *Service {
	return &Service{store: store, clusterer: clusterer, cache: c}
}

// GetTile returns the cluster set for tile (z, x, y), per spec.md §4.5:
// cache lookup, then compute-on-miss with singleflight dedup, then
// best-effort cache population.
func (s *Service) GetTile(ctx context.Context, z, x, y int) ([]models.Cluster, error) {
	key := geotile.Key(z, x, y)

	if raw, ok := s.cache.Get(ctx, key); ok {
		clusters, err := decode(raw)
		if err == nil {
			return clusters, nil
		}
		slog.Warn("tile cache entry corrupt, recomputing", "key", key, "error", err)
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Re-check the cache: a caller that missed above may arrive after
		// another caller's flight has already computed and stored the tile.
		if raw, ok := s.cache.Get(ctx, key); ok {
			if clusters, err := decode(raw); err == nil {
				return clusters, nil
			}
		}
		clusters := s.compute(ctx, z, x, y)
		if len(clusters) > 0 {
			if encoded, err := json.Marshal(clusters); err == nil {
				s.cache.SetEx(ctx, key, tileTTL, encoded)
			}
		}
		return clusters, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]models.Cluster), nil
}

func (s *Service) compute(_ context.Context, z, x, y int) []models.Cluster {
	bbox := geotile.TileToBBox(x, y, z)
	view := s.store.FilterBBox(bbox)
	return s.clusterer.Cluster(view, z, bbox)
}

func decode(raw []byte) ([]models.Cluster, error) {
	var clusters []models.Cluster
	if err := json.Unmarshal(raw, &clusters); err != nil {
		return nil, err
	}
	return clusters, nil
}
