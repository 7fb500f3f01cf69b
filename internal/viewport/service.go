// Package viewport implements the viewport service (component F): viewport
// cache lookup, bounded fan-out to the tile service on a miss, and merge.
package viewport

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcom-dev/mapclusters/internal/apierr"
	"github.com/jcom-dev/mapclusters/internal/cache"
	"github.com/jcom-dev/mapclusters/internal/geotile"
	"github.com/jcom-dev/mapclusters/internal/models"
	"github.com/jcom-dev/mapclusters/internal/tiles"
)

// viewportTTL is the 5-minute cache lifetime for a merged viewport result.
const viewportTTL = 5 * time.Minute

// TileGetter is the subset of tiles.Service the viewport service depends
// on, so tests can substitute a fake.
type TileGetter interface {
	GetTile(ctx context.Context, z, x, y int) ([]models.Cluster, error)
}

// Service answers get_markers queries.
type Service struct {
	tiles   TileGetter
	cache   cache.Store
	workers int
}

var _ TileGetter = (*tiles.Service)(nil)

// New constructs a viewport Service. workers bounds the fan-out pool size
// used to compute missing tiles concurrently; spec.md §5 recommends 8.
func New(tileService TileGetter, c cache.Store, workers int) *Service {
	if workers <= 0 {
		workers = 8
	}
	return &Service{tiles: tileService, cache: c, workers: workers}
}

// GetMarkers implements spec.md §4.6. It validates the query parameters,
// consults the viewport cache, and on a miss fans out to the tile service
// across s.workers concurrent workers, merging and caching the result.
func (s *Service) GetMarkers(ctx context.Context, minLat, maxLat, minLon, maxLon, zoom float64) ([]models.Cluster, error) {
	if err := validate(minLat, maxLat, minLon, maxLon, zoom); err != nil {
		return nil, err
	}

	vk := buildKey(minLat, maxLat, minLon, maxLon, zoom)
	if raw, ok := s.cache.Get(ctx, vk); ok {
		var clusters []models.Cluster
		if err := json.Unmarshal(raw, &clusters); err == nil {
			return clusters, nil
		}
	}

	reqZ := clampZoom(int(math.Floor(zoom)))
	tileList := geotile.BoundsToTiles(minLat, maxLat, minLon, maxLon, reqZ)

	keys := make([]string, len(tileList))
	for i, t := range tileList {
		keys[i] = geotile.Key(reqZ, t.X, t.Y)
	}
	raw := s.cache.MGet(ctx, keys)

	merged := make([]models.Cluster, 0)
	var missing []int
	for i, r := range raw {
		if r == nil {
			missing = append(missing, i)
			continue
		}
		var clusters []models.Cluster
		if err := json.Unmarshal(r, &clusters); err != nil {
			missing = append(missing, i)
			continue
		}
		merged = append(merged, clusters...)
	}

	if len(missing) > 0 {
		computed, err := s.fanOut(ctx, reqZ, tileList, missing)
		if err != nil {
			return nil, err
		}
		merged = append(merged, computed...)
	}

	if len(merged) > 0 {
		if encoded, err := json.Marshal(merged); err == nil {
			s.cache.SetEx(ctx, vk, viewportTTL, encoded)
		}
	}

	return merged, nil
}

// fanOut dispatches GetTile for every missing tile index across a bounded
// errgroup pool, per spec.md §4.6 step 4. A single tile's failure is
// swallowed (logged by the tile service) rather than failing the whole
// viewport request; only an unrecoverable pool-level failure surfaces as
// apierr.WorkerExhausted.
func (s *Service) fanOut(ctx context.Context, z int, tileList []geotile.TileXY, missing []int) ([]models.Cluster, error) {
	results := make([][]models.Cluster, len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, idx := range missing {
		i, idx := i, idx
		g.Go(func() error {
			t := tileList[idx]
			clusters, err := s.tiles.GetTile(gctx, z, t.X, t.Y)
			if err != nil {
				slog.Error("tile compute failed, contributing empty", "z", z, "x", t.X, "y", t.Y, "error", err)
				return nil
			}
			results[i] = clusters
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apierr.WorkerExhausted("viewport tile fan-out failed: " + err.Error())
	}

	out := make([]models.Cluster, 0)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func clampZoom(z int) int {
	if z < geotile.ZoomMin {
		return geotile.ZoomMin
	}
	if z > geotile.ZoomMax {
		return geotile.ZoomMax
	}
	return z
}

func validate(minLat, maxLat, minLon, maxLon, zoom float64) error {
	for _, v := range []float64{minLat, maxLat, minLon, maxLon, zoom} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apierr.InvalidParams("query parameters must be finite numbers")
		}
	}
	if minLat > maxLat {
		return apierr.InvalidParams("min_lat must be <= max_lat")
	}
	if minLon > maxLon {
		return apierr.InvalidParams("min_lon must be <= max_lon")
	}
	if minLat < -90 || maxLat > 90 {
		return apierr.InvalidParams("latitude out of range")
	}
	if minLon < -180 || maxLon > 180 {
		return apierr.InvalidParams("longitude out of range")
	}
	return nil
}
