// Package precompute implements the background precomputer (component G):
// a lease-guarded, once-at-startup job that pre-populates the tile cache
// for a configured zoom range, structured the way the teacher's
// RollupScheduler owns a background worker with explicit Start/Stop.
package precompute

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dustin/go-humanize"

	"github.com/jcom-dev/mapclusters/internal/cache"
	"github.com/jcom-dev/mapclusters/internal/cluster"
	"github.com/jcom-dev/mapclusters/internal/geotile"
	"github.com/jcom-dev/mapclusters/internal/models"
	"github.com/jcom-dev/mapclusters/internal/pointstore"
)

const (
	leaseName  = "h3:precompute:lock"
	doneKey    = "h3:precompute:done"
	leaseTTL   = 3600 * time.Second
	flushEvery = 1000
)

// Region restricts precompute/pre-warm to a bounding box. A zero-value
// Region with Set == false means "no restriction, use the full dataset".
type Region struct {
	MinLat, MaxLat, MinLon, MaxLon float64
	Set                            bool
}

// Status is the mutex-protected snapshot exposed via GetStatus, replacing
// the teacher's ad-hoc `lastRun/running/healthy` tuple with the three
// fields spec.md §6's /api/status needs plus the supplemented detail
// fields (last_run, tiles_written, duration_ms).
type Status struct {
	Running      bool
	Completed    bool
	Error        string
	LastRun      time.Time
	TilesWritten int
	DurationMS   int64
}

// Precomputer owns the background job and its status snapshot.
type Precomputer struct {
	store     *pointstore.Store
	clusterer cluster.Clusterer
	cache     cache.Store
	region    Region
	workers   int

	mu     sync.RWMutex
	status Status

	wg sync.WaitGroup
}

// New constructs a Precomputer. workers bounds the per-zoom fan-out pool.
func New(store *pointstore.Store, clusterer cluster.Clusterer, c cache.Store, region Region, workers int) *Precomputer {
	if workers <= 0 {
		workers = 8
	}
	return &Precomputer{store: store, clusterer: clusterer, cache: c, region: region, workers: workers}
}

// Start launches the precompute run as a background goroutine, mirroring
// RollupScheduler.Start's wg.Add(1)/go worker pattern. Start is meant to be
// called exactly once, at supervisor startup.
func (p *Precomputer) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// Wait blocks until the background run completes, used by the supervisor's
// graceful-shutdown join.
func (p *Precomputer) Wait() {
	p.wg.Wait()
}

// GetStatus returns the current precompute status snapshot.
func (p *Precomputer) GetStatus() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Precomputer) setRunning(running bool) {
	p.mu.Lock()
	p.status.Running = running
	p.mu.Unlock()
}

func (p *Precomputer) run(ctx context.Context) {
	handle, ok := p.cache.Lease(ctx, leaseName, leaseTTL)
	if !ok {
		slog.Info("precompute lease not acquired, exiting", "lease", leaseName)
		return
	}
	defer handle.Release(ctx)

	p.setRunning(true)
	start := time.Now()
	slog.Info("precompute started", "points", humanize.Comma(int64(p.store.Len())))

	totalWritten := 0
	points := p.store.All()

	for z := geotile.ZoomMin; z <= geotile.ZoomMax; z++ {
		select {
		case <-ctx.Done():
			p.finish(start, totalWritten, ctx.Err())
			return
		default:
		}

		written, err := p.precomputeZoom(ctx, z, points)
		totalWritten += written
		if err != nil {
			p.finish(start, totalWritten, err)
			return
		}
	}

	p.cache.SetEx(ctx, doneKey, 0, []byte("1"))
	p.finish(start, totalWritten, nil)
}

func (p *Precomputer) finish(start time.Time, written int, err error) {
	duration := time.Since(start)
	p.mu.Lock()
	p.status.Running = false
	p.status.LastRun = time.Now()
	p.status.TilesWritten = written
	p.status.DurationMS = duration.Milliseconds()
	if err != nil {
		p.status.Completed = false
		p.status.Error = err.Error()
	} else {
		p.status.Completed = true
		p.status.Error = ""
	}
	p.mu.Unlock()

	if err != nil {
		slog.Error("precompute failed", "error", err, "tiles_written", humanize.Comma(int64(written)), "duration_ms", duration.Milliseconds())
		return
	}
	slog.Info("precompute completed", "tiles_written", humanize.Comma(int64(written)), "duration_ms", duration.Milliseconds())
}

// precomputeZoom partitions points by tile at zoom z and writes a cluster
// entry per non-empty partition, flushing the pipeline every flushEvery
// entries, per spec.md §4.7 step 2.
func (p *Precomputer) precomputeZoom(ctx context.Context, z int, points []models.Point) (int, error) {
	partitions := make(map[geotile.TileXY][]models.Point)
	for _, pt := range points {
		if p.region.Set && !inRegion(pt, p.region) {
			continue
		}
		t := geotile.LatLonToTile(pt.Latitude, pt.Longitude, z)
		partitions[t] = append(partitions[t], pt)
	}

	type job struct {
		tile   geotile.TileXY
		points []models.Point
	}
	jobs := make([]job, 0, len(partitions))
	for t, pts := range partitions {
		jobs = append(jobs, job{tile: t, points: pts})
	}

	var mu sync.Mutex
	pipe := p.cache.Pipeline()
	pending := 0
	written := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			bbox := geotile.TileToBBox(j.tile.X, j.tile.Y, z)
			clusters := p.clusterer.Cluster(j.points, z, bbox)
			if len(clusters) == 0 {
				return nil
			}
			encoded, err := encodeClusters(clusters)
			if err != nil {
				return nil
			}

			mu.Lock()
			pipe.SetEx(geotile.Key(z, j.tile.X, j.tile.Y), 30*24*time.Hour, encoded)
			pending++
			written++
			if pending >= flushEvery {
				err := pipe.Execute(gctx)
				pending = 0
				if err != nil {
					slog.Warn("precompute pipeline flush failed", "zoom", z, "error", err)
				}
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return written, err
	}

	if pending > 0 {
		if err := pipe.Execute(ctx); err != nil {
			slog.Warn("precompute final flush failed", "zoom", z, "error", err)
		}
	}

	slog.Debug("precompute zoom level done", "zoom", z, "tiles_written", written)
	return written, nil
}

func encodeClusters(clusters []models.Cluster) ([]byte, error) {
	return json.Marshal(clusters)
}

func inRegion(p models.Point, r Region) bool {
	return p.Latitude >= r.MinLat && p.Latitude <= r.MaxLat &&
		p.Longitude >= r.MinLon && p.Longitude <= r.MaxLon
}
