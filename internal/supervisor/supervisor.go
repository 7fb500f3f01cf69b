// Package supervisor owns process lifecycle (component H): loading the
// dataset, constructing the point store, launching the precomputer and
// pre-warm tasks, and coordinating graceful shutdown. Grounded on the
// teacher's RollupScheduler-owned-by-main lifecycle shape, generalized to
// own every background task rather than a single rollup job.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jcom-dev/mapclusters/internal/cache"
	"github.com/jcom-dev/mapclusters/internal/cluster"
	"github.com/jcom-dev/mapclusters/internal/config"
	"github.com/jcom-dev/mapclusters/internal/geotile"
	"github.com/jcom-dev/mapclusters/internal/httpapi"
	"github.com/jcom-dev/mapclusters/internal/ingest"
	"github.com/jcom-dev/mapclusters/internal/pointstore"
	"github.com/jcom-dev/mapclusters/internal/precompute"
	"github.com/jcom-dev/mapclusters/internal/tiles"
	"github.com/jcom-dev/mapclusters/internal/viewport"
)

// prewarmZoomMin/Max bound the pre-warm pass spec.md §4.7 describes: low
// zooms hot before the background precomputer finishes.
const (
	prewarmZoomMin = 6
	prewarmZoomMax = 8
)

// Supervisor orchestrates startup, request serving, and shutdown.
type Supervisor struct {
	cfg   *config.Config
	cache cache.Store

	store       *pointstore.Store
	tileService *tiles.Service
	viewport    *viewport.Service
	precomputer *precompute.Precomputer

	ready atomic.Bool
	wg    sync.WaitGroup

	httpServer *http.Server
}

// New constructs a Supervisor. Cache selection (Redis vs in-memory) happens
// here based on cfg.RedisURL, per the interface-plus-two-implementations
// design spec.md §9 calls for.
func New(cfg *config.Config) (*Supervisor, error) {
	return &Supervisor{cfg: cfg, cache: cache.New(cfg.RedisURL)}, nil
}

// Run loads the dataset, starts background tasks, and serves HTTP until ctx
// is canceled, then shuts down gracefully. A dataset load failure is fatal
// per spec.md §7.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.cfg.CSVURL == "" {
		return fmt.Errorf("load dataset: CSV_URL not set (DATABASE_URL is accepted but not honored by this loader)")
	}
	points, err := ingest.LoadPoints(ctx, s.cfg.CSVURL)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	slog.Info("dataset loaded", "points", humanize.Comma(int64(len(points))))

	s.store = pointstore.New(points)
	clusterer := cluster.New(s.cfg.ClusterMode)
	s.tileService = tiles.New(s.store, clusterer, s.cache)
	s.viewport = viewport.New(s.tileService, s.cache, s.cfg.WorkerPoolSize)

	region := precompute.Region{
		MinLat: s.cfg.PrecomputeRegion.MinLat, MaxLat: s.cfg.PrecomputeRegion.MaxLat,
		MinLon: s.cfg.PrecomputeRegion.MinLon, MaxLon: s.cfg.PrecomputeRegion.MaxLon,
		Set: s.cfg.PrecomputeRegion.Set,
	}

	if !s.cfg.SkipPrecompute {
		s.precomputer = precompute.New(s.store, clusterer, s.cache, region, s.cfg.WorkerPoolSize)
		s.precomputer.Start(ctx)
	} else {
		slog.Info("SKIP_PRECOMPUTE set, background precomputer not started")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.prewarm(ctx)
	}()

	s.ready.Store(true)

	handlers := httpapi.New(s.viewport, s.tileService, s.precomputer, s.cache, s.cfg.AdminToken, &s.ready, s.cfg.SkipPrecompute)
	s.httpServer = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      httpapi.NewRouter(handlers),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "port", s.cfg.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	return s.shutdown()
}

// shutdown joins background workers with a bounded grace period, per
// spec.md §4.8.
func (s *Supervisor) shutdown() error {
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server forced shutdown", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		if s.precomputer != nil {
			s.precomputer.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		slog.Warn("shutdown grace period exceeded, background tasks may be abandoned")
	}

	if closer, ok := s.cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("cache close failed", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// prewarm populates the tile cache for low zooms, one tile at a time, per
// spec.md §4.7's pre-warm step. Run starts it in its own background
// goroutine, so requests may be served before it completes.
func (s *Supervisor) prewarm(ctx context.Context) {
	start := time.Now()
	region := s.cfg.PrecomputeRegion

	minLat, maxLat, minLon, maxLon := -85.0, 85.0, -180.0, 180.0
	if region.Set {
		minLat, maxLat, minLon, maxLon = region.MinLat, region.MaxLat, region.MinLon, region.MaxLon
	}

	count := 0
	for z := prewarmZoomMin; z <= prewarmZoomMax; z++ {
		tileList := geotile.BoundsToTiles(minLat, maxLat, minLon, maxLon, z)
		for _, t := range tileList {
			if _, err := s.tileService.GetTile(ctx, z, t.X, t.Y); err != nil {
				slog.Error("prewarm tile failed", "z", z, "x", t.X, "y", t.Y, "error", err)
				continue
			}
			count++
		}
	}

	slog.Info("prewarm complete", "tiles", count, "duration_ms", time.Since(start).Milliseconds())
}
