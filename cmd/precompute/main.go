// Package main provides the precompute CLI, a standalone operator tool
// that runs the background tile precomputer (component G) to completion
// and exits, instead of leaving it running inside the API server.
//
// Usage:
//
//	precompute          # Load the dataset and pre-populate the tile cache
//	precompute --verbose # With debug logging
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcom-dev/mapclusters/internal/cache"
	"github.com/jcom-dev/mapclusters/internal/cluster"
	"github.com/jcom-dev/mapclusters/internal/config"
	"github.com/jcom-dev/mapclusters/internal/ingest"
	"github.com/jcom-dev/mapclusters/internal/pointstore"
	"github.com/jcom-dev/mapclusters/internal/precompute"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "precompute",
		Short: "Pre-populate the tile cache for the configured zoom range",
		Long: `Loads the point dataset, partitions it into Web-Mercator tiles for
every zoom in [6, 14], clusters each partition, and writes the results to
the tile cache under the same lease the API server's background
precomputer uses. Run this after a dataset redeploy to warm the cache
without waiting on the server's own startup precompute pass, or on a
schedule independent of the API process's lifetime.`,
		RunE: runPrecompute,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPrecompute(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.CSVURL == "" {
		return fmt.Errorf("CSV_URL not set")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	points, err := ingest.LoadPoints(ctx, cfg.CSVURL)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	slog.Info("dataset loaded", "points", len(points))

	store := pointstore.New(points)
	clusterer := cluster.New(cfg.ClusterMode)
	cacheStore := cache.New(cfg.RedisURL)

	region := precompute.Region{
		MinLat: cfg.PrecomputeRegion.MinLat, MaxLat: cfg.PrecomputeRegion.MaxLat,
		MinLon: cfg.PrecomputeRegion.MinLon, MaxLon: cfg.PrecomputeRegion.MaxLon,
		Set: cfg.PrecomputeRegion.Set,
	}

	pc := precompute.New(store, clusterer, cacheStore, region, cfg.WorkerPoolSize)
	pc.Start(ctx)
	pc.Wait()

	status := pc.GetStatus()
	if status.LastRun.IsZero() {
		slog.Info("precompute lease held by another process, nothing done")
		return nil
	}
	if !status.Completed {
		return fmt.Errorf("precompute did not complete: %s", status.Error)
	}
	slog.Info("precompute finished", "tiles_written", status.TilesWritten, "duration_ms", status.DurationMS)
	return nil
}
