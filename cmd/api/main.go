// Map Clusters API
//
// Serves clustered map markers for a large, mostly-static geographic point
// dataset via a three-tier cache (viewport, tile, point-store) in front of
// a rectangular-grid or H3 hexagonal clusterer.
//
//	@title			Map Clusters API
//	@version		1.0
//	@description	Viewport and tile clustering API over a static point dataset
//
//	@license.name	MIT
//
//	@host		localhost:8080
//	@BasePath	/api
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcom-dev/mapclusters/internal/config"
	"github.com/jcom-dev/mapclusters/internal/supervisor"
)

func main() {
	cfg := config.Load()

	sup, err := supervisor.New(cfg)
	if err != nil {
		log.Fatalf("failed to construct supervisor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Run(ctx); err != nil {
		slog.Error("supervisor exited with error", "error", err)
		os.Exit(1)
	}
}
