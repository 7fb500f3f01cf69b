// Package config reads the service's environment-variable configuration,
// following the teacher's os.Getenv-plus-default style used throughout
// internal/cache and cmd/api/main.go. godotenv loads a local .env file
// first so the same binary works unmodified in development and production.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jcom-dev/mapclusters/internal/cluster"
)

// Config holds every environment-derived setting the supervisor needs to
// construct the service.
type Config struct {
	// RedisURL is the cache endpoint, defaulting to the Docker Compose
	// service name. cache.New still falls back to the in-memory
	// degrade-path cache if this address is unreachable.
	RedisURL string

	// CSVURL feeds internal/ingest.LoadPoints and also accepts an s3:// URI.
	// DatabaseURL is read from the environment but not used by the loader.
	CSVURL      string
	DatabaseURL string

	// SkipPrecompute disables the background precomputer (component G)
	// entirely when true.
	SkipPrecompute bool

	// ClusterMode selects Mode G (grid) or Mode H (H3); defaults to H3.
	ClusterMode cluster.Mode

	// Port is the HTTP listen port.
	Port string

	// WorkerPoolSize bounds the fan-out concurrency used by the viewport
	// service and the precomputer.
	WorkerPoolSize int

	// PrecomputeRegion restricts precompute/pre-warm to a bounding box;
	// zero-value means "no restriction, use the full dataset extent".
	PrecomputeRegion BBox

	// AdminToken guards the DELETE /api/cache endpoint. Empty disables the
	// endpoint entirely (admin flush is opt-in).
	AdminToken string
}

// BBox is a plain geographic rectangle used for configuration inputs where
// depending on orb would be overkill.
type BBox struct {
	MinLat, MaxLat, MinLon, MaxLon float64
	Set                            bool
}

// Load reads configuration from the environment, loading a local .env file
// first if present (ignored if absent; this is a local-dev convenience, not
// a requirement).
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{
		RedisURL:       envOr("REDIS_URL", "redis://redis:6379/0"),
		CSVURL:         os.Getenv("CSV_URL"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SkipPrecompute: envBool("SKIP_PRECOMPUTE", false),
		ClusterMode:    envClusterMode("CLUSTER_MODE", cluster.ModeH3),
		Port:           envOr("PORT", "8080"),
		WorkerPoolSize: envInt("WORKER_POOL_SIZE", 8),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
	}

	if region, ok := envRegion("PRECOMPUTE_REGION"); ok {
		cfg.PrecomputeRegion = region
	}

	return cfg
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "name", name, "value", v, "default", def)
		return def
	}
	return n
}

func envClusterMode(name string, def cluster.Mode) cluster.Mode {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "grid":
		return cluster.ModeGrid
	case "h3":
		return cluster.ModeH3
	case "":
		return def
	default:
		slog.Warn("unknown cluster mode, using default", "value", v, "default", def)
		return def
	}
}

// envRegion parses "minLat,maxLat,minLon,maxLon" into a BBox.
func envRegion(name string) (BBox, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return BBox{}, false
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		slog.Warn("malformed precompute region, ignoring", "value", v)
		return BBox{}, false
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			slog.Warn("malformed precompute region coordinate, ignoring", "value", v)
			return BBox{}, false
		}
		vals[i] = f
	}
	return BBox{MinLat: vals[0], MaxLat: vals[1], MinLon: vals[2], MaxLon: vals[3], Set: true}, true
}
