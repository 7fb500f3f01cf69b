// Package cluster implements the two clustering algorithms that turn a set
// of points in a viewport into a set of map markers: a rectangular grid
// (Mode G) and an H3 hexagonal grid (Mode H). Both conserve point count
// (invariant C1) and sort results descending by count.
package cluster

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/jcom-dev/mapclusters/internal/models"
)

// Mode selects which clustering algorithm a Clusterer uses.
type Mode string

const (
	ModeGrid Mode = "grid"
	ModeH3   Mode = "h3"
)

// Clusterer groups points into Cluster records for a given zoom level. bbox
// is the tile's bounding box; Mode G's resolution grid is defined over it,
// Mode H ignores it (H3 cell assignment is bbox-independent).
type Clusterer interface {
	Cluster(points []models.Point, zoom int, bbox orb.Bound) []models.Cluster
}

// New returns the Clusterer for mode, defaulting to H3 for anything else
// (including the empty string), matching SPEC_FULL's choice of H3 as the
// deployed mode.
func New(mode Mode) Clusterer {
	if mode == ModeGrid {
		return GridClusterer{}
	}
	return H3Clusterer{}
}

// sortDescByCount orders clusters by count, highest first, matching both
// algorithms' resolved tie-breaking rule (stable on insertion order for
// equal counts).
func sortDescByCount(clusters []models.Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Count > clusters[j].Count
	})
}

func singlePointCluster(p models.Point) models.Cluster {
	c := models.Cluster{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Count:     1,
		ID:        strPtr(p.ID),
		Margin:    p.Margin,
		TypeLocal: p.TypeLocal,
		Address:   p.Address,
	}
	return c
}

func strPtr(s string) *string { return &s }
