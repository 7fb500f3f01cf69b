// Package pointstore holds the in-memory, immutable collection of points
// loaded at startup and answers bounding-box queries against it via an
// R-tree spatial index. No cache sits in front of it; every call is a
// direct index lookup.
package pointstore

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/jcom-dev/mapclusters/internal/models"
)

// Store is a read-only, thread-safe collection of points built once from a
// loaded dataset. It is never mutated after New returns.
type Store struct {
	points []models.Point
	index  rtree.RTreeG[int]

	// mu guards nothing about points/index (both are immutable after
	// construction); it exists only so Len/IsEmpty read a stable length
	// even if a future caller adds incremental loading.
	mu sync.RWMutex
}

// New builds a Store from a slice of already-loaded points, discarding any
// point that fails models.Point.Valid (invariant P1).
func New(points []models.Point) *Store {
	s := &Store{}
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		idx := len(s.points)
		s.points = append(s.points, p)
		min := [2]float64{p.Longitude, p.Latitude}
		s.index.Insert(min, min, idx)
	}
	return s
}

// Len returns the number of valid points held by the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// IsEmpty reports whether the store holds zero points.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// FilterBBox returns every point whose coordinates fall within bbox,
// inclusive of the boundary. Returns an empty (non-nil) slice rather than
// nil when the store is empty or nothing matches, per C1's "empty input
// produces empty output" shape.
func (s *Store) FilterBBox(bbox orb.Bound) []models.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Point, 0)
	min := [2]float64{bbox.Min[0], bbox.Min[1]}
	max := [2]float64{bbox.Max[0], bbox.Max[1]}
	s.index.Search(min, max, func(_, _ [2]float64, idx int) bool {
		out = append(out, s.points[idx])
		return true
	})
	return out
}

// All returns every point in the store. Used by the precomputer, which
// needs to partition the full dataset by tile rather than query bbox by
// bbox.
func (s *Store) All() []models.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Point, len(s.points))
	copy(out, s.points)
	return out
}
