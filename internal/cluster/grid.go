package cluster

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/jcom-dev/mapclusters/internal/models"
)

const gridEpsilon = 1e-4

// gridMaxPointsAtMaxZoom caps the number of individually-returned points at
// the finest zoom, per the resolved per-tile cap (viewport-level cap dropped,
// see DESIGN.md Open Questions).
const gridMaxPointsAtMaxZoom = 500

// GridClusterer implements Mode G: a rectangular grid whose resolution
// widens as zoom decreases.
type GridClusterer struct{}

func gridResolution(z int) int {
	switch {
	case z <= 6:
		return 3
	case z <= 8:
		return 5
	case z <= 10:
		return 7
	default:
		return 10
	}
}

type gridKey struct {
	lat, lon int
}

type gridAccum struct {
	sumLat, sumLon float64
	count          int
	latIdx, lonIdx int
	firstID        *string
	maxMargin      *float64
	firstType      *string
	firstAddr      *string
}

// Cluster implements Clusterer for Mode G: the resolution grid is laid out
// over bbox (the tile's bounding box), not the point set's own extent.
func (GridClusterer) Cluster(points []models.Point, zoom int, bbox orb.Bound) []models.Cluster {
	return ClusterGrid(points, zoom, bbox.Min[1], bbox.Max[1], bbox.Min[0], bbox.Max[0])
}

// ClusterGrid clusters points against an explicit bbox, matching spec.md's
// `tile_to_bbox` + grid aggregation description exactly.
func ClusterGrid(points []models.Point, zoom int, minLat, maxLat, minLon, maxLon float64) []models.Cluster {
	if len(points) == 0 {
		return []models.Cluster{}
	}

	if zoom >= 14 {
		n := len(points)
		if n > gridMaxPointsAtMaxZoom {
			n = gridMaxPointsAtMaxZoom
		}
		out := make([]models.Cluster, n)
		for i := 0; i < n; i++ {
			out[i] = singlePointCluster(points[i])
		}
		sortDescByCount(out)
		return out
	}

	resolution := gridResolution(zoom)
	latStep := math.Max(maxLat-minLat, gridEpsilon) / float64(resolution)
	lonStep := math.Max(maxLon-minLon, gridEpsilon) / float64(resolution)

	order := make([]gridKey, 0)
	groups := make(map[gridKey]*gridAccum)

	for _, p := range points {
		latIdx := int(math.Floor((p.Latitude - minLat) / latStep))
		lonIdx := int(math.Floor((p.Longitude - minLon) / lonStep))
		key := gridKey{lat: latIdx, lon: lonIdx}

		acc, ok := groups[key]
		if !ok {
			acc = &gridAccum{latIdx: latIdx, lonIdx: lonIdx}
			groups[key] = acc
			order = append(order, key)
		}

		acc.sumLat += p.Latitude
		acc.sumLon += p.Longitude
		acc.count++
		if acc.firstID == nil {
			id := p.ID
			acc.firstID = &id
		}
		if p.Margin != nil && (acc.maxMargin == nil || *p.Margin > *acc.maxMargin) {
			m := *p.Margin
			acc.maxMargin = &m
		}
		if acc.firstType == nil && p.TypeLocal != nil {
			t := *p.TypeLocal
			acc.firstType = &t
		}
		if acc.firstAddr == nil && p.Address != nil {
			a := *p.Address
			acc.firstAddr = &a
		}
	}

	out := make([]models.Cluster, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		latIdx, lonIdx := acc.latIdx, acc.lonIdx
		c := models.Cluster{
			Latitude:  acc.sumLat / float64(acc.count),
			Longitude: acc.sumLon / float64(acc.count),
			Count:     acc.count,
			LatIdx:    &latIdx,
			LonIdx:    &lonIdx,
			ID:        acc.firstID,
			Margin:    acc.maxMargin,
			TypeLocal: acc.firstType,
			Address:   acc.firstAddr,
		}
		out = append(out, c)
	}

	sortDescByCount(out)
	return out
}
