package cluster

import (
	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"

	"github.com/jcom-dev/mapclusters/internal/models"
)

const (
	h3ResMin = 5
	h3ResMax = 9
)

// zoomToH3Res maps a web-mercator zoom to an H3 resolution before clamping
// to [h3ResMin, h3ResMax], per spec.md's {6->5, 7->6, 8->6, 9->7, 10->7,
// 11->8, 12->8, 13->9, 14->9} table.
func zoomToH3Res(z int) int {
	switch {
	case z <= 6:
		return 5
	case z <= 8:
		return 6
	case z <= 10:
		return 7
	case z <= 12:
		return 8
	default:
		return 9
	}
}

func clampH3Res(res int) int {
	if res < h3ResMin {
		return h3ResMin
	}
	if res > h3ResMax {
		return h3ResMax
	}
	return res
}

// H3Clusterer implements Mode H: hexagonal grouping via Uber's H3 index.
type H3Clusterer struct{}

type hexAccum struct {
	sumLat, sumLon float64
	count          int
	firstID        *string
	maxMargin      *float64
	firstType      *string
	firstAddr      *string
}

func (H3Clusterer) Cluster(points []models.Point, zoom int, _ orb.Bound) []models.Cluster {
	if len(points) == 0 {
		return []models.Cluster{}
	}

	res := clampH3Res(zoomToH3Res(zoom))

	order := make([]h3.Cell, 0)
	groups := make(map[h3.Cell]*hexAccum)

	for _, p := range points {
		cell := h3.LatLngToCell(h3.LatLng{Lat: p.Latitude, Lng: p.Longitude}, res)

		acc, ok := groups[cell]
		if !ok {
			acc = &hexAccum{}
			groups[cell] = acc
			order = append(order, cell)
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
	for _, cell := range order {
		acc := groups[cell]
		out = append(out, models.Cluster{
			Latitude:  acc.sumLat / float64(acc.count),
			Longitude: acc.sumLon / float64(acc.count),
			Count:     acc.count,
			ID:        acc.firstID,
			Margin:    acc.maxMargin,
			TypeLocal: acc.firstType,
			Address:   acc.firstAddr,
		})
	}

	sortDescByCount(out)
	return out
}
