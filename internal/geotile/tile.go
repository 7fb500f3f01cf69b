// Package geotile implements the Web-Mercator tile math used by the tile
// service and precomputer: lat/lon <-> (z, x, y) conversion and bounding-box
// tile enumeration. Every function here is pure; the package holds no state.
package geotile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ZoomMin and ZoomMax bound the tile zoom levels the tile cache serves.
const (
	ZoomMin = 6
	ZoomMax = 14

	// maxLat is the Mercator-safe latitude bound; beyond this the
	// projection diverges, so inputs are clamped before conversion.
	maxLat = 85.05112878
	minLat = -85.05112878

	// maxTilesPerBounds caps the output of BoundsToTiles so a pathological
	// viewport at a coarse zoom cannot enumerate an unbounded tile set.
	maxTilesPerBounds = 200
)

// TileXY is an integer Web-Mercator tile coordinate at a given zoom.
type TileXY struct {
	X, Y int
}

// Key returns the canonical cache key for a tile, "tile:{z}:{x}:{y}".
func Key(z, x, y int) string {
	return fmt.Sprintf("tile:%d:%d:%d", z, x, y)
}

// ClampLat clamps a latitude into the Mercator-safe band.
func ClampLat(lat float64) float64 {
	if lat > maxLat {
		return maxLat
	}
	if lat < minLat {
		return minLat
	}
	return lat
}

// TileToBBox returns the geographic bounding box covered by tile (x, y) at
// zoom z, as the orb.Bound [min, max] pair (min = southwest, max = northeast).
func TileToBBox(x, y, z int) orb.Bound {
	n := math.Exp2(float64(z))

	lonMin := float64(x)/n*360 - 180
	lonMax := float64(x+1)/n*360 - 180

	latMax := mercatorInverse(1 - 2*float64(y)/n)
	latMin := mercatorInverse(1 - 2*float64(y+1)/n)

	return orb.Bound{
		Min: orb.Point{lonMin, latMin},
		Max: orb.Point{lonMax, latMax},
	}
}

func mercatorInverse(t float64) float64 {
	return radToDeg(math.Atan(math.Sinh(math.Pi * t)))
}

// LatLonToTile returns the tile (x, y) containing (lat, lon) at zoom z.
func LatLonToTile(lat, lon float64, z int) TileXY {
	lat = ClampLat(lat)
	n := math.Exp2(float64(z))

	x := int(math.Floor((lon + 180) / 360 * n))

	latRad := degToRad(lat)
	tanSec := math.Tan(latRad) + 1/math.Cos(latRad)
	var y int
	if tanSec <= 0 {
		y = 0
	} else {
		y = int(math.Floor((1 - math.Log(tanSec)/math.Pi) / 2 * n))
	}

	return clampTile(TileXY{X: x, Y: y}, z)
}

func clampTile(t TileXY, z int) TileXY {
	n := int(math.Exp2(float64(z)))
	if t.X < 0 {
		t.X = 0
	}
	if t.X >= n {
		t.X = n - 1
	}
	if t.Y < 0 {
		t.Y = 0
	}
	if t.Y >= n {
		t.Y = n - 1
	}
	return t
}

// BoundsToTiles enumerates every tile intersecting the given bbox at zoom z,
// normalizing corners so the y axis (which increases southward) is handled
// correctly. The result is capped at maxTilesPerBounds entries; callers must
// tolerate a truncated result for very large viewports at coarse zooms.
func BoundsToTiles(minLatQ, maxLatQ, minLonQ, maxLonQ float64, z int) []TileXY {
	topLeft := LatLonToTile(maxLatQ, minLonQ, z)
	bottomRight := LatLonToTile(minLatQ, maxLonQ, z)

	x0, x1 := topLeft.X, bottomRight.X
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	y0, y1 := topLeft.Y, bottomRight.Y
	if y0 > y1 {
		y0, y1 = y1, y0
	}

	tiles := make([]TileXY, 0, (x1-x0+1)*(y1-y0+1))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			tiles = append(tiles, TileXY{X: x, Y: y})
			if len(tiles) >= maxTilesPerBounds {
				return tiles
			}
		}
	}
	return tiles
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }
