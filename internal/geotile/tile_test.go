package geotile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileToBBoxRoundTrip(t *testing.T) {
	for z := 0; z <= 14; z++ {
		n := 1 << z
		for x := 0; x < n; x++ {
			for y := 0; y < n; y++ {
				bbox := TileToBBox(x, y, z)
				centerLat := (bbox.Min[1] + bbox.Max[1]) / 2
				centerLon := (bbox.Min[0] + bbox.Max[0]) / 2

				got := LatLonToTile(centerLat, centerLon, z)
				require.Equal(t, x, got.X, "z=%d x=%d y=%d", z, x, y)
				require.Equal(t, y, got.Y, "z=%d x=%d y=%d", z, x, y)
			}
			if x > 8 {
				break // only the first 10 columns, to keep the sweep cheap at fine zooms
			}
		}
	}
}

func TestTileToBBoxParisZ6(t *testing.T) {
	// Paris (48.8566, 2.3522) at z=6 should land in tile (32, 22), the tile
	// S4's scenario exercises.
	tile := LatLonToTile(48.8566, 2.3522, 6)
	assert.Equal(t, 32, tile.X)
	assert.Equal(t, 22, tile.Y)
}

func TestBoundsToTilesCoverCompleteness(t *testing.T) {
	// Every point inside the query bbox must land inside the bbox of at
	// least one enumerated tile.
	points := [][2]float64{
		{48.8566, 2.3522},
		{48.86, 2.36},
		{43.30, 5.40},
	}
	tiles := BoundsToTiles(41, 51, -5, 10, 6)
	require.NotEmpty(t, tiles)

	for _, p := range points {
		lat, lon := p[0], p[1]
		covered := false
		for _, tl := range tiles {
			b := TileToBBox(tl.X, tl.Y, 6)
			if lat >= b.Min[1] && lat <= b.Max[1] && lon >= b.Min[0] && lon <= b.Max[0] {
				covered = true
				break
			}
		}
		assert.True(t, covered, "point %v not covered by any enumerated tile", p)
	}
}

func TestBoundsToTilesNormalizesCorners(t *testing.T) {
	tiles := BoundsToTiles(48.8, 48.9, 2.3, 2.4, 14)
	require.NotEmpty(t, tiles)
	for _, tl := range tiles {
		assert.GreaterOrEqual(t, tl.X, 0)
		assert.GreaterOrEqual(t, tl.Y, 0)
	}
}

func TestBoundsToTilesCapsAt200(t *testing.T) {
	tiles := BoundsToTiles(-85, 85, -180, 180, 6)
	assert.LessOrEqual(t, len(tiles), maxTilesPerBounds)
}

func TestClampLat(t *testing.T) {
	assert.Equal(t, maxLat, ClampLat(90))
	assert.Equal(t, minLat, ClampLat(-90))
	assert.Equal(t, 10.0, ClampLat(10))
}

func TestLatLonToTilePoleDivergence(t *testing.T) {
	// At the clamped pole, tan+sec stays positive so y resolves to a
	// finite, in-range value rather than diverging.
	tile := LatLonToTile(89.9, 0, 4)
	assert.GreaterOrEqual(t, tile.Y, 0)
	assert.Less(t, tile.Y, 1<<4)
}

func TestKeyFormat(t *testing.T) {
	assert.Equal(t, "tile:6:32:22", Key(6, 32, 22))
}
