package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Latitude: 48.85, Longitude: 2.35}.Valid())
	assert.True(t, Point{Latitude: -90, Longitude: -180}.Valid())
	assert.True(t, Point{Latitude: 90, Longitude: 180}.Valid())
}

func TestPointInvalidOutOfRange(t *testing.T) {
	assert.False(t, Point{Latitude: 91, Longitude: 0}.Valid())
	assert.False(t, Point{Latitude: 0, Longitude: 181}.Valid())
	assert.False(t, Point{Latitude: -91, Longitude: 0}.Valid())
}

func TestPointInvalidNonFinite(t *testing.T) {
	assert.False(t, Point{Latitude: math.NaN(), Longitude: 0}.Valid())
	assert.False(t, Point{Latitude: math.Inf(1), Longitude: 0}.Valid())
	assert.False(t, Point{Latitude: 0, Longitude: math.Inf(-1)}.Valid())
}
