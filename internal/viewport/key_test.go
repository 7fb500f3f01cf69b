package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildKeyIsDeterministic(t *testing.T) {
	k1 := buildKey(48.8, 48.9, 2.3, 2.4, 6)
	k2 := buildKey(48.8, 48.9, 2.3, 2.4, 6)
	assert.Equal(t, k1, k2)
	assert.Regexp(t, `^viewport:[0-9a-f]{32}$`, k1)
}

func TestBuildKeyRoundsCoordinates(t *testing.T) {
	// Below precision, a tiny perturbation should still collide after
	// rounding to 3 decimals (zoom < 10).
	k1 := buildKey(48.80001, 48.9, 2.3, 2.4, 6)
	k2 := buildKey(48.80002, 48.9, 2.3, 2.4, 6)
	assert.Equal(t, k1, k2)
}

func TestBuildKeyPrecisionSwitchesAtZoom10(t *testing.T) {
	lowZoom := buildKey(48.80001, 48.9, 2.3, 2.4, 9)
	highZoom := buildKey(48.80001, 48.9, 2.3, 2.4, 10)
	assert.NotEqual(t, lowZoom, highZoom)
}

func TestBuildKeyDistinctBoundsDiffer(t *testing.T) {
	k1 := buildKey(48.8, 48.9, 2.3, 2.4, 6)
	k2 := buildKey(41, 51, -5, 10, 6)
	assert.NotEqual(t, k1, k2)
}

func TestBuildKeyTruncatesFractionalZoom(t *testing.T) {
	// Zoom is truncated, not decimal-rounded, so nearby fractional zooms
	// within the same integer bucket must collide.
	k1 := buildKey(48.8, 48.9, 2.3, 2.4, 9.1)
	k2 := buildKey(48.8, 48.9, 2.3, 2.4, 9.13)
	assert.Equal(t, k1, k2)

	k3 := buildKey(48.8, 48.9, 2.3, 2.4, 9.99)
	k4 := buildKey(48.8, 48.9, 2.3, 2.4, 10.0)
	assert.NotEqual(t, k3, k4)
}
