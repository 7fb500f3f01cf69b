package viewport

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
)

// buildKey derives the viewport cache key per spec.md §3: round each
// coordinate to a zoom-dependent precision, truncate zoom to an integer,
// concatenate, hash, prefix. Zoom is truncated rather than decimal-rounded
// so that e.g. zoom 9.1 and 9.13 collapse to the same cache entry, matching
// the integer zoom bucket the tile service itself computes.
func buildKey(minLat, maxLat, minLon, maxLon, zoom float64) string {
	precision := 3
	if zoom >= 10 {
		precision = 4
	}

	raw := fmt.Sprintf("%s:%s:%s:%s:%d",
		roundTo(minLat, precision), roundTo(maxLat, precision),
		roundTo(minLon, precision), roundTo(maxLon, precision),
		int(zoom))

	sum := md5.Sum([]byte(raw))
	return "viewport:" + hex.EncodeToString(sum[:])
}

func roundTo(v float64, precision int) string {
	mult := math.Pow(10, float64(precision))
	rounded := math.Round(v*mult) / mult
	return fmt.Sprintf("%.*f", precision, rounded)
}
