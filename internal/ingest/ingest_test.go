package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvFixture = `id,latitude,longitude,days_on_market,margin,type_local,address
p1,48.85,2.35,30,0.12,apartment,1 rue de Paris
p2,48.86,2.36,,,house,
p3,999,5.40,10,0.2,house,Somewhere
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "points.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvFixture), 0o644))
	return path
}

func TestLoadPointsFromLocalFile(t *testing.T) {
	path := writeFixture(t)

	points, err := LoadPoints(context.Background(), path)
	require.NoError(t, err)

	// p3 has an out-of-range latitude and must be dropped per invariant P1.
	require.Len(t, points, 2)

	assert.Equal(t, "p1", points[0].ID)
	require.NotNil(t, points[0].DaysOnMarket)
	assert.Equal(t, 30, *points[0].DaysOnMarket)
	require.NotNil(t, points[0].Margin)
	assert.InDelta(t, 0.12, *points[0].Margin, 1e-9)

	assert.Equal(t, "p2", points[1].ID)
	assert.Nil(t, points[1].DaysOnMarket)
}

func TestLoadPointsFromHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csvFixture))
	}))
	defer server.Close()

	points, err := LoadPoints(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestLoadPointsHTTPNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := LoadPoints(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://my-bucket/path/to/points.csv")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "path/to/points.csv", key)

	_, _, err = parseS3URL("s3://missing-key")
	assert.Error(t, err)
}

func TestColumnNames(t *testing.T) {
	names := ColumnNames()
	assert.Contains(t, names, "id")
	assert.Contains(t, names, "latitude")
	assert.Contains(t, names, "longitude")
}
