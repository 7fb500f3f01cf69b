// Package ingest implements the external dataset-ingestion collaborator
// spec.md §6 describes: a load_points() function called exactly once at
// startup. This is the minimal default: a CSV reader honoring CSV_URL,
// optionally backed by S3 when the URL uses the s3:// scheme. It never
// writes to a database; the relational sink mentioned in spec.md §1 is
// explicitly out of scope.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jcom-dev/mapclusters/internal/models"
)

// expectedColumns is the CSV header this loader understands: id, latitude,
// longitude, and the optional point fields.
var expectedColumns = []string{"id", "latitude", "longitude", "days_on_market", "margin", "type_local", "address"}

// LoadPoints materializes the full point collection from csvURL. Supported
// schemes: a local file path, "http(s)://", and "s3://bucket/key". The
// source is read fully into memory; this is a one-shot startup operation,
// not a streaming ingestion pipeline.
func LoadPoints(ctx context.Context, csvURL string) ([]models.Point, error) {
	r, closer, err := open(ctx, csvURL)
	if err != nil {
		return nil, fmt.Errorf("open dataset %q: %w", csvURL, err)
	}
	defer closer()

	return parseCSV(r)
}

func open(ctx context.Context, csvURL string) (io.Reader, func(), error) {
	switch {
	case strings.HasPrefix(csvURL, "s3://"):
		return openS3(ctx, csvURL)
	case strings.HasPrefix(csvURL, "http://"), strings.HasPrefix(csvURL, "https://"):
		return openHTTP(ctx, csvURL)
	default:
		f, err := os.Open(csvURL)
		if err != nil {
			return nil, func() {}, err
		}
		return f, func() { f.Close() }, nil
	}
}

func openHTTP(ctx context.Context, url string) (io.Reader, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, func() {}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, func() {}, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, func() {}, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return resp.Body, func() { resp.Body.Close() }, nil
}

func openS3(ctx context.Context, s3URL string) (io.Reader, func(), error) {
	bucket, key, err := parseS3URL(s3URL)
	if err != nil {
		return nil, func() {}, err
	}

	opts := []func(*config.LoadOptions) error{}
	if ak, sk := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); ak != "" && sk != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, os.Getenv("AWS_SESSION_TOKEN")),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, func() {}, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, func() {}, fmt.Errorf("get s3 object: %w", err)
	}

	return out.Body, func() { out.Body.Close() }, nil
}

func parseS3URL(s3URL string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(s3URL, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 url %q, expected s3://bucket/key", s3URL)
	}
	return parts[0], parts[1], nil
}

func parseCSV(r io.Reader) ([]models.Point, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	colIdx := indexColumns(header)

	var points []models.Point
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		p, ok := parseRow(record, colIdx)
		if !ok {
			continue
		}
		if !p.Valid() {
			continue
		}
		points = append(points, p)
	}

	return points, nil
}

func indexColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func parseRow(record []string, colIdx map[string]int) (models.Point, bool) {
	get := func(name string) (string, bool) {
		i, ok := colIdx[name]
		if !ok || i >= len(record) {
			return "", false
		}
		v := strings.TrimSpace(record[i])
		return v, v != ""
	}

	id, ok := get("id")
	if !ok {
		return models.Point{}, false
	}

	latStr, ok := get("latitude")
	if !ok {
		return models.Point{}, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return models.Point{}, false
	}

	lonStr, ok := get("longitude")
	if !ok {
		return models.Point{}, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return models.Point{}, false
	}

	p := models.Point{ID: id, Latitude: lat, Longitude: lon}

	if v, ok := get("days_on_market"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.DaysOnMarket = &n
		}
	}
	if v, ok := get("margin"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.Margin = &f
		}
	}
	if v, ok := get("type_local"); ok {
		p.TypeLocal = &v
	}
	if v, ok := get("address"); ok {
		p.Address = &v
	}

	return p, true
}

// ColumnNames returns a copy of the header columns this loader understands.
func ColumnNames() []string {
	out := make([]string, len(expectedColumns))
	copy(out, expectedColumns)
	return out
}
