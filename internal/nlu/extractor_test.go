package nlu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	ents []Entity
	err  error
}

func (d stubDetector) DetectEntities(ctx context.Context, text string) ([]Entity, error) {
	return d.ents, d.err
}

type stubGeocoder struct {
	candidates []string
	err        error
	queries    []string
}

func (g *stubGeocoder) Candidates(ctx context.Context, location string, limit int) ([]string, error) {
	g.queries = append(g.queries, location)
	return g.candidates, g.err
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func TestExtractWithNER(t *testing.T) {
	geo := &stubGeocoder{candidates: []string{"Paris, FR", "Paris, US"}}
	x := NewExtractor(ExtractorConfig{
		Detector: stubDetector{ents: []Entity{{Label: "GPE", Text: "Paris"}}},
		Geocoder: geo,
		Now:      fixedNow,
	})

	res := x.Extract(context.Background(), "what's the weather in Paris?")
	require.NotNil(t, res.Entities.Location)
	assert.Equal(t, "Paris", *res.Entities.Location)
	assert.Equal(t, IntentTravelWeather, res.Intent)
	assert.Equal(t, "travel", res.Slots.Theme)
	assert.Equal(t, "what's the weather in Paris?", res.DialogMetadata.OriginalQuery)
	assert.Equal(t, "en", res.DialogMetadata.Language)
}

func TestExtractRegexFallback(t *testing.T) {
	geo := &stubGeocoder{candidates: []string{"New York, US"}}
	x := NewExtractor(ExtractorConfig{
		Detector: stubDetector{err: errors.New("ner down")},
		Geocoder: geo,
		Now:      fixedNow,
	})

	res := x.Extract(context.Background(), "I am travelling to New York next week")
	require.NotNil(t, res.Entities.Location)
	assert.Equal(t, "New York", *res.Entities.Location)
	assert.Equal(t, []string{"New York next week"}, geo.queries[:1])
}

func TestExtractNoLocation(t *testing.T) {
	geo := &stubGeocoder{}
	x := NewExtractor(ExtractorConfig{
		Detector: stubDetector{},
		Geocoder: geo,
		Now:      fixedNow,
	})

	res := x.Extract(context.Background(), "will it rain")
	assert.Nil(t, res.Entities.Location)
	assert.Empty(t, geo.queries, "no geocoding without a location candidate")
}

func TestCanonicalizeKeepsCityOnly(t *testing.T) {
	geo := &stubGeocoder{candidates: []string{"Tokyo, JP"}}
	x := NewExtractor(ExtractorConfig{
		Detector: stubDetector{ents: []Entity{{Label: "GPE", Text: "Tokyo"}}},
		Geocoder: geo,
		Now:      fixedNow,
	})

	res := x.Extract(context.Background(), "weather in Tokyo")
	require.NotNil(t, res.Entities.Location)
	assert.Equal(t, "Tokyo", *res.Entities.Location)
}

func TestCanonicalizeBelowCutoffKeepsRaw(t *testing.T) {
	geo := &stubGeocoder{candidates: []string{"Completely Different, XX"}}
	x := NewExtractor(ExtractorConfig{
		Detector:    stubDetector{ents: []Entity{{Label: "LOC", Text: "Atlantis"}}},
		Geocoder:    geo,
		ScoreCutoff: 95,
		Now:         fixedNow,
	})

	res := x.Extract(context.Background(), "weather in Atlantis")
	require.NotNil(t, res.Entities.Location)
	assert.Equal(t, "Atlantis", *res.Entities.Location)
}

func TestCanonicalizeGeocoderErrorKeepsRaw(t *testing.T) {
	geo := &stubGeocoder{err: errors.New("upstream down")}
	x := NewExtractor(ExtractorConfig{
		Detector: stubDetector{ents: []Entity{{Label: "GPE", Text: "Lisbon"}}},
		Geocoder: geo,
		Now:      fixedNow,
	})

	res := x.Extract(context.Background(), "weather in Lisbon")
	require.NotNil(t, res.Entities.Location)
	assert.Equal(t, "Lisbon", *res.Entities.Location)
}

func TestExtractDates(t *testing.T) {
	geo := &stubGeocoder{}
	x := NewExtractor(ExtractorConfig{
		Detector: stubDetector{},
		Geocoder: geo,
		Now:      fixedNow,
	})

	tests := []struct {
		query string
		want  string
	}{
		{"weather today", "2025-03-10"},
		{"weather tomorrow", "2025-03-11"},
	}
	for _, tt := range tests {
		res := x.Extract(context.Background(), tt.query)
		require.NotNil(t, res.Entities.Date, "query %q", tt.query)
		assert.Equal(t, tt.want, *res.Entities.Date, "query %q", tt.query)
	}

	res := x.Extract(context.Background(), "weather")
	assert.Nil(t, res.Entities.Date)
}
