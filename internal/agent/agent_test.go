package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcast/weatherbot/internal/nlu"
	"github.com/tripcast/weatherbot/internal/weather"
)

type stubExtractor struct {
	result nlu.Result
}

func (e stubExtractor) Extract(ctx context.Context, query string) nlu.Result {
	return e.result
}

type stubFetcher struct {
	result    weather.Result
	locations []string
}

func (f *stubFetcher) Fetch(ctx context.Context, location string) weather.Result {
	f.locations = append(f.locations, location)
	return f.result
}

func sp(s string) *string { return &s }

func TestRunWithLocation(t *testing.T) {
	fetcher := &stubFetcher{result: weather.Result{Location: sp("Paris"), Country: sp("FR")}}
	a := New(stubExtractor{result: nlu.Result{
		Intent:   nlu.IntentTravelWeather,
		Entities: nlu.Entities{Location: sp("Paris")},
	}}, fetcher)

	out := a.Run(context.Background(), "weather in Paris")
	require.Equal(t, []string{"Paris"}, fetcher.locations)
	assert.Equal(t, "Paris", *out.Weather.Location)
	assert.Empty(t, out.Weather.Error)
}

func TestRunWithoutLocationSkipsFetch(t *testing.T) {
	fetcher := &stubFetcher{}
	a := New(stubExtractor{result: nlu.Result{Intent: nlu.IntentTravelWeather}}, fetcher)

	out := a.Run(context.Background(), "will it rain")
	assert.Empty(t, fetcher.locations, "fetcher must not run without a location")
	assert.Equal(t, "no_location_extracted", out.Weather.Error)
	assert.Equal(t, nlu.IntentTravelWeather, out.NLU.Intent)
}

func TestRunDegradedWeatherIsNotFatal(t *testing.T) {
	fetcher := &stubFetcher{result: weather.Result{Error: "weather_fetch_failed: timeout"}}
	a := New(stubExtractor{result: nlu.Result{
		Entities: nlu.Entities{Location: sp("Paris")},
	}}, fetcher)

	out := a.Run(context.Background(), "weather in Paris")
	assert.Equal(t, "weather_fetch_failed: timeout", out.Weather.Error)
}
