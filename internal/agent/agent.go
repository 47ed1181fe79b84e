// Package agent composes entity extraction and weather lookup into the single
// travel-weather agent result attached to each trace.
package agent

import (
	"context"
	"log/slog"

	"github.com/tripcast/weatherbot/internal/nlu"
	"github.com/tripcast/weatherbot/internal/weather"
)

// Extractor parses a query into the canonical NLU result.
type Extractor interface {
	Extract(ctx context.Context, query string) nlu.Result
}

// Fetcher resolves a location to current conditions.
type Fetcher interface {
	Fetch(ctx context.Context, location string) weather.Result
}

// Output pairs the NLU parse with the weather lookup. All failure is encoded
// inside the two values; Run never returns an error.
type Output struct {
	NLU     nlu.Result     `json:"nlu"`
	Weather weather.Result `json:"weather"`
}

// TravelAgent always extracts, and fetches weather only when a location was
// found.
type TravelAgent struct {
	extractor Extractor
	fetcher   Fetcher
}

// New creates a travel agent over the given extractor and weather fetcher.
func New(extractor Extractor, fetcher Fetcher) *TravelAgent {
	return &TravelAgent{extractor: extractor, fetcher: fetcher}
}

// Run parses the query and, if a location was extracted, looks up current
// conditions for it.
func (a *TravelAgent) Run(ctx context.Context, query string) Output {
	out := Output{NLU: a.extractor.Extract(ctx, query)}

	loc := out.NLU.Entities.Location
	if loc == nil || *loc == "" {
		out.Weather = weather.Result{Error: "no_location_extracted"}
		return out
	}

	out.Weather = a.fetcher.Fetch(ctx, *loc)
	if out.Weather.Error != "" {
		slog.Info("weather lookup degraded", "location", *loc, "error", out.Weather.Error)
	}
	return out
}
