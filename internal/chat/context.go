// Package chat builds the LLM prompt context from agent output and generates
// the natural-language travel response.
package chat

import (
	"strings"

	"github.com/tripcast/weatherbot/internal/nlu"
	"github.com/tripcast/weatherbot/internal/weather"
)

// MergedContext is the flat prompt context derived from NLU + weather. It is
// rebuilt on every generation attempt and never persisted on its own.
type MergedContext struct {
	UserQuery   string         `json:"user_query"`
	Intent      string         `json:"intent"`
	Location    string         `json:"location"`
	Date        *string        `json:"date"`
	Theme       string         `json:"theme"`
	WeatherData weather.Result `json:"weather_data"`
}

// BuildMergedContext merges an NLU parse and a weather result. Pure function,
// no I/O.
func BuildMergedContext(n nlu.Result, w weather.Result) MergedContext {
	return MergedContext{
		UserQuery:   n.DialogMetadata.OriginalQuery,
		Intent:      n.Intent,
		Location:    formatLocation(n, w),
		Date:        n.Entities.Date,
		Theme:       n.Slots.Theme,
		WeatherData: w,
	}
}

// formatLocation renders "City, CC", preferring the weather-resolved name and
// trimming dangling separators when the country is empty.
func formatLocation(n nlu.Result, w weather.Result) string {
	loc := strptr(w.Location)
	if loc == "" {
		loc = strptr(n.Entities.Location)
	}
	loc = strings.TrimSpace(loc)
	country := strings.TrimSpace(strptr(w.Country))

	joined := loc + ", " + country
	return strings.TrimSpace(strings.Trim(joined, ", "))
}

func strptr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
