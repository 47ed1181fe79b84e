package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tripcast/weatherbot/internal/nlu"
	"github.com/tripcast/weatherbot/internal/weather"
)

func sp(s string) *string { return &s }

func TestBuildMergedContext(t *testing.T) {
	n := nlu.Result{
		Intent:   nlu.IntentTravelWeather,
		Entities: nlu.Entities{Location: sp("Paris"), Date: sp("2025-03-11")},
		Slots:    nlu.Slots{Theme: "travel"},
		DialogMetadata: nlu.DialogMetadata{
			OriginalQuery: "weather in Paris tomorrow",
			Language:      "en",
		},
	}
	w := weather.Result{Location: sp("Paris"), Country: sp("FR")}

	merged := BuildMergedContext(n, w)
	assert.Equal(t, "weather in Paris tomorrow", merged.UserQuery)
	assert.Equal(t, nlu.IntentTravelWeather, merged.Intent)
	assert.Equal(t, "Paris, FR", merged.Location)
	assert.Equal(t, "2025-03-11", *merged.Date)
	assert.Equal(t, "travel", merged.Theme)
	assert.Equal(t, w, merged.WeatherData)
}

func TestFormatLocation(t *testing.T) {
	tests := []struct {
		name string
		n    nlu.Result
		w    weather.Result
		want string
	}{
		{
			name: "weather name preferred",
			n:    nlu.Result{Entities: nlu.Entities{Location: sp("paris")}},
			w:    weather.Result{Location: sp("Paris"), Country: sp("FR")},
			want: "Paris, FR",
		},
		{
			name: "nlu fallback without country",
			n:    nlu.Result{Entities: nlu.Entities{Location: sp("Paris")}},
			w:    weather.Result{Error: "weather_fetch_failed: timeout"},
			want: "Paris",
		},
		{
			name: "no location at all",
			n:    nlu.Result{},
			w:    weather.Result{Error: "no_location_extracted"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatLocation(tt.n, tt.w))
		})
	}
}
