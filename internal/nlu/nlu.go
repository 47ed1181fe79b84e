// Package nlu extracts intent, location, and date from free-text
// travel-weather queries.
package nlu

// Result is the canonical NLU output. Location and date are nil when nothing
// could be extracted; absence is data, not an error.
type Result struct {
	Intent         string         `json:"intent"`
	Entities       Entities       `json:"entities"`
	Slots          Slots          `json:"slots"`
	DialogMetadata DialogMetadata `json:"dialog_metadata"`
}

// Entities holds the extracted location and ISO date (YYYY-MM-DD).
type Entities struct {
	Location *string `json:"location"`
	Date     *string `json:"date"`
}

// Slots holds fixed slot values for the travel-weather domain.
type Slots struct {
	Theme string `json:"theme"`
}

// DialogMetadata records the raw query and extraction context.
type DialogMetadata struct {
	OriginalQuery string `json:"original_query"`
	Language      string `json:"language"`
	Timestamp     string `json:"timestamp"`
}

// IntentTravelWeather is the single intent this extractor produces.
const IntentTravelWeather = "get_weather_travel_advice"
