package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conditionsPayload = `{
	"name": "Paris",
	"sys": {"country": "FR"},
	"weather": [{"main": "Clouds", "description": "overcast clouds"}],
	"main": {"temp": 12.3, "feels_like": 11.1, "temp_min": 10.0, "temp_max": 14.0, "humidity": 82},
	"wind": {"speed": 4.6},
	"clouds": {"all": 90},
	"dt": 1700000000
}`

func newTestClient(t *testing.T, geoBody, weatherBody string) *Client {
	t.Helper()
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geoBody))
	}))
	t.Cleanup(geo.Close)
	cond := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(weatherBody))
	}))
	t.Cleanup(cond.Close)
	return NewClientWithURLs("test-key", geo.URL, cond.URL, 1)
}

func TestFetchNoLocation(t *testing.T) {
	c := newTestClient(t, `[]`, `{}`)
	res := c.Fetch(context.Background(), "")
	assert.Equal(t, "No location provided", res.Error)
}

func TestFetchNoAPIKey(t *testing.T) {
	c := newTestClient(t, `[]`, `{}`)
	c.apiKey = ""
	res := c.Fetch(context.Background(), "Paris")
	assert.Equal(t, "OPENWEATHER_API_KEY not set", res.Error)
}

func TestFetchLocationNotFound(t *testing.T) {
	c := newTestClient(t, `[]`, `{}`)
	res := c.Fetch(context.Background(), "Nowhereville")
	assert.Equal(t, "Location 'Nowhereville' not found", res.Error)
}

func TestFetchGeocodeFailure(t *testing.T) {
	c := newTestClient(t, `not json`, `{}`)
	res := c.Fetch(context.Background(), "Paris")
	assert.Contains(t, res.Error, "geocoding_failed: ")
}

func TestFetchConditions(t *testing.T) {
	c := newTestClient(t, `[{"name":"Paris","country":"FR","lat":48.85,"lon":2.35}]`, conditionsPayload)
	res := c.Fetch(context.Background(), "Paris")

	require.Empty(t, res.Error)
	assert.Equal(t, "Paris", *res.Location)
	assert.Equal(t, "FR", *res.Country)
	assert.Equal(t, "Clouds", *res.WeatherMain)
	assert.Equal(t, "overcast clouds", *res.WeatherDescription)
	assert.Equal(t, 12.3, *res.TemperatureC)
	assert.Equal(t, 11.1, *res.FeelsLikeC)
	assert.Equal(t, 10.0, *res.TempMinC)
	assert.Equal(t, 14.0, *res.TempMaxC)
	assert.Equal(t, 82.0, *res.Humidity)
	assert.Equal(t, 4.6, *res.WindSpeed)
	assert.Equal(t, 90.0, *res.Cloudiness)
	assert.Equal(t, 0.0, res.Rain1h, "no rain block defaults to zero")
	require.NotNil(t, res.Timestamp)
	assert.Equal(t, "2023-11-14T22:13:20Z", *res.Timestamp)
	assert.NotEmpty(t, res.Raw)
}

func TestFetchRainPresent(t *testing.T) {
	payload := `{"name":"Bergen","sys":{"country":"NO"},"weather":[{"main":"Rain","description":"light rain"}],"main":{"temp":8.0},"rain":{"1h":0.7}}`
	c := newTestClient(t, `[{"name":"Bergen","country":"NO","lat":60.39,"lon":5.32}]`, payload)
	res := c.Fetch(context.Background(), "Bergen")
	require.Empty(t, res.Error)
	assert.Equal(t, 0.7, res.Rain1h)
}

func TestCandidatesFormat(t *testing.T) {
	c := newTestClient(t, `[{"name":"Paris","country":"FR"},{"name":"Paris","country":"US"}]`, `{}`)
	got, err := c.Candidates(context.Background(), "Paris", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris, FR", "Paris, US"}, got)
}

func TestErrorResultMarshalsBare(t *testing.T) {
	data, err := json.Marshal(errResult("no_location_extracted"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"no_location_extracted"}`, string(data))
}

func TestResultMarshalIncludesNulls(t *testing.T) {
	loc := "Paris"
	data, err := json.Marshal(Result{Location: &loc})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Paris", doc["location"])
	_, present := doc["temperature_c"]
	assert.True(t, present, "unknown readings serialize as null, not omitted")
	assert.Nil(t, doc["temperature_c"])
	_, present = doc["error"]
	assert.False(t, present)
}
