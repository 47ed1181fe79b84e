// Package weather resolves location strings to current conditions via the
// OpenWeather geocoding and weather APIs.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tripcast/weatherbot/internal/httpx"
	"github.com/tripcast/weatherbot/internal/metrics"
)

const (
	defaultGeoURL     = "http://api.openweathermap.org/geo/1.0/direct"
	defaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

	// requestTimeout bounds each geocoding/conditions call.
	requestTimeout = 5 * time.Second
)

// Result is either a structured conditions report or a terminal error value.
// Errors here are data, not Go errors: the fetcher never fails, it reports.
type Result struct {
	Error string `json:"error,omitempty"`

	Location           *string  `json:"location"`
	Country            *string  `json:"country"`
	WeatherMain        *string  `json:"weather_main"`
	WeatherDescription *string  `json:"weather_description"`
	TemperatureC       *float64 `json:"temperature_c"`
	FeelsLikeC         *float64 `json:"feels_like_c"`
	TempMinC           *float64 `json:"temp_min_c"`
	TempMaxC           *float64 `json:"temp_max_c"`
	Humidity           *float64 `json:"humidity"`
	WindSpeed          *float64 `json:"wind_speed"`
	Rain1h             float64  `json:"rain_1h"`
	Cloudiness         *float64 `json:"cloudiness"`
	Timestamp          *string  `json:"timestamp"`

	// Raw retains the unmodified upstream payload for auditability.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// MarshalJSON renders terminal error results as a bare {"error": ...} object
// so sidecars carry no null-filled skeleton for failed lookups.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	type plain Result
	return json.Marshal(plain(r))
}

func errResult(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Client talks to the OpenWeather geocoding and current-conditions endpoints.
type Client struct {
	apiKey     string
	geoURL     string
	weatherURL string
	client     *http.Client
}

// NewClient creates an OpenWeather client. An empty apiKey is legal; Fetch
// then reports the terminal "OPENWEATHER_API_KEY not set" condition.
func NewClient(apiKey string, poolSize int) *Client {
	return &Client{
		apiKey:     apiKey,
		geoURL:     defaultGeoURL,
		weatherURL: defaultWeatherURL,
		client:     httpx.NewPooledClient(poolSize, requestTimeout),
	}
}

// NewClientWithURLs creates a client against explicit endpoints (tests).
func NewClientWithURLs(apiKey, geoURL, weatherURL string, poolSize int) *Client {
	c := NewClient(apiKey, poolSize)
	c.geoURL = geoURL
	c.weatherURL = weatherURL
	return c
}

type geoHit struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (c *Client) geocode(ctx context.Context, location string, limit int) ([]geoHit, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("limit", fmt.Sprint(limit))
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", c.geoURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create geocode request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("geocode", "http").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	var hits []geoHit
	if err = json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		metrics.Errors.WithLabelValues("geocode", "decode").Inc()
		return nil, err
	}
	return hits, nil
}

// Candidates returns geocoding candidates formatted "City, CC" for fuzzy
// validation of extracted locations.
func (c *Client) Candidates(ctx context.Context, location string, limit int) ([]string, error) {
	hits, err := c.geocode(ctx, location, limit)
	if err != nil {
		return nil, fmt.Errorf("geocode candidates: %w", err)
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, fmt.Sprintf("%s, %s", h.Name, h.Country))
	}
	return out, nil
}

// upstream mirrors the fields consumed from the OpenWeather conditions payload.
// Pointer fields distinguish absent values, which degrade to null downstream.
type upstream struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Rain *struct {
		OneH *float64 `json:"1h"`
	} `json:"rain"`
	Clouds struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Dt *int64 `json:"dt"`
}

// Fetch resolves a location to current conditions. Terminal conditions
// (missing location, missing credentials, unknown location, transport
// failures) come back inside the Result, never as a Go error.
func (c *Client) Fetch(ctx context.Context, location string) Result {
	if location == "" {
		return errResult("No location provided")
	}
	if c.apiKey == "" {
		return errResult("OPENWEATHER_API_KEY not set")
	}

	hits, err := c.geocode(ctx, location, 1)
	if err != nil {
		return errResult("geocoding_failed: %v", err)
	}
	if len(hits) == 0 {
		return errResult("Location '%s' not found", location)
	}

	raw, err := c.currentConditions(ctx, hits[0].Lat, hits[0].Lon)
	if err != nil {
		return errResult("weather_fetch_failed: %v", err)
	}

	var up upstream
	if err = json.Unmarshal(raw, &up); err != nil {
		return errResult("weather_fetch_failed: %v", err)
	}
	return buildResult(up, raw)
}

func (c *Client) currentConditions(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprint(lat))
	q.Set("lon", fmt.Sprint(lon))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, "GET", c.weatherURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create weather request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("weather", "http").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func buildResult(up upstream, raw json.RawMessage) Result {
	r := Result{
		Location:     optStr(up.Name),
		Country:      optStr(up.Sys.Country),
		TemperatureC: up.Main.Temp,
		FeelsLikeC:   up.Main.FeelsLike,
		TempMinC:     up.Main.TempMin,
		TempMaxC:     up.Main.TempMax,
		Humidity:     up.Main.Humidity,
		WindSpeed:    up.Wind.Speed,
		Cloudiness:   up.Clouds.All,
		Raw:          raw,
	}
	if len(up.Weather) > 0 {
		r.WeatherMain = optStr(up.Weather[0].Main)
		r.WeatherDescription = optStr(up.Weather[0].Description)
	}
	if up.Rain != nil && up.Rain.OneH != nil {
		r.Rain1h = *up.Rain.OneH
	}
	if up.Dt != nil {
		ts := time.Unix(*up.Dt, 0).UTC().Format(time.RFC3339)
		r.Timestamp = &ts
	}
	return r
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
