package nlu

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/olebedev/when"
)

// GeocodeCandidates supplies candidate location strings ("City, CC") for
// validating an extracted location. The weather client implements it.
type GeocodeCandidates interface {
	Candidates(ctx context.Context, location string, limit int) ([]string, error)
}

// ExtractorConfig holds the extractor's collaborators and tunables.
type ExtractorConfig struct {
	Detector EntityDetector
	Geocoder GeocodeCandidates

	// ScoreCutoff is the minimum fuzzy score (0-100) for accepting a geocode
	// candidate. CandidateLimit caps how many candidates are requested.
	ScoreCutoff    int
	CandidateLimit int

	// Now is overridable for tests.
	Now func() time.Time
}

// Extractor parses free text into a canonical NLU result. Extraction never
// fails; missing location or date is represented as nil.
type Extractor struct {
	cfg   ExtractorConfig
	dates *when.Parser
}

// locationPattern matches prepositional phrases like "in Paris" or
// "to New York" when NER finds nothing.
var locationPattern = regexp.MustCompile(`(?i)\b(?:in|to|at)\s+([A-Za-z]+(?:\s[A-Za-z]+)*)`)

// NewExtractor creates an extractor. Zero cutoff/limit fall back to 70 and 5.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	if cfg.ScoreCutoff <= 0 {
		cfg.ScoreCutoff = 70
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Extractor{cfg: cfg, dates: newDateParser()}
}

// Extract parses a travel-weather query into intent, entities, and slots.
func (x *Extractor) Extract(ctx context.Context, query string) Result {
	now := x.cfg.Now().UTC()
	return Result{
		Intent: IntentTravelWeather,
		Entities: Entities{
			Location: x.extractLocation(ctx, query),
			Date:     parseDate(x.dates, query, now),
		},
		Slots: Slots{Theme: "travel"},
		DialogMetadata: DialogMetadata{
			OriginalQuery: query,
			Language:      "en",
			Timestamp:     now.Format(time.RFC3339),
		},
	}
}

// extractLocation runs NER first, falls back to the prepositional regex, then
// validates the candidate against geocoding results via fuzzy match. On a
// match only the city name is kept; otherwise the raw string survives.
func (x *Extractor) extractLocation(ctx context.Context, query string) *string {
	var location string

	ents, err := x.cfg.Detector.DetectEntities(ctx, query)
	if err != nil {
		slog.Debug("ner detection failed, using regex fallback", "error", err)
	}
	for _, e := range ents {
		if e.Label == "GPE" || e.Label == "LOC" {
			location = strings.TrimSpace(e.Text)
			break
		}
	}

	if location == "" {
		if m := locationPattern.FindStringSubmatch(query); m != nil {
			location = strings.TrimSpace(m[1])
		}
	}

	if location == "" {
		return nil
	}

	canonical := x.canonicalize(ctx, location)
	return &canonical
}

func (x *Extractor) canonicalize(ctx context.Context, location string) string {
	candidates, err := x.cfg.Geocoder.Candidates(ctx, location, x.cfg.CandidateLimit)
	if err != nil || len(candidates) == 0 {
		return location
	}

	best, bestScore := "", 0
	for _, c := range candidates {
		if score := fuzzy.WRatio(location, c); score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < x.cfg.ScoreCutoff {
		return location
	}
	// keep the city name only, dropping the country code
	return strings.TrimSpace(strings.SplitN(best, ",", 2)[0])
}
