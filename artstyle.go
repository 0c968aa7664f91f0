// Package artstyle classifies artwork images into folk-art style categories by
// comparing them against a labeled reference corpus.
package artstyle

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Strategy selects how a query vector is scored against the reference index.
type Strategy string

const (
	StrategyCentroid   Strategy = "centroid"   // softmax over label centroids
	StrategyComparison Strategy = "comparison" // best per-sample match, calibrated
)

// ParseStrategy validates s. Empty means StrategyCentroid.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyCentroid:
		return StrategyCentroid, nil
	case StrategyComparison:
		return StrategyComparison, nil
	}
	return "", errors.Errorf("artstyle: unknown strategy %q", s)
}

// DefaultBuildRetryInterval spaces out rebuild attempts after a failed build.
const DefaultBuildRetryInterval = time.Minute

// Cache abstracts key-value caching (Redis, sync.Map, etc.)
type Cache interface {
	Key(prefix, value string) string
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// ClassificationEvent is emitted once per classification served.
type ClassificationEvent struct {
	ID       string // random UUID
	Filename string
	Strategy Strategy
	Result   ClassificationResult
	Duration time.Duration
	At       time.Time
	Cached   bool
}

// Config holds all dependencies injected by the consumer.
type Config struct {
	CorpusRoot string    // reference corpus: one sub-directory per label
	Manifest   *Manifest // optional: label folders, keywords, suggestions (nil = directory layout)
	IndexDir   string    // optional: persist the built index here and reuse it across runs

	Extractor ExtractorConfig  // feature extractor selection
	Features  FeatureExtractor // optional: overrides Extractor

	Strategy       Strategy // default StrategyCentroid
	Temperature    float64  // centroid softmax temperature, default DefaultTemperature
	FilenameWeight float64  // centroid filename blend, default DefaultFilenameWeight; negative disables

	MaxSamplesPerLabel int // default DefaultMaxSamplesPerLabel
	Workers            int // parallel extractions during a build, default GOMAXPROCS
	DedupThreshold     int // 0 disables perceptual dedup of references
	MaxPixels          int // decode guard, default DefaultMaxPixels

	// BuildRetryInterval is how long a failed index build is remembered before
	// a request may try again; default DefaultBuildRetryInterval. Rebuild
	// always retries.
	BuildRetryInterval time.Duration

	Logger     *slog.Logger // default slog.Default()
	Cache      Cache        // optional: result cache keyed by content hash (nil = no caching)
	HTTPClient *http.Client // optional: client for ClassifyURL (nil = http.DefaultClient)
	UserAgent  string       // default: "Mozilla/5.0 (compatible; go-artstyle/1.0)"

	// RandIntN drives the random fallback; default math/rand/v2.IntN.
	RandIntN func(n int) int

	// OnClassification is called after every successful Classify; optional.
	OnClassification func(ClassificationEvent)
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyCentroid
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.FilenameWeight == 0 {
		c.FilenameWeight = DefaultFilenameWeight
	}
	if c.MaxSamplesPerLabel <= 0 {
		c.MaxSamplesPerLabel = DefaultMaxSamplesPerLabel
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = DefaultMaxPixels
	}
	if c.BuildRetryInterval <= 0 {
		c.BuildRetryInterval = DefaultBuildRetryInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; go-artstyle/1.0)"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// manifest returns the configured manifest or the canonical one.
func (c *Config) manifest() *Manifest {
	if c.Manifest != nil {
		return c.Manifest
	}
	return DefaultManifest()
}

// folders returns the manifest folder layout, nil when labels come from the
// directory layout.
func (c *Config) folders() map[string]string {
	if c.Manifest == nil {
		return nil
	}
	return c.Manifest.Folders()
}
