// Package pipeline provides the decode → shuffle → encode pipeline used by
// the CLI and the HTTP server.
//
// By centralizing this logic, both entry points share defaults, validation
// and caching.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Decode: read the input image and flatten it into a row-major pixel sequence
//  2. Shuffle: scramble the sequence with the configured rule set
//  3. Encode: reshape the sequence into a raster and write the output format
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Rules:  rules.Default(),
//	    Seed:   42,
//	    Format: "png",
//	}
//	result, err := runner.Execute(ctx, input, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("output.png", result.Artifact, 0o644)
package pipeline

import (
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pixelshuffle/pkg/errors"
	"github.com/matzehuels/pixelshuffle/pkg/pixel"
	"github.com/matzehuels/pixelshuffle/pkg/rules"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = uint64(42)

	// DefaultFormat is used when neither the options nor the input
	// format name an encodable format.
	DefaultFormat = pixel.FormatPNG

	// DefaultQuality is the default JPEG quality.
	DefaultQuality = pixel.DefaultQuality

	// MaxPixels bounds the size of a decoded image.
	MaxPixels = 100_000_000
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the shuffle pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	Rules       rules.Set `json:"rules"`
	Seed        uint64    `json:"seed,omitempty"`
	Format      string    `json:"format,omitempty"`      // Output format; empty keeps the input format
	Quality     int       `json:"quality,omitempty"`     // JPEG quality 1-100
	Parallelism int       `json:"parallelism,omitempty"` // 0 = GOMAXPROCS, 1 = sequential
	Refresh     bool      `json:"refresh,omitempty"`     // Ignore cached artifacts

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies this run in logs and API responses.
	RunID string

	// InputHash is the content hash of the input image.
	InputHash string

	// Artifact is the encoded output image.
	Artifact []byte

	// Format is the format of Artifact.
	Format string

	// Width and Height are the image dimensions.
	Width, Height int

	// Stats contains timing and size information.
	Stats Stats

	// CacheHit reports whether Artifact came from the cache.
	CacheHit bool
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Pixels      int
	Chunks      []int64 // chunks cut at each depth
	Partial     []int64 // incomplete pattern groups at each depth
	DecodeTime  time.Duration
	ShuffleTime time.Duration
	EncodeTime  time.Duration
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format can be written.
func ValidateFormat(format string) error {
	if err := errors.ValidateFormatName(format); err != nil {
		return err
	}
	if !pixel.EncodableFormats[pixel.NormalizeFormat(format)] {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: png, jpeg, gif, bmp, tiff)", format)
	}
	return nil
}

// ValidateQuality checks a JPEG quality value. Zero selects the default.
func ValidateQuality(q int) error {
	if q < 0 || q > 100 {
		return errors.New(errors.ErrCodeInvalidInput, "quality must be between 1 and 100, got %d", q)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.Rules.Validate(); err != nil {
		return err
	}
	if o.Format != "" {
		if err := ValidateFormat(o.Format); err != nil {
			return err
		}
		o.Format = pixel.NormalizeFormat(o.Format)
	}
	if err := ValidateQuality(o.Quality); err != nil {
		return err
	}
	o.SetDefaults()
	o.validated = true
	return nil
}

// SetDefaults fills zero values.
func (o *Options) SetDefaults() {
	if o.Rules == nil {
		o.Rules = rules.Default()
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	if o.Parallelism == 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// OutputFormat returns the format to encode with given the decoded input format.
func (o *Options) OutputFormat(inputFormat string) string {
	if o.Format != "" {
		return o.Format
	}
	if pixel.EncodableFormats[inputFormat] {
		return inputFormat
	}
	return DefaultFormat
}
