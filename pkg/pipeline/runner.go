package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pixelshuffle/pkg/cache"
	"github.com/matzehuels/pixelshuffle/pkg/errors"
	"github.com/matzehuels/pixelshuffle/pkg/observability"
	"github.com/matzehuels/pixelshuffle/pkg/pixel"
	"github.com/matzehuels/pixelshuffle/pkg/shuffle"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete decode → shuffle → encode pipeline with caching.
func (r *Runner) Execute(ctx context.Context, input []byte, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	result := &Result{
		RunID:     uuid.NewString(),
		InputHash: cache.Hash(input),
	}
	logger := r.Logger.With("run", result.RunID[:8])

	cfg, inputFormat, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "read image header")
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, errors.New(errors.ErrCodeInvalidImage,
			"image is %dx%d, larger than the %d pixel limit", cfg.Width, cfg.Height, MaxPixels)
	}
	result.Width, result.Height = cfg.Width, cfg.Height
	result.Format = opts.OutputFormat(inputFormat)

	keyOpts := cache.ArtifactKeyOpts{
		Rules:  opts.Rules.String(),
		Seed:   opts.Seed,
		Format: result.Format,
	}
	if result.Format == pixel.FormatJPEG {
		keyOpts.Quality = opts.Quality
	}
	cacheKey := r.Keyer.ArtifactKey(result.InputHash, keyOpts)

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "artifact")
			logger.Debug("artifact cache hit", "key", cacheKey)
			result.Artifact = data
			result.CacheHit = true
			result.Stats.Pixels = cfg.Width * cfg.Height
			return result, nil
		} else if err != nil {
			logger.Warn("cache read failed", "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	// Stage 1: Decode
	decodeStart := time.Now()
	observability.Pipeline().OnDecodeStart(ctx, len(input))
	img, _, err := pixel.DecodeBytes(input)
	result.Stats.DecodeTime = time.Since(decodeStart)
	if err != nil {
		observability.Pipeline().OnDecodeComplete(ctx, inputFormat, 0, 0, result.Stats.DecodeTime, err)
		return nil, err
	}
	seq, w, h := pixel.FromImage(img)
	observability.Pipeline().OnDecodeComplete(ctx, inputFormat, w, h, result.Stats.DecodeTime, nil)
	result.Width, result.Height = w, h
	result.Stats.Pixels = len(seq)

	logger.Debug("decoded image",
		"format", inputFormat,
		"width", w,
		"height", h,
		"duration", result.Stats.DecodeTime)

	// Stage 2: Shuffle
	shuffled, err := r.shuffle(ctx, seq, opts, result)
	if err != nil {
		return nil, err
	}

	// Stage 3: Encode
	encodeStart := time.Now()
	observability.Pipeline().OnEncodeStart(ctx, result.Format)
	out, err := pixel.ToImage(shuffled, w, h)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = pixel.Encode(&buf, out, result.Format, opts.Quality)
	result.Stats.EncodeTime = time.Since(encodeStart)
	observability.Pipeline().OnEncodeComplete(ctx, result.Format, buf.Len(), result.Stats.EncodeTime, err)
	if err != nil {
		return nil, err
	}
	result.Artifact = buf.Bytes()

	logger.Debug("encoded image",
		"format", result.Format,
		"bytes", len(result.Artifact),
		"duration", result.Stats.EncodeTime)

	if err := r.Cache.Set(ctx, cacheKey, result.Artifact, cache.DefaultTTL); err != nil {
		logger.Warn("cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "artifact", len(result.Artifact))
	}

	return result, nil
}

func (r *Runner) shuffle(ctx context.Context, seq pixel.Sequence, opts Options, result *Result) (pixel.Sequence, error) {
	s, err := shuffle.New(opts.Rules,
		shuffle.WithSeed(opts.Seed),
		shuffle.WithParallelism(opts.Parallelism),
		shuffle.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}

	observability.Pipeline().OnShuffleStart(ctx, len(seq), len(opts.Rules))
	res, err := s.Run(ctx, seq)
	if err != nil {
		observability.Pipeline().OnShuffleComplete(ctx, len(seq), 0, err)
		return nil, err
	}
	observability.Pipeline().OnShuffleComplete(ctx, len(seq), res.Stats.Duration, nil)

	result.Stats.ShuffleTime = res.Stats.Duration
	result.Stats.Chunks = res.Stats.Chunks
	result.Stats.Partial = res.Stats.Partial

	r.Logger.Debug("shuffled pixels",
		"run", result.RunID[:8],
		"pixels", len(seq),
		"chunks", res.Stats.Chunks,
		"seed", opts.Seed,
		"duration", res.Stats.Duration)
	return res.Pixels, nil
}

// ExecuteFile reads the image at in, runs the pipeline and writes the
// artifact to out. The output directory is created if needed.
func (r *Runner) ExecuteFile(ctx context.Context, in, out string, opts Options) (*Result, error) {
	if err := errors.ValidatePath(in); err != nil {
		return nil, err
	}
	if err := errors.ValidateOutputPath(in, out); err != nil {
		return nil, err
	}

	input, err := os.ReadFile(in)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "input image %s not found", in)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", in)
	}

	if opts.Format == "" {
		opts.Format = pixel.FormatFromPath(out)
		if opts.Format == pixel.FormatWebP {
			return nil, errors.New(errors.ErrCodeUnsupported, "cannot write webp output %s", out)
		}
	}

	result, err := r.Execute(ctx, input, opts)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(out, result.Artifact, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	return result, nil
}

// DefaultOutputPath derives an output path next to in, named output with
// the extension of format.
func DefaultOutputPath(in, format string) string {
	ext := pixel.Extension(format)
	if ext == "" {
		ext = filepath.Ext(in)
	}
	return filepath.Join(filepath.Dir(in), "output"+ext)
}
