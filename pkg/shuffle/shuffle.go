package shuffle

import (
	"context"
	"io"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pixelshuffle/pkg/errors"
	"github.com/matzehuels/pixelshuffle/pkg/pixel"
	"github.com/matzehuels/pixelshuffle/pkg/rules"
)

// DefaultMinParallelChunk is the smallest chunk handed to another goroutine.
// Smaller chunks are processed inline by the goroutine that cut them.
const DefaultMinParallelChunk = 4096

// Shuffler applies a validated rule set to pixel sequences. It holds no
// per-run state and is safe for concurrent use.
type Shuffler struct {
	rules            rules.Set
	seed             uint64
	parallelism      int
	minParallelChunk int
	logger           *log.Logger

	// needsRand[d] reports whether any rule at depth >= d is random.
	needsRand []bool
}

// Option configures a Shuffler.
type Option func(*Shuffler)

// WithSeed sets the seed of the root generator.
func WithSeed(seed uint64) Option {
	return func(s *Shuffler) { s.seed = seed }
}

// WithParallelism bounds the number of extra goroutines used to process
// sibling chunks. Values below 2 keep the run on the calling goroutine.
func WithParallelism(n int) Option {
	return func(s *Shuffler) { s.parallelism = n }
}

// WithMinParallelChunk sets the smallest chunk worth a goroutine.
func WithMinParallelChunk(n int) Option {
	return func(s *Shuffler) { s.minParallelChunk = max(n, 1) }
}

// WithLogger sets the logger for run summaries.
func WithLogger(l *log.Logger) Option {
	return func(s *Shuffler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New validates set and returns a Shuffler for it. Authoring errors are
// reported here, before any pixel is touched.
func New(set rules.Set, opts ...Option) (*Shuffler, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	s := &Shuffler{
		rules:            set.Clone(),
		minParallelChunk: DefaultMinParallelChunk,
		logger:           log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.needsRand = make([]bool, len(s.rules)+1)
	for d := len(s.rules) - 1; d >= 0; d-- {
		s.needsRand[d] = s.needsRand[d+1] || s.rules[d].IsRandom()
	}
	return s, nil
}

// Rules returns a copy of the rule set.
func (s *Shuffler) Rules() rules.Set { return s.rules.Clone() }

// Seed returns the root seed.
func (s *Shuffler) Seed() uint64 { return s.seed }

// Stats describes one run.
type Stats struct {
	Pixels   int
	Chunks   []int64 // chunks cut at each depth
	Partial  []int64 // incomplete pattern groups flushed at each depth
	Duration time.Duration
}

// Result is the output of Run.
type Result struct {
	Pixels pixel.Sequence
	Stats  Stats
}

// run carries the counters and worker slots of a single call.
type run struct {
	*Shuffler
	chunks  []atomic.Int64
	partial []atomic.Int64
	slots   chan struct{}
}

// Shuffle returns a scrambled copy of seq.
func (s *Shuffler) Shuffle(ctx context.Context, seq pixel.Sequence) (pixel.Sequence, error) {
	res, err := s.Run(ctx, seq)
	if err != nil {
		return nil, err
	}
	return res.Pixels, nil
}

// Run scrambles seq and reports per-depth statistics.
func (s *Shuffler) Run(ctx context.Context, seq pixel.Sequence) (*Result, error) {
	start := time.Now()
	r := &run{
		Shuffler: s,
		chunks:   make([]atomic.Int64, len(s.rules)),
		partial:  make([]atomic.Int64, len(s.rules)),
	}
	if s.parallelism > 1 {
		r.slots = make(chan struct{}, s.parallelism)
	}

	dst := make(pixel.Sequence, len(seq))
	var rng *rand.Rand
	if s.needsRand[0] {
		rng = rand.New(rand.NewPCG(s.seed, s.seed^0xdeadbeef))
	}
	if err := r.apply(ctx, dst, seq, 0, rng); err != nil {
		return nil, err
	}
	if len(dst) != len(seq) {
		return nil, errors.New(errors.ErrCodeLengthInvariant,
			"output has %d pixels, input had %d", len(dst), len(seq))
	}

	stats := Stats{
		Pixels:   len(seq),
		Chunks:   make([]int64, len(s.rules)),
		Partial:  make([]int64, len(s.rules)),
		Duration: time.Since(start),
	}
	for d := range s.rules {
		stats.Chunks[d] = r.chunks[d].Load()
		stats.Partial[d] = r.partial[d].Load()
	}
	s.logger.Debug("shuffled sequence", "pixels", len(seq), "depths", len(s.rules), "elapsed", stats.Duration)
	return &Result{Pixels: dst, Stats: stats}, nil
}

// apply writes the scrambled form of src into dst. len(dst) == len(src)
// and the two never alias.
func (r *run) apply(ctx context.Context, dst, src pixel.Sequence, depth int, rng *rand.Rand) error {
	if depth >= len(r.rules) {
		copy(dst, src)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rule := r.rules[depth]
	groups := Partition(len(src), rule)

	var order []Chunk
	for _, g := range groups {
		if !g.Complete {
			r.partial[depth].Add(1)
		}
		order = append(order, reorder(g, rule, rng)...)
	}
	r.chunks[depth].Add(int64(len(order)))

	total := 0
	for _, c := range order {
		total += c.Len()
	}
	if total != len(src) {
		return errors.New(errors.ErrCodeLengthInvariant,
			"depth %d: chunks cover %d of %d pixels", depth, total, len(src))
	}

	childRand := r.needsRand[depth+1]
	var g *errgroup.Group
	off := 0
	for _, c := range order {
		out := dst[off : off+c.Len()]
		in := src[c.Start:c.End]
		off += c.Len()

		var child *rand.Rand
		if childRand {
			child = rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
		}

		if r.slots != nil && c.Len() >= r.minParallelChunk && depth+1 < len(r.rules) {
			select {
			case r.slots <- struct{}{}:
				if g == nil {
					g, ctx = errgroup.WithContext(ctx)
				}
				gctx := ctx
				g.Go(func() error {
					defer func() { <-r.slots }()
					return r.apply(gctx, out, in, depth+1, child)
				})
				continue
			default:
			}
		}
		if err := r.apply(ctx, out, in, depth+1, child); err != nil {
			if g != nil {
				_ = g.Wait()
			}
			return err
		}
	}
	if g != nil {
		return g.Wait()
	}
	return nil
}

// Shuffle scrambles seq with set using seed on the calling goroutine.
func Shuffle(seq pixel.Sequence, set rules.Set, seed uint64) (pixel.Sequence, error) {
	s, err := New(set, WithSeed(seed))
	if err != nil {
		return nil, err
	}
	return s.Shuffle(context.Background(), seq)
}
