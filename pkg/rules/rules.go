package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/pixelshuffle/pkg/errors"
)

// Kind identifies a rule variant.
type Kind string

// Rule kinds.
const (
	KindDivide           Kind = "divide"
	KindShuffleGlobal    Kind = "shuffle-global"
	KindShufflePattern   Kind = "shuffle-pattern"
	KindPermutatePattern Kind = "permutate-pattern"
)

// Rule describes one level of the recursion.
//
// ChunkSize is used by Divide and ShuffleGlobal. Sizes is used by the
// pattern kinds, and Order only by PermutatePattern.
type Rule struct {
	Kind      Kind  `toml:"kind" json:"kind"`
	ChunkSize int   `toml:"size,omitempty" json:"size,omitempty"`
	Sizes     []int `toml:"sizes,omitempty" json:"sizes,omitempty"`
	Order     []int `toml:"order,omitempty" json:"order,omitempty"`
}

// Divide cuts the sequence into chunkSize pieces and keeps their order.
func Divide(chunkSize int) Rule {
	return Rule{Kind: KindDivide, ChunkSize: chunkSize}
}

// ShuffleGlobal cuts the sequence into chunkSize pieces and shuffles them.
func ShuffleGlobal(chunkSize int) Rule {
	return Rule{Kind: KindShuffleGlobal, ChunkSize: chunkSize}
}

// ShufflePattern cuts the sequence into chunks whose sizes cycle through
// sizes and shuffles each complete group of len(sizes) chunks.
func ShufflePattern(sizes ...int) Rule {
	return Rule{Kind: KindShufflePattern, Sizes: sizes}
}

// PermutatePattern groups like ShufflePattern but reorders each complete
// group so that output position j holds input chunk order[j].
func PermutatePattern(sizes, order []int) Rule {
	return Rule{Kind: KindPermutatePattern, Sizes: sizes, Order: order}
}

// IsPattern reports whether r uses cyclic pattern sizes.
func (r Rule) IsPattern() bool {
	return r.Kind == KindShufflePattern || r.Kind == KindPermutatePattern
}

// IsRandom reports whether r consumes randomness.
func (r Rule) IsRandom() bool {
	return r.Kind == KindShuffleGlobal || r.Kind == KindShufflePattern
}

// MaxChunk returns the largest chunk r can produce.
func (r Rule) MaxChunk() int {
	if !r.IsPattern() {
		return r.ChunkSize
	}
	m := 0
	for _, s := range r.Sizes {
		m = max(m, s)
	}
	return m
}

// Validate checks r for authoring errors.
func (r Rule) Validate() error {
	switch r.Kind {
	case KindDivide, KindShuffleGlobal:
		if r.ChunkSize <= 0 {
			return errors.New(errors.ErrCodeInvalidChunkSize,
				"%s: chunk size must be positive, got %d", r.Kind, r.ChunkSize)
		}
	case KindShufflePattern, KindPermutatePattern:
		if len(r.Sizes) == 0 {
			return errors.New(errors.ErrCodeInvalidChunkSize, "%s: sizes cannot be empty", r.Kind)
		}
		for i, s := range r.Sizes {
			if s <= 0 {
				return errors.New(errors.ErrCodeInvalidChunkSize,
					"%s: sizes[%d] must be positive, got %d", r.Kind, i, s)
			}
		}
		if r.Kind == KindPermutatePattern {
			return validatePermutation(r.Order, len(r.Sizes))
		}
	default:
		return errors.New(errors.ErrCodeInvalidRule, "unknown rule kind %q", r.Kind)
	}
	return nil
}

// validatePermutation checks that order is a bijection over 0..n-1.
func validatePermutation(order []int, n int) error {
	if len(order) != n {
		return errors.New(errors.ErrCodeInvalidPermutation,
			"order has %d entries, sizes has %d", len(order), n)
	}
	seen := make([]bool, n)
	for j, idx := range order {
		if idx < 0 || idx >= n {
			return errors.New(errors.ErrCodeInvalidPermutation,
				"order[%d] = %d out of range 0..%d", j, idx, n-1)
		}
		if seen[idx] {
			return errors.New(errors.ErrCodeInvalidPermutation,
				"order[%d] = %d repeats an earlier index", j, idx)
		}
		seen[idx] = true
	}
	return nil
}

// String renders r in the expression syntax accepted by ParseExpr.
func (r Rule) String() string {
	switch r.Kind {
	case KindDivide:
		return "divide:" + strconv.Itoa(r.ChunkSize)
	case KindShuffleGlobal:
		return "shuffle:" + strconv.Itoa(r.ChunkSize)
	case KindShufflePattern:
		return "pattern:" + joinInts(r.Sizes)
	case KindPermutatePattern:
		return "permute:" + joinInts(r.Sizes) + "@" + joinInts(r.Order)
	default:
		return fmt.Sprintf("unknown(%s)", r.Kind)
	}
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, "/")
}
