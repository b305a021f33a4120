package rules

import (
	"fmt"
	"strings"

	"github.com/matzehuels/pixelshuffle/pkg/errors"
)

// Set is an ordered list of rules indexed by recursion depth.
type Set []Rule

// Pattern constants of the classic glitch preset.
var (
	PatternA     = []int{64, 80, 200}
	PatternB     = []int{4, 8, 12, 16}
	PatternBRule = []int{3, 2, 0, 1}
)

// Default returns the classic four-level preset: large bands kept in place,
// medium blocks shuffled globally, pattern-sized runs shuffled per group
// and the smallest runs permuted by a fixed order.
func Default() Set {
	return Set{
		Divide(1200 * 30),
		ShuffleGlobal(200 * 40),
		ShufflePattern(PatternA...),
		PermutatePattern(PatternB, PatternBRule),
	}.Clone()
}

// Validate checks every rule and reports the first failure with its depth.
func (s Set) Validate() error {
	for depth, r := range s {
		if err := r.Validate(); err != nil {
			return errors.New(errors.GetCode(err), "rule %d: %s", depth, errors.UserMessage(err))
		}
	}
	return nil
}

// NestingIssue describes a depth whose chunks do not subdivide the
// previous depth's chunks.
type NestingIssue struct {
	Depth   int
	Outer   int
	Inner   int
	Message string
}

// CheckNesting reports every depth d+1 whose largest chunk is not smaller
// than the largest chunk at depth d. Such sets still run, but the deeper
// rule then sees whole chunks and has little visible effect.
func (s Set) CheckNesting() []NestingIssue {
	var issues []NestingIssue
	for d := 1; d < len(s); d++ {
		outer, inner := s[d-1].MaxChunk(), s[d].MaxChunk()
		if inner >= outer {
			issues = append(issues, NestingIssue{
				Depth:   d,
				Outer:   outer,
				Inner:   inner,
				Message: fmt.Sprintf("rule %d chunks (%d) do not subdivide rule %d chunks (%d)", d, inner, d-1, outer),
			})
		}
	}
	return issues
}

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for i, r := range s {
		out[i] = Rule{
			Kind:      r.Kind,
			ChunkSize: r.ChunkSize,
			Sizes:     append([]int(nil), r.Sizes...),
			Order:     append([]int(nil), r.Order...),
		}
	}
	return out
}

// String renders s as a comma separated expression.
func (s Set) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
