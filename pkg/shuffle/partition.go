package shuffle

import (
	"math/rand/v2"

	"github.com/matzehuels/pixelshuffle/pkg/rules"
)

// Chunk is the half-open window [Start, End) of a sequence.
type Chunk struct {
	Start, End int
}

// Len returns the number of pixels in c.
func (c Chunk) Len() int { return c.End - c.Start }

// Group is a run of consecutive chunks reordered as a unit.
//
// Complete is false only for the trailing group of a pattern rule that ran
// out of pixels before len(sizes) chunks were cut.
type Group struct {
	Chunks   []Chunk
	Complete bool
}

// Partition cuts a sequence of n pixels according to r. Concatenating the
// chunks of every group in order reproduces [0, n) exactly.
func Partition(n int, r rules.Rule) []Group {
	if n <= 0 {
		return nil
	}
	if r.IsPattern() {
		return partitionPattern(n, r.Sizes)
	}
	return []Group{{Chunks: partitionFixed(n, r.ChunkSize), Complete: true}}
}

// Chunk ends are computed as i + min(size, n-i) so that sizes near
// math.MaxInt never overflow.
func partitionFixed(n, size int) []Chunk {
	chunks := make([]Chunk, 0, (n-1)/size+1)
	for i := 0; i < n; {
		end := i + min(size, n-i)
		chunks = append(chunks, Chunk{Start: i, End: end})
		i = end
	}
	return chunks
}

func partitionPattern(n int, sizes []int) []Group {
	var groups []Group
	cur := make([]Chunk, 0, len(sizes))
	for i := 0; i < n; {
		end := i + min(sizes[len(cur)], n-i)
		cur = append(cur, Chunk{Start: i, End: end})
		i = end
		if len(cur) == len(sizes) {
			groups = append(groups, Group{Chunks: cur, Complete: true})
			cur = make([]Chunk, 0, len(sizes))
		}
	}
	if len(cur) > 0 {
		groups = append(groups, Group{Chunks: cur, Complete: false})
	}
	return groups
}

// reorder returns the chunks of g in the order r prescribes. Incomplete
// groups keep their original order. g.Chunks may be permuted in place.
func reorder(g Group, r rules.Rule, rng *rand.Rand) []Chunk {
	if !g.Complete {
		return g.Chunks
	}
	switch r.Kind {
	case rules.KindShuffleGlobal, rules.KindShufflePattern:
		rng.Shuffle(len(g.Chunks), func(i, j int) {
			g.Chunks[i], g.Chunks[j] = g.Chunks[j], g.Chunks[i]
		})
		return g.Chunks
	case rules.KindPermutatePattern:
		out := make([]Chunk, len(g.Chunks))
		for j, idx := range r.Order {
			out[j] = g.Chunks[idx]
		}
		return out
	default:
		return g.Chunks
	}
}

// Arrange partitions n pixels with r and returns the chunks in their
// reordered positions.
func Arrange(n int, r rules.Rule, rng *rand.Rand) []Chunk {
	groups := Partition(n, r)
	if len(groups) == 1 {
		return reorder(groups[0], r, rng)
	}
	out := make([]Chunk, 0, len(groups)*max(len(r.Sizes), 1))
	for _, g := range groups {
		out = append(out, reorder(g, r, rng)...)
	}
	return out
}
