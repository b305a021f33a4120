// Package shuffle implements the recursive partition-and-reorder engine that
// scrambles a pixel sequence.
//
// At depth d the engine cuts its input into chunks using rules[d], reorders
// the chunks, recurses into every chunk with depth d+1 and concatenates the
// results in their reordered positions. Recursion stops once the rules are
// exhausted. The result is always a permutation of the input: no pixel is
// created, duplicated or dropped, and the caller's sequence is never written.
//
// # Partitioning
//
// [Partition] exposes the chunking policy on its own. Fixed-size rules
// produce a single group whose final chunk holds the remainder. Pattern
// rules produce groups of len(sizes) chunks; if the sequence runs out
// mid-group the partial group is kept, marked incomplete and passed through
// in its original order.
//
// # Randomness
//
// Every run starts from the configured seed. Each chunk that still has
// random rules below it gets its own generator, seeded from its parent's
// generator in chunk order before any child runs, so the output depends
// only on the input, the rules and the seed, not on scheduling:
//
//	s, err := shuffle.New(rules.Default(), shuffle.WithSeed(42), shuffle.WithParallelism(8))
//	if err != nil {
//	    return err // INVALID_CHUNK_SIZE or INVALID_PERMUTATION
//	}
//	out, err := s.Shuffle(ctx, seq)
package shuffle
