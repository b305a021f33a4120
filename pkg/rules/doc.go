// Package rules defines the shuffle rule data model.
//
// A [Set] is an ordered list of [Rule] values, one per recursion depth. Each
// rule says how to cut the sequence it receives into chunks and how to
// reorder those chunks before the shuffler recurses into them:
//
//   - [Divide]: fixed-size chunks, original order
//   - [ShuffleGlobal]: fixed-size chunks, uniformly shuffled
//   - [ShufflePattern]: chunk sizes cycle through a pattern; every complete
//     group of len(sizes) chunks is shuffled independently
//   - [PermutatePattern]: same grouping, each complete group reordered by a
//     fixed permutation
//
// # Authoring
//
// Chunk sizes at depth d should exceed those at depth d+1 so each level
// subdivides the previous one. [Set.CheckNesting] reports violations but
// they are not errors. Hard errors are reported by [Set.Validate]: zero
// chunk sizes and non-bijective permutations.
//
// Rule sets can be written in TOML (see [Parse]) or as compact
// expressions (see [ParseExpr]):
//
//	divide:36000,shuffle:8000,pattern:64/80/200,permute:4/8/12/16@3/2/0/1
package rules
