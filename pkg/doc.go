// Package pkg provides the core libraries for pixelshuffle glitch art.
//
// # Overview
//
// Pixelshuffle flattens an image into a sequence of pixels, cuts that
// sequence into chunks, reorders the chunks, and then recurses into each
// chunk with the next rule of a rule set. The pkg directory is organized
// as follows:
//
//  1. [pixel] - Pixel sequences and image codecs
//  2. [rules] - Rule and rule set types, TOML configs and rule expressions
//  3. [shuffle] - Partitioning and the recursive shuffler
//  4. [pipeline] - Orchestration (decode → shuffle → encode) with caching
//  5. [cache] - Artifact caches (file, Redis, null)
//  6. [errors] - Structured error codes
//  7. [observability] - Hooks for metrics and tracing
//  8. [buildinfo] - Version information set at build time
//
// # Architecture
//
// The typical data flow:
//
//	image bytes
//	     ↓
//	[pixel] decode + flatten (row-major)
//	     ↓
//	[shuffle] recursive chunk shuffle driven by a [rules] set
//	     ↓
//	[pixel] rebuild + encode
//	     ↓
//	PNG/JPEG/GIF/BMP/TIFF output
//
// # Quick Start
//
// Shuffle a pixel sequence directly:
//
//	set := rules.Set{rules.Divide(36000), rules.ShuffleGlobal(8000)}
//	out, err := shuffle.Shuffle(seq, set, 42)
//
// Or run the whole pipeline on an encoded image:
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	result, err := runner.Execute(ctx, data, pipeline.Options{Seed: 7})
//	os.WriteFile("output.png", result.Artifact, 0o644)
//
// # Determinism
//
// A run is fully determined by the input pixels, the rule set and the
// seed. Parallel and sequential runs produce identical output.
package pkg
