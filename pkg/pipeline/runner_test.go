package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/pixelshuffle/pkg/cache"
	"github.com/matzehuels/pixelshuffle/pkg/errors"
	"github.com/matzehuels/pixelshuffle/pkg/pixel"
	"github.com/matzehuels/pixelshuffle/pkg/rules"
)

// testImage returns a PNG whose pixels are all distinct.
func testImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func pixelCounts(t *testing.T, data []byte) map[pixel.Pixel]int {
	t.Helper()
	img, _, err := pixel.DecodeBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	seq, _, _ := pixel.FromImage(img)
	counts := make(map[pixel.Pixel]int, len(seq))
	for _, p := range seq {
		counts[p]++
	}
	return counts
}

func smallRules() rules.Set {
	return rules.Set{
		rules.Divide(512),
		rules.ShuffleGlobal(64),
		rules.ShufflePattern(7, 9, 13),
		rules.PermutatePattern([]int{1, 2, 3}, []int{2, 0, 1}),
	}
}

func TestExecutePreservesPixels(t *testing.T) {
	input := testImage(t, 40, 30)
	r := NewRunner(nil, nil, nil)

	res, err := r.Execute(context.Background(), input, Options{Rules: smallRules(), Seed: 3})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Width != 40 || res.Height != 30 {
		t.Errorf("dimensions = %dx%d", res.Width, res.Height)
	}
	if res.Format != "png" {
		t.Errorf("format = %q, want png", res.Format)
	}
	if res.Stats.Pixels != 1200 {
		t.Errorf("pixels = %d", res.Stats.Pixels)
	}
	if res.RunID == "" || res.InputHash != cache.Hash(input) {
		t.Errorf("run id %q, input hash %q", res.RunID, res.InputHash)
	}

	in, out := pixelCounts(t, input), pixelCounts(t, res.Artifact)
	if len(in) != len(out) {
		t.Fatalf("distinct pixels %d -> %d", len(in), len(out))
	}
	for p, n := range in {
		if out[p] != n {
			t.Fatalf("pixel %+v count %d -> %d", p, n, out[p])
		}
	}
	if bytes.Equal(input, res.Artifact) {
		t.Error("output should differ from input")
	}
}

func TestExecuteIdentityRules(t *testing.T) {
	input := testImage(t, 8, 8)
	res, err := NewRunner(nil, nil, nil).Execute(context.Background(), input, Options{Rules: rules.Set{}})
	if err != nil {
		t.Fatal(err)
	}
	inImg, _, _ := pixel.DecodeBytes(input)
	outImg, _, _ := pixel.DecodeBytes(res.Artifact)
	a, _, _ := pixel.FromImage(inImg)
	b, _, _ := pixel.FromImage(outImg)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pixel %d changed with an empty rule set", i)
		}
	}
}

func TestExecuteCaching(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	input := testImage(t, 16, 16)
	opts := Options{Rules: smallRules(), Seed: 9}

	first, err := r.Execute(ctx, input, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Error("first run should miss")
	}

	second, err := r.Execute(ctx, input, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Error("second run should hit")
	}
	if !bytes.Equal(first.Artifact, second.Artifact) {
		t.Error("cached artifact differs")
	}

	opts.Refresh = true
	third, err := r.Execute(ctx, input, opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheHit {
		t.Error("refresh should bypass the cache")
	}

	other, err := r.Execute(ctx, input, Options{Rules: smallRules(), Seed: 10})
	if err != nil {
		t.Fatal(err)
	}
	if other.CacheHit {
		t.Error("different seed should miss")
	}
}

func TestExecuteFormatConversion(t *testing.T) {
	res, err := NewRunner(nil, nil, nil).Execute(context.Background(), testImage(t, 4, 4), Options{Format: "jpg", Rules: smallRules()})
	if err != nil {
		t.Fatal(err)
	}
	if _, format, err := pixel.DecodeBytes(res.Artifact); err != nil || format != "jpeg" {
		t.Errorf("artifact format = %q, %v", format, err)
	}
}

func TestExecuteErrors(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	ctx := context.Background()

	if _, err := r.Execute(ctx, []byte("garbage"), Options{}); !errors.Is(err, errors.ErrCodeInvalidImage) {
		t.Errorf("garbage input err = %v, want INVALID_IMAGE", err)
	}

	bad := Options{Rules: rules.Set{rules.ShufflePattern(4, 0)}}
	if _, err := r.Execute(ctx, testImage(t, 2, 2), bad); !errors.Is(err, errors.ErrCodeInvalidChunkSize) {
		t.Errorf("bad rules err = %v, want INVALID_CHUNK_SIZE", err)
	}
}

func TestExecuteFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.png")
	if err := os.WriteFile(in, testImage(t, 10, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "nested", "output.bmp")

	res, err := NewRunner(nil, nil, nil).ExecuteFile(context.Background(), in, out, Options{Rules: smallRules()})
	if err != nil {
		t.Fatalf("ExecuteFile: %v", err)
	}
	if res.Format != "bmp" {
		t.Errorf("format = %q, want bmp from the output extension", res.Format)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if _, format, err := pixel.DecodeBytes(data); err != nil || format != "bmp" {
		t.Errorf("written file format = %q, %v", format, err)
	}
}

func TestExecuteFileErrors(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(nil, nil, nil)
	ctx := context.Background()

	_, err := r.ExecuteFile(ctx, filepath.Join(dir, "missing.png"), filepath.Join(dir, "out.png"), Options{})
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing input err = %v, want FILE_NOT_FOUND", err)
	}

	in := filepath.Join(dir, "in.png")
	if err := os.WriteFile(in, testImage(t, 2, 2), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ExecuteFile(ctx, in, in, Options{}); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("overwrite err = %v, want INVALID_PATH", err)
	}
	if _, err := r.ExecuteFile(ctx, in, filepath.Join(dir, "out.webp"), Options{}); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("webp output err = %v, want UNSUPPORTED", err)
	}
}
