package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/pixelshuffle/pkg/cache"
	"github.com/matzehuels/pixelshuffle/pkg/errors"
	"github.com/matzehuels/pixelshuffle/pkg/pipeline"
	"github.com/matzehuels/pixelshuffle/pkg/rules"
)

// run executes the command tree with args and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeGradient writes an 8x8 PNG whose pixels are all distinct.
func writeGradient(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 32), G: uint8(y * 32), B: 7, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func colorCounts(t *testing.T, path string) (map[color.NRGBA]int, image.Rectangle) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[color.NRGBA]int{}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			counts[color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)]++
		}
	}
	return counts, b
}

func TestShuffleCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out", "glitch.png")
	writeGradient(t, in)

	if _, err := run(t, "shuffle", in, "-o", out, "--rules", "divide:16,shuffle:4", "--seed", "3", "--no-cache"); err != nil {
		t.Fatalf("shuffle: %v", err)
	}

	want, wantBounds := colorCounts(t, in)
	got, gotBounds := colorCounts(t, out)
	if gotBounds != wantBounds {
		t.Fatalf("bounds = %v, want %v", gotBounds, wantBounds)
	}
	for c, n := range want {
		if got[c] != n {
			t.Fatalf("color %v appears %d times, want %d", c, got[c], n)
		}
	}

	first, _ := os.ReadFile(out)
	if _, err := run(t, "shuffle", in, "-o", out, "--rules", "divide:16,shuffle:4", "--seed", "3", "--no-cache"); err != nil {
		t.Fatalf("second shuffle: %v", err)
	}
	second, _ := os.ReadFile(out)
	if !bytes.Equal(first, second) {
		t.Error("same seed produced different output")
	}
}

func TestShuffleCommandDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeGradient(t, in)

	if _, err := run(t, "shuffle", in, "--no-cache"); err != nil {
		t.Fatalf("shuffle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "output.png")); err != nil {
		t.Errorf("default output not written: %v", err)
	}
}

func TestShuffleCommandUsesFileCache(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeGradient(t, in)

	for i := 0; i < 2; i++ {
		if _, err := run(t, "shuffle", in, "-o", filepath.Join(dir, "out.png")); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	cdir, _ := cacheDir()
	var files int
	_ = filepath.Walk(cdir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files++
		}
		return nil
	})
	if files != 1 {
		t.Errorf("cache holds %d entries, want 1", files)
	}
}

func TestShuffleCommandConfigSeed(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeGradient(t, in)

	cfg := filepath.Join(dir, "rules.toml")
	toml := "seed = 11\n\n[[rule]]\nkind = \"shuffle-global\"\nsize = 4\n"
	if err := os.WriteFile(cfg, []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	if _, err := run(t, "shuffle", in, "-o", a, "--config", cfg, "--no-cache"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "shuffle", in, "-o", b, "--rules", "shuffle:4", "--seed", "11", "--no-cache"); err != nil {
		t.Fatal(err)
	}
	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if !bytes.Equal(da, db) {
		t.Error("config seed was not applied")
	}
}

func TestShuffleCommandErrors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeGradient(t, in)

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"missing input", []string{"shuffle", filepath.Join(dir, "nope.png"), "--no-cache"}, errors.ErrCodeFileNotFound},
		{"bad permutation", []string{"shuffle", in, "--rules", "permute:4/8@0/0", "--no-cache"}, errors.ErrCodeInvalidPermutation},
		{"zero chunk", []string{"shuffle", in, "--rules", "divide:0", "--no-cache"}, errors.ErrCodeInvalidChunkSize},
		{"output is input", []string{"shuffle", in, "-o", in, "--no-cache"}, errors.ErrCodeInvalidPath},
		{"bad format", []string{"shuffle", in, "--format", "xcf", "--no-cache"}, errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestRulesShowTOMLRoundTrip(t *testing.T) {
	out, err := run(t, "rules", "show", "--toml")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := rules.Parse([]byte(out))
	if err != nil {
		t.Fatalf("parse printed config: %v\n%s", err, out)
	}
	if got, want := cfg.Rules.String(), rules.Default().String(); got != want {
		t.Errorf("round trip = %q, want %q", got, want)
	}
}

func TestRulesShowTable(t *testing.T) {
	out, err := run(t, "rules", "show", "--rules", "divide:100,permute:2/3@1/0")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"divide", "100", "permutate-pattern", "2/3 @ 1/0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRulesValidate(t *testing.T) {
	if _, err := run(t, "rules", "validate", "--rules", "divide:100,shuffle:10"); err != nil {
		t.Errorf("valid set: %v", err)
	}
	if _, err := run(t, "rules", "validate"); err == nil {
		t.Error("validate without a rule set should fail")
	}
	_, err := run(t, "rules", "validate", "--rules", "pattern:4/-1")
	if ExitCode(err) != 2 {
		t.Errorf("ExitCode(%v) = %d, want 2", err, ExitCode(err))
	}
}

func TestCacheCommands(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)

	out, err := run(t, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := strings.TrimSpace(out), filepath.Join(xdg, appName); got != want {
		t.Errorf("cache path = %q, want %q", got, want)
	}

	fc, err := cache.NewFileCache(filepath.Join(xdg, appName))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := fc.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := fc.Get(ctx, "k"); ok {
		t.Error("entry survived cache clear")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New(errors.ErrCodeInvalidChunkSize, "x"), 2},
		{errors.New(errors.ErrCodeInvalidRule, "x"), 2},
		{errors.New(errors.ErrCodeFileNotFound, "x"), 1},
		{io.EOF, 1},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFormatRunStats(t *testing.T) {
	res := &pipeline.Result{
		Width:    4,
		Height:   2,
		CacheHit: true,
		Stats:    pipeline.Stats{Pixels: 8, Chunks: []int64{2, 4}, Partial: []int64{0, 1}},
	}
	line := formatRunStats(res)
	for _, want := range []string{"4x2", "8 px", "2/4 chunks", "1 partial groups", iconCached} {
		if !strings.Contains(line, want) {
			t.Errorf("formatRunStats() = %q, missing %q", line, want)
		}
	}
}
