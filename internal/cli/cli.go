// Package cli implements the pixelshuffle command-line interface.
//
// This package provides commands for scrambling images with a rule set,
// inspecting and validating rule sets, managing the artifact cache and
// serving the HTTP API. The CLI is built using cobra and logs through
// charmbracelet/log.
//
// # Commands
//
//   - shuffle: scramble an image file
//   - rules: print, validate or export rule sets
//   - cache: manage the artifact cache
//   - serve: run the HTTP API
//   - completion: generate shell completions
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// is attached to each command's context.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pixelshuffle/pkg/buildinfo"
	"github.com/matzehuels/pixelshuffle/pkg/cache"
	"github.com/matzehuels/pixelshuffle/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pixelshuffle"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	verbose bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Pixelshuffle scrambles images into glitch art",
		Long:          `Pixelshuffle cuts an image's pixels into nested chunks and reorders them level by level, following a small list of shuffle rules, to produce glitch art.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	// Register all subcommands
	root.AddCommand(c.shuffleCommand())
	root.AddCommand(c.rulesCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// Execute builds the command tree and runs it with ctx.
func Execute(ctx context.Context, args []string) error {
	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// =============================================================================
// Runner Factory
// =============================================================================

// cacheFlags are the cache options shared by shuffle and serve.
type cacheFlags struct {
	noCache  bool
	redisURL string
	prefix   string
}

func (f *cacheFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the artifact cache")
	cmd.Flags().StringVar(&f.redisURL, "redis", "", "use the Redis cache at this URL (redis://host:port/db)")
	cmd.Flags().StringVar(&f.prefix, "cache-prefix", "", "prefix for cache keys in a shared cache")
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, f cacheFlags) (*pipeline.Runner, error) {
	store, err := newCache(ctx, f)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if f.prefix != "" {
		keyer = cache.NewScopedKeyer(nil, f.prefix)
	}
	return pipeline.NewRunner(store, keyer, c.Logger), nil
}

func newCache(ctx context.Context, f cacheFlags) (cache.Cache, error) {
	if f.noCache {
		return cache.NewNullCache(), nil
	}
	if f.redisURL != "" {
		rc, err := cache.NewRedisCache(ctx, f.redisURL)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/pixelshuffle/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
