package cli

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pixelshuffle/pkg/errors"
	"github.com/matzehuels/pixelshuffle/pkg/pipeline"
	"github.com/matzehuels/pixelshuffle/pkg/rules"
)

// shuffleOpts holds the flags of the shuffle command.
type shuffleOpts struct {
	output      string
	expr        string
	configFile  string
	seed        uint64
	randomSeed  bool
	format      string
	quality     int
	parallelism int
	refresh     bool
	cache       cacheFlags
}

// shuffleCommand creates the shuffle command.
func (c *CLI) shuffleCommand() *cobra.Command {
	var opts shuffleOpts

	cmd := &cobra.Command{
		Use:   "shuffle INPUT",
		Short: "Scramble an image with a rule set",
		Long: `Scramble an image by cutting its pixels into nested chunks and
reordering them level by level.

Without --rules or --config the default rule set is used:

  ` + rules.Default().String() + `

The output format follows the output file extension unless --format is set.`,
		Example: `  pixelshuffle shuffle photo.png
  pixelshuffle shuffle photo.jpg -o glitch.png --seed 7
  pixelshuffle shuffle photo.png --rules "divide:20000,permute:4/8/12/16@3/2/0/1"
  pixelshuffle shuffle photo.png --config rules.toml --random-seed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runShuffle(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: output.<ext> next to the input)")
	cmd.Flags().StringVarP(&opts.expr, "rules", "r", "", `rule expression, e.g. "divide:36000,shuffle:8000"`)
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "TOML rule config file")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, fmt.Sprintf("random seed (default %d)", pipeline.DefaultSeed))
	cmd.Flags().BoolVar(&opts.randomSeed, "random-seed", false, "pick a fresh random seed and print it")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png, jpeg, gif, bmp, tiff")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, fmt.Sprintf("JPEG quality 1-100 (default %d)", pipeline.DefaultQuality))
	cmd.Flags().IntVarP(&opts.parallelism, "parallel", "p", 0, "max concurrent chunk workers (default: GOMAXPROCS, 1 = sequential)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached artifacts")
	opts.cache.register(cmd)

	cmd.MarkFlagsMutuallyExclusive("rules", "config")
	cmd.MarkFlagsMutuallyExclusive("seed", "random-seed")

	return cmd
}

func (c *CLI) runShuffle(cmd *cobra.Command, input string, opts shuffleOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	set, cfgSeed, hasCfgSeed, err := loadRules(opts.expr, opts.configFile)
	if err != nil {
		return err
	}
	for _, issue := range set.CheckNesting() {
		printWarning("%s", issue.Message)
	}

	seed := opts.seed
	switch {
	case opts.randomSeed:
		seed = randomSeed()
	case !cmd.Flags().Changed("seed") && hasCfgSeed:
		seed = cfgSeed
	}

	output := opts.output
	if output == "" {
		format := opts.format
		if format == "" {
			format = pipeline.DefaultFormat
		}
		output = pipeline.DefaultOutputPath(input, format)
	}

	runner, err := c.newRunner(ctx, opts.cache)
	if err != nil {
		return err
	}
	defer runner.Cache.Close()

	popts := pipeline.Options{
		Rules:       set,
		Seed:        seed,
		Format:      opts.format,
		Quality:     opts.quality,
		Parallelism: opts.parallelism,
		Refresh:     opts.refresh,
		Logger:      logger,
	}

	prog := newProgress(logger)
	result, err := runWithSpinner(ctx, "Shuffling "+input+"...", !c.verbose, func(ctx context.Context) (*pipeline.Result, error) {
		return runner.ExecuteFile(ctx, input, output, popts)
	})
	if err != nil {
		return err
	}
	prog.done("Shuffled image",
		"run", result.RunID[:8],
		"pixels", result.Stats.Pixels,
		"cached", result.CacheHit)

	printSuccess("Shuffled %s", input)
	printRunStats(result)
	printFile(output)
	if opts.randomSeed {
		printKeyValue("seed", fmt.Sprint(seed))
	}
	return nil
}

// runWithSpinner runs fn while showing a spinner. The spinner is skipped
// when show is false so it does not interleave with debug logs.
func runWithSpinner(ctx context.Context, msg string, show bool, fn func(context.Context) (*pipeline.Result, error)) (*pipeline.Result, error) {
	if !show {
		return fn(ctx)
	}
	spinner := newSpinnerWithContext(ctx, msg)
	spinner.Start()
	result, err := fn(ctx)
	spinner.Stop()
	return result, err
}

// loadRules resolves the rule set from a rule expression or a TOML config
// file, falling back to the default set. The seed from a config file is
// returned along with whether the file set one.
func loadRules(expr, configFile string) (rules.Set, uint64, bool, error) {
	switch {
	case configFile != "":
		cfg, err := rules.LoadFile(configFile)
		if err != nil {
			return nil, 0, false, err
		}
		return cfg.Rules, cfg.Seed, cfg.HasSeed, nil
	case expr != "":
		set, err := rules.ParseExpr(expr)
		if err != nil {
			return nil, 0, false, err
		}
		return set, 0, false, nil
	default:
		return rules.Default(), 0, false, nil
	}
}

// randomSeed draws a non-zero seed. Zero is reserved for "use the default".
func randomSeed() uint64 {
	for {
		if s := rand.Uint64(); s != 0 {
			return s
		}
	}
}

// ExitCode maps an error returned by Execute onto a process exit status.
// Rule-authoring errors exit with 2 so scripts can tell them apart from
// I/O and decode failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsAuthoring(err):
		return 2
	default:
		return 1
	}
}
