package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pixelshuffle/pkg/rules"
)

// rulesOpts selects the rule set the rules subcommands operate on.
type rulesOpts struct {
	expr       string
	configFile string
}

func (o *rulesOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.expr, "rules", "r", "", "rule expression")
	cmd.Flags().StringVarP(&o.configFile, "config", "c", "", "TOML rule config file")
	cmd.MarkFlagsMutuallyExclusive("rules", "config")
}

// rulesCommand creates the rules command with its subcommands.
func (c *CLI) rulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate rule sets",
		Long: `Inspect and validate rule sets.

A rule set is an ordered list of rules, one per recursion depth. Rules are
written either as a comma separated expression:

  divide:36000        fixed chunks, kept in order
  shuffle:8000        fixed chunks, shuffled
  pattern:64/80/200   chunk sizes cycle through the pattern, groups shuffled
  permute:4/8/12/16@3/2/0/1
                      chunk sizes cycle, each group reordered by the order

or as a TOML file with one [[rule]] table per depth.`,
	}

	cmd.AddCommand(c.rulesShowCommand())
	cmd.AddCommand(c.rulesValidateCommand())

	return cmd
}

// rulesShowCommand creates the "rules show" subcommand.
func (c *CLI) rulesShowCommand() *cobra.Command {
	var (
		opts   rulesOpts
		asTOML bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a rule set (the default set if none is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			set, seed, hasSeed, err := loadRules(opts.expr, opts.configFile)
			if err != nil {
				return err
			}
			if asTOML {
				cfg := rules.Config{Seed: seed, HasSeed: hasSeed, Rules: set}
				data, err := cfg.Encode()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatRuleTable(set))
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVar(&asTOML, "toml", false, "print the set as a TOML config")
	return cmd
}

// rulesValidateCommand creates the "rules validate" subcommand.
func (c *CLI) rulesValidateCommand() *cobra.Command {
	var opts rulesOpts
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a rule set for errors and nesting problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.expr == "" && opts.configFile == "" {
				return fmt.Errorf("one of --rules or --config is required")
			}
			set, _, _, err := loadRules(opts.expr, opts.configFile)
			if err != nil {
				return err
			}

			issues := set.CheckNesting()
			for _, issue := range issues {
				printWarning("%s", issue.Message)
			}
			printSuccess("%d rules are valid", len(set))
			printDetail("%s", set.String())
			if opts.configFile != "" {
				printNextStep("Run it", fmt.Sprintf("%s shuffle IMAGE --config %s", appName, opts.configFile))
			} else {
				printNextStep("Run it", fmt.Sprintf("%s shuffle IMAGE --rules %q", appName, set.String()))
			}
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

// formatRuleTable renders one line per depth:
//
//	0  divide             36000
//	1  permutate-pattern  4/8/12/16 @ 3/2/0/1
func formatRuleTable(set rules.Set) string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("depth  kind               chunks"))
	for d, r := range set {
		b.WriteString("\n")
		b.WriteString(StyleNumber.Render(fmt.Sprintf("%-5d", d)))
		b.WriteString("  ")
		b.WriteString(StyleValue.Render(fmt.Sprintf("%-17s", r.Kind)))
		b.WriteString("  ")
		b.WriteString(StyleDim.Render(describeChunks(r)))
	}
	return b.String()
}

func describeChunks(r rules.Rule) string {
	switch r.Kind {
	case rules.KindDivide, rules.KindShuffleGlobal:
		return fmt.Sprint(r.ChunkSize)
	case rules.KindPermutatePattern:
		return joinInts(r.Sizes) + " @ " + joinInts(r.Order)
	default:
		return joinInts(r.Sizes)
	}
}

func joinInts(xs []int) string {
	s := make([]string, len(xs))
	for i, x := range xs {
		s[i] = fmt.Sprint(x)
	}
	return strings.Join(s, "/")
}
