package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/pixelshuffle/internal/server"
)

// serveCommand creates the serve command that runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr        string
		maxBody     int64
		parallelism int
		expr        string
		configFile  string
		cf          cacheFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the shuffle pipeline over HTTP",
		Long: `Serve the shuffle pipeline over HTTP.

Endpoints:
  GET  /healthz             build information
  GET  /v1/rules/default    the default rule set
  POST /v1/rules/validate   validate a rule expression or TOML body
  POST /v1/shuffle          scramble the image in the request body

/v1/shuffle takes the query parameters rules, seed, format, quality and
refresh and responds with the encoded image.`,
		Example: `  pixelshuffle serve --addr :8080
  pixelshuffle serve --redis redis://localhost:6379/0 --config rules.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			set, _, _, err := loadRules(expr, configFile)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, cf)
			if err != nil {
				return err
			}
			defer runner.Cache.Close()

			srv := server.New(runner, logger, server.Config{
				MaxBodyBytes: maxBody,
				Parallelism:  parallelism,
				Rules:        set,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().Int64Var(&maxBody, "max-body", server.DefaultMaxBodyBytes, "maximum request body size in bytes")
	cmd.Flags().IntVarP(&parallelism, "parallel", "p", 0, "max concurrent chunk workers per request (default: GOMAXPROCS, 1 = sequential)")
	cmd.Flags().StringVarP(&expr, "rules", "r", "", "default rule expression for requests that name none")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "default TOML rule config for requests that name none")
	cmd.MarkFlagsMutuallyExclusive("rules", "config")
	cf.register(cmd)

	return cmd
}
