package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	gh "pkgpulse/internal/github"
	"pkgpulse/internal/registry"
	"pkgpulse/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the aggregated registry over HTTP",
	Long: `Serve the aggregated registry over HTTP.

GET /registry returns the cached snapshot, refreshing it when it is older
than the cache TTL. A failed refresh falls back to the previous snapshot
with a warning annotation; only a failure with no prior snapshot yields a
500 response.

Environment:
	GITHUB_TOKEN                GitHub bearer credential (or gh CLI auth)
	PKGPULSE_INDEX_URL          registry index document URL
	PKGPULSE_CORE_DEPENDENCY    tracked core dependency name
	PKGPULSE_NPM_REGISTRY_URL   package index base URL
	PKGPULSE_ADDR               HTTP listen address
	PKGPULSE_ALLOWED_ORIGINS    comma-separated CORS allow-list

Flags take precedence over environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyEnvFallbacks(cmd)
		if err := applyNpmPrefixFlag(); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := newLogger()
		agg, err := buildAggregator(cmd.Context(), logger)
		if err != nil {
			return err
		}

		srv := server.New(agg, server.Options{
			Addr:           cfg.Server.Addr,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			CacheTTL:       cfg.Runtime.CacheTTL,
			Verbose:        cfg.Runtime.Verbose,
		}, logger)
		return srv.Run()
	},
}

// npmPrefixFlag holds the raw --npm-prefix value ("FROM=TO") until it is
// split into the config pair.
var npmPrefixFlag string

func registerPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&cfg.Registry.IndexURL, "index-url", cfg.Registry.IndexURL, "URL of the registry index document")
	f.StringVar(&cfg.Registry.CoreDependency, "core-dep", cfg.Registry.CoreDependency, "Tracked core dependency name")
	f.StringVar(&npmPrefixFlag, "npm-prefix", "", "Identifier-to-npm prefix substitution as FROM=TO")
	f.StringVar(&cfg.Upstream.NpmRegistryURL, "npm-registry", cfg.Upstream.NpmRegistryURL, "Package index base URL")
	f.StringVar(&cfg.Upstream.GitHubToken, "github-token", "", "GitHub token (default: GITHUB_TOKEN, then gh CLI)")
	f.DurationVar(&cfg.Runtime.CacheTTL, "cache-ttl", cfg.Runtime.CacheTTL, "How long a snapshot is served before re-aggregating")
	f.DurationVar(&cfg.Runtime.CycleTimeout, "cycle-timeout", cfg.Runtime.CycleTimeout, "Budget for one full aggregation cycle")
	f.IntVar(&cfg.Runtime.Concurrency, "concurrency", cfg.Runtime.Concurrency, "Per-cycle package fan-out limit")
}

// applyEnvFallbacks overlays environment variables onto fields whose flags
// were not set explicitly, so flags win over the environment.
func applyEnvFallbacks(cmd *cobra.Command) {
	env := *cfg
	env.ApplyEnv()

	if !cmd.Flags().Changed("index-url") {
		cfg.Registry.IndexURL = env.Registry.IndexURL
	}
	if !cmd.Flags().Changed("core-dep") {
		cfg.Registry.CoreDependency = env.Registry.CoreDependency
	}
	if !cmd.Flags().Changed("npm-registry") {
		cfg.Upstream.NpmRegistryURL = env.Upstream.NpmRegistryURL
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && !f.Changed {
		cfg.Server.Addr = env.Server.Addr
	}
	if f := cmd.Flags().Lookup("allow-origin"); f != nil && !f.Changed {
		cfg.Server.AllowedOrigins = env.Server.AllowedOrigins
	}
}

func applyNpmPrefixFlag() error {
	if npmPrefixFlag == "" {
		return nil
	}
	from, to, ok := strings.Cut(npmPrefixFlag, "=")
	if !ok || from == "" || to == "" {
		return fmt.Errorf("invalid --npm-prefix value %q (expected FROM=TO)", npmPrefixFlag)
	}
	cfg.Registry.NpmPrefixFrom = from
	cfg.Registry.NpmPrefixTo = to
	return nil
}

func buildAggregator(ctx context.Context, logger *log.Logger) (*registry.Aggregator, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	token, source, err := gh.ResolveAuthToken(ctx, cfg.Upstream.GitHubToken)
	if err != nil {
		return nil, fmt.Errorf("resolve github token: %w", err)
	}
	if token == "" {
		logger.Warn("no github credential found; aggregation cycles will fail until one is configured")
	} else {
		logger.Debug("github credential resolved", "source", source)
	}

	var opts []gh.Option
	if cfg.Runtime.Verbose {
		opts = append(opts, gh.WithTracing(logger))
	}
	client, err := gh.NewClient(ctx, token, opts...)
	if err != nil {
		return nil, err
	}

	git := registry.NewGitProber(client, cfg.Registry.CoreDependency, logger)
	npm := registry.NewNpmProber(cfg.Upstream.NpmRegistryURL, nil, cfg.Registry.NpmPrefixFrom, cfg.Registry.NpmPrefixTo, logger)
	rec := registry.NewReconciler(git, npm, logger)
	index := registry.NewIndexClient(cfg.Registry.IndexURL, nil)

	return registry.NewAggregator(rec, index, registry.AggregatorOptions{
		Token:        token,
		TTL:          cfg.Runtime.CacheTTL,
		CycleTimeout: cfg.Runtime.CycleTimeout,
		Concurrency:  cfg.Runtime.Concurrency,
	}, logger)
}

func init() {
	registerPipelineFlags(serveCmd)
	serveCmd.Flags().StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "HTTP listen address")
	serveCmd.Flags().StringSliceVar(&cfg.Server.AllowedOrigins, "allow-origin", nil, "CORS allowed origin (repeatable; default: all)")
	rootCmd.AddCommand(serveCmd)
}
