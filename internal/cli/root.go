package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pkgpulse/internal/config"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var cfg = config.New()

var rootCmd = &cobra.Command{
	Use:   "pkgpulse",
	Short: "Aggregate package compatibility verdicts from GitHub and npm",
	Long: `pkgpulse watches a plugin registry index, probes each package's GitHub
repository (branches, tags, manifests) and its npm metadata, and reconciles
the signals into per-package verdicts of which core-dependency major lines
(v0 / v1) the package supports.

Examples:
	# Serve the aggregated registry over HTTP
	pkgpulse serve --index-url https://example.com/registry.json

	# One-shot aggregation on the console
	pkgpulse check --index-url https://example.com/registry.json

	# Print build info
	pkgpulse version

Authentication:
	GitHub access requires a token. pkgpulse prefers GITHUB_TOKEN, but can
	also reuse GitHub CLI authentication (gh auth token) when gh is
	installed and logged in.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, "verbose", false, "Enable debug logging (prints every upstream API call)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func newLogger() *log.Logger {
	level := log.InfoLevel
	if cfg.Runtime.Verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
