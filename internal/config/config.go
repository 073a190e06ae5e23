package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: if you add/change/remove fields, keep the CLI flags in
	// internal/cli/serve.go and the env names in ApplyEnv in sync.
	Registry Registry
	Upstream Upstream
	Server   Server
	Runtime  Runtime
}

type Registry struct {
	// IndexURL is the fixed URL of the JSON index document mapping package
	// identifiers to source-control references (see --index-url / PKGPULSE_INDEX_URL).
	IndexURL string

	// CoreDependency is the manifest dependency whose declared range decides
	// which major line a branch supports (see --core-dep).
	CoreDependency string

	// NpmPrefixFrom/NpmPrefixTo define the deterministic prefix substitution
	// that maps a registry identifier to its npm package name (see --npm-prefix).
	// Both empty means identifiers are already npm names.
	NpmPrefixFrom string
	NpmPrefixTo   string
}

type Upstream struct {
	// GitHubToken is the bearer credential for the GitHub API. If empty it is
	// resolved at startup (env var, then gh CLI); an aggregation cycle without
	// a token fails.
	GitHubToken string

	// NpmRegistryURL is the base URL of the package index (see --npm-registry).
	NpmRegistryURL string
}

type Server struct {
	// Addr is the HTTP listen address (see --addr).
	Addr string

	// AllowedOrigins is the CORS allow-list for the HTTP surface (see --allow-origin).
	// Empty means all origins.
	AllowedOrigins []string
}

type Runtime struct {
	// CacheTTL is how long a successful registry snapshot is served without
	// re-aggregating (see --cache-ttl). Must be > 0.
	CacheTTL time.Duration

	// CycleTimeout bounds one full aggregation cycle (see --cycle-timeout).
	// Must be > 0 and should stay below any upstream proxy timeout.
	CycleTimeout time.Duration

	// Concurrency bounds the per-cycle package fan-out (see --concurrency).
	// Must be >= 1.
	Concurrency int

	// Verbose enables debug logging, including one line per upstream API call.
	Verbose bool
}

func New() *Config {
	return &Config{
		Registry: Registry{
			CoreDependency: "@pkgpulse/core",
		},
		Upstream: Upstream{
			NpmRegistryURL: "https://registry.npmjs.org",
		},
		Server: Server{
			Addr: ":8080",
		},
		Runtime: Runtime{
			CacheTTL:     30 * time.Minute,
			CycleTimeout: 25 * time.Second,
			Concurrency:  8,
		},
	}
}

// ApplyEnv overlays environment variables onto the config. Flags are applied
// after this, so explicit flags win over the environment.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("PKGPULSE_INDEX_URL")); v != "" {
		c.Registry.IndexURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PKGPULSE_CORE_DEPENDENCY")); v != "" {
		c.Registry.CoreDependency = v
	}
	if v := strings.TrimSpace(os.Getenv("PKGPULSE_NPM_REGISTRY_URL")); v != "" {
		c.Upstream.NpmRegistryURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PKGPULSE_ADDR")); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("PKGPULSE_ALLOWED_ORIGINS")); v != "" {
		c.Server.AllowedOrigins = splitCommaList(v)
	}
	// GITHUB_TOKEN is handled by the token resolver, not here.
}

func (c *Config) Validate() error {
	if c.Registry.IndexURL == "" {
		return errors.New("registry index URL is required (--index-url or PKGPULSE_INDEX_URL)")
	}
	u, err := url.Parse(c.Registry.IndexURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid registry index URL: %s", c.Registry.IndexURL)
	}

	if c.Registry.CoreDependency == "" {
		return errors.New("core dependency name must not be empty")
	}

	if c.Upstream.NpmRegistryURL == "" {
		return errors.New("npm registry URL must not be empty")
	}
	c.Upstream.NpmRegistryURL = strings.TrimRight(c.Upstream.NpmRegistryURL, "/")
	u, err = url.Parse(c.Upstream.NpmRegistryURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid npm registry URL: %s", c.Upstream.NpmRegistryURL)
	}

	if (c.Registry.NpmPrefixFrom == "") != (c.Registry.NpmPrefixTo == "") {
		return errors.New("npm prefix mapping requires both a from and a to prefix")
	}

	if c.Runtime.CacheTTL <= 0 {
		return errors.New("cache TTL must be > 0")
	}
	if c.Runtime.CycleTimeout <= 0 {
		return errors.New("cycle timeout must be > 0")
	}
	if c.Runtime.Concurrency <= 0 {
		return errors.New("concurrency must be >= 1")
	}

	return nil
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
