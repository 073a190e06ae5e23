package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"pkgpulse/internal/versions"
)

// NpmProber reads the package index's version envelope for a package.
type NpmProber struct {
	base       string
	http       *http.Client
	prefixFrom string
	prefixTo   string
	log        *log.Logger
	flight     *flightGroup
}

func NewNpmProber(baseURL string, client *http.Client, prefixFrom, prefixTo string, logger *log.Logger) *NpmProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &NpmProber{
		base:       strings.TrimRight(baseURL, "/"),
		http:       client,
		prefixFrom: prefixFrom,
		prefixTo:   prefixTo,
		log:        logger,
		flight:     &flightGroup{},
	}
}

// PackageName maps a registry identifier to its npm package name by
// deterministic prefix substitution. No network lookup is involved.
func (p *NpmProber) PackageName(id string) string {
	if p.prefixFrom != "" {
		if rest, ok := strings.CutPrefix(id, p.prefixFrom); ok {
			return p.prefixTo + rest
		}
	}
	return id
}

// Summary fetches package metadata and resolves the highest listed version
// per major line. A failed fetch or a response without a versions listing
// degrades to a summary that only carries the package name.
func (p *NpmProber) Summary(ctx context.Context, id string) NpmSummary {
	name := p.PackageName(id)
	summary := NpmSummary{Repo: &name}

	v, err := p.flight.Do("npm:"+name, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/"+name, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		var doc struct {
			Versions map[string]json.RawMessage `json:"versions"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, err
		}

		listed := make([]string, 0, len(doc.Versions))
		for v := range doc.Versions {
			listed = append(listed, v)
		}
		return listed, nil
	})
	if err != nil {
		p.log.Debug("npm metadata unavailable", "package", name, "err", err)
		return summary
	}

	listed := v.([]string)
	if len(listed) == 0 {
		return summary
	}
	set := versions.Resolve(listed)
	summary.V0, summary.V1 = set.Strings()
	return summary
}
