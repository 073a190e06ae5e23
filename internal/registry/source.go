package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const refProviderPrefix = "github:"

// ParseRef parses a raw source-control reference of the form
// "github:owner/repo". References without the provider prefix, without a
// separator, or with an empty owner or repo segment are rejected.
func ParseRef(raw string) (Ref, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), refProviderPrefix)
	if !ok {
		return Ref{}, false
	}
	owner, repo, ok := strings.Cut(rest, "/")
	if !ok || owner == "" || repo == "" {
		return Ref{}, false
	}
	return Ref{Owner: owner, Repo: repo}, true
}

// IndexClient fetches the registry index document.
type IndexClient struct {
	url  string
	http *http.Client
}

func NewIndexClient(url string, client *http.Client) *IndexClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &IndexClient{url: url, http: client}
}

// Fetch retrieves the identifier-to-reference index. Unlike the probers this
// is not best-effort: a failed index fetch fails the whole cycle, which the
// aggregator masks with stale data when it can.
func (c *IndexClient) Fetch(ctx context.Context) (Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build index request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch registry index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch registry index: unexpected status %d", resp.StatusCode)
	}

	var src Source
	if err := json.NewDecoder(resp.Body).Decode(&src); err != nil {
		return nil, fmt.Errorf("decode registry index: %w", err)
	}
	return src, nil
}
