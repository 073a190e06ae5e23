// Package registry implements the aggregation pipeline: it expands the
// registry index into per-package probes against GitHub and npm, reconciles
// the signals into compatibility verdicts, and caches the aggregate with
// stale-while-revalidate fallback.
package registry

import "time"

// Source maps package identifiers to raw source-control references, e.g.
// "@scope/pkg-a" -> "github:scope/pkg-a". It is fetched fresh on every
// cache-miss cycle and never mutated afterwards.
type Source map[string]string

// Ref identifies a GitHub repository parsed out of a Source entry.
type Ref struct {
	Owner string
	Repo  string
}

func (r Ref) String() string {
	return r.Owner + "/" + r.Repo
}

// TagSummary is the highest release tag per major line for one repository.
// Nil slots mean no tag in that line exists or the probe failed.
type TagSummary struct {
	Repo string
	V0   *string
	V1   *string
}

// NpmSummary is the same envelope sourced from the package index.
type NpmSummary struct {
	Repo *string
	V0   *string
	V1   *string
}

// Manifest is what the inspector reads out of package.json at one ref: the
// declared package version and, when present, the range expression for the
// tracked core dependency.
type Manifest struct {
	Version  string
	Range    string
	HasRange bool
}

// BranchVersion pairs the highest known release in a major line with the
// branch whose manifest declares support for that line. Either slot may be
// null in the serialized verdict.
type BranchVersion struct {
	Version *string `json:"version"`
	Branch  *string `json:"branch"`
}

type GitInfo struct {
	Repo string        `json:"repo"`
	V0   BranchVersion `json:"v0"`
	V1   BranchVersion `json:"v1"`
}

type NpmInfo struct {
	Repo *string `json:"repo"`
	V0   *string `json:"v0"`
	V1   *string `json:"v1"`
}

type Supports struct {
	V0 bool `json:"v0"`
	V1 bool `json:"v1"`
}

// VersionInfo is the per-package verdict and the unit cached. The git and
// npm envelopes are independently sourced and may disagree; both are kept.
type VersionInfo struct {
	Git      *GitInfo `json:"git,omitempty"`
	Npm      *NpmInfo `json:"npm,omitempty"`
	Supports Supports `json:"supports"`
}

// CachedRegistry is the single cached artifact: one timestamped snapshot of
// every package's verdict. It is superseded wholesale by the next successful
// cycle, never partially updated. Warning and Error are only set on copies
// served through the stale-fallback path.
type CachedRegistry struct {
	LastUpdatedAt time.Time              `json:"lastUpdatedAt"`
	Registry      map[string]VersionInfo `json:"registry"`
	Warning       string                 `json:"warning,omitempty"`
	Error         string                 `json:"error,omitempty"`
}
