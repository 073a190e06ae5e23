package registry

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v81/github"

	gh "pkgpulse/internal/github"
	"pkgpulse/internal/versions"
)

const manifestPath = "package.json"

// tagPageSize caps the tag listing at the 100 most relevant tags.
const tagPageSize = 100

// GitProber reads branch, tag and manifest signals from GitHub. Every
// operation is best-effort: failures degrade to empty results and a log
// line, they are never surfaced to the caller.
type GitProber struct {
	client  *gh.Client
	coreDep string
	log     *log.Logger
	flight  *flightGroup
}

func NewGitProber(client *gh.Client, coreDep string, logger *log.Logger) *GitProber {
	return &GitProber{
		client:  client,
		coreDep: coreDep,
		log:     logger,
		flight:  &flightGroup{},
	}
}

// Branches returns the set of branch names for a repository, or an empty set
// on any failure.
func (p *GitProber) Branches(ctx context.Context, ref Ref) map[string]bool {
	v, err := p.flight.Do("branches:"+ref.String(), func() (any, error) {
		opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: tagPageSize}}
		branches, _, err := p.client.REST.Repositories.ListBranches(ctx, ref.Owner, ref.Repo, opts)
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(branches))
		for _, b := range branches {
			set[b.GetName()] = true
		}
		return set, nil
	})
	if err != nil {
		p.log.Warn("branch listing failed", "repo", ref.String(), "err", err)
		return map[string]bool{}
	}
	return v.(map[string]bool)
}

// TagSummary lists up to 100 tags, cleans them into canonical versions, and
// resolves the highest release per major line. On total failure the summary
// still carries the repo name with empty version slots.
func (p *GitProber) TagSummary(ctx context.Context, ref Ref) TagSummary {
	summary := TagSummary{Repo: ref.String()}

	v, err := p.flight.Do("tags:"+ref.String(), func() (any, error) {
		opts := &github.ListOptions{PerPage: tagPageSize}
		tags, _, err := p.client.REST.Repositories.ListTags(ctx, ref.Owner, ref.Repo, opts)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(tags))
		for _, t := range tags {
			names = append(names, t.GetName())
		}
		return names, nil
	})
	if err != nil {
		p.log.Warn("tag listing failed", "repo", ref.String(), "err", err)
		return summary
	}

	set := versions.Resolve(v.([]string))
	summary.V0, summary.V1 = set.Strings()
	return summary
}

// Manifest fetches package.json at the given ref and extracts the declared
// version plus the range for the tracked core dependency, checking direct
// dependencies before peer dependencies. A missing file, malformed content
// or failed fetch is an expected outcome and yields nil.
func (p *GitProber) Manifest(ctx context.Context, ref Ref, gitRef string) *Manifest {
	v, err := p.flight.Do("manifest:"+ref.String()+"@"+gitRef, func() (any, error) {
		opts := &github.RepositoryContentGetOptions{Ref: gitRef}
		file, _, _, err := p.client.REST.Repositories.GetContents(ctx, ref.Owner, ref.Repo, manifestPath, opts)
		if err != nil {
			return nil, err
		}
		if file == nil {
			return (*Manifest)(nil), nil
		}
		content, err := file.GetContent()
		if err != nil {
			return nil, err
		}

		var doc struct {
			Version          string            `json:"version"`
			Dependencies     map[string]string `json:"dependencies"`
			PeerDependencies map[string]string `json:"peerDependencies"`
		}
		if err := json.Unmarshal([]byte(content), &doc); err != nil {
			return nil, err
		}

		m := &Manifest{Version: doc.Version}
		if rng, ok := doc.Dependencies[p.coreDep]; ok {
			m.Range, m.HasRange = rng, true
		} else if rng, ok := doc.PeerDependencies[p.coreDep]; ok {
			m.Range, m.HasRange = rng, true
		}
		return m, nil
	})
	if err != nil {
		p.log.Debug("manifest unavailable", "repo", ref.String(), "ref", gitRef, "err", err)
		return nil
	}
	return v.(*Manifest)
}
