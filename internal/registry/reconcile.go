package registry

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"pkgpulse/internal/versions"
)

// branchPriority is the fixed candidate set of branches whose manifests are
// inspected, in priority order. When several candidates resolve to the same
// major line, the last one in this order wins.
var branchPriority = []string{"main", "master", "0.x", "1.x"}

// Reconciler merges branch-level and release-level signals for one package
// into a single compatibility verdict.
type Reconciler struct {
	git *GitProber
	npm *NpmProber
	log *log.Logger
}

func NewReconciler(git *GitProber, npm *NpmProber, logger *log.Logger) *Reconciler {
	return &Reconciler{git: git, npm: npm, log: logger}
}

// Reconcile produces the verdict for one package identifier and its raw
// source-control reference. Sub-probe failures never escape: every probe
// yields a degraded-but-valid result, so the verdict is always well formed.
func (r *Reconciler) Reconcile(ctx context.Context, id, rawRef string) VersionInfo {
	ref, ok := ParseRef(rawRef)
	if !ok {
		r.log.Warn("unsupported source reference", "package", id, "ref", rawRef)
		return VersionInfo{Npm: &NpmInfo{}}
	}

	// Tag and npm probes run while branches and manifests are inspected.
	tagCh := make(chan TagSummary, 1)
	npmCh := make(chan NpmSummary, 1)
	go func() { tagCh <- r.git.TagSummary(ctx, ref) }()
	go func() { npmCh <- r.npm.Summary(ctx, id) }()

	branches := r.git.Branches(ctx, ref)
	candidates := make([]string, 0, len(branchPriority))
	for _, name := range branchPriority {
		if branches[name] {
			candidates = append(candidates, name)
		}
	}

	// One manifest fetch per candidate branch; a failed candidate leaves a
	// nil slot and never disturbs the others.
	manifests := make([]*Manifest, len(candidates))
	var wg sync.WaitGroup
	for i, branch := range candidates {
		wg.Add(1)
		go func(i int, branch string) {
			defer wg.Done()
			manifests[i] = r.git.Manifest(ctx, ref, branch)
		}(i, branch)
	}
	wg.Wait()

	var v0Branch, v1Branch *string
	for i, m := range manifests {
		if m == nil || !m.HasRange {
			continue
		}
		rng, usable := versions.NormalizeRange(m.Range)
		if !usable {
			continue
		}
		major, err := versions.MajorOfMinimum(rng)
		if err != nil {
			r.log.Warn("unparseable dependency range", "package", id, "branch", candidates[i], "range", m.Range, "err", err)
			continue
		}
		branch := candidates[i]
		switch major {
		case 0:
			v0Branch = &branch
		case 1:
			v1Branch = &branch
		}
	}

	tags := <-tagCh
	npm := <-npmCh

	git := &GitInfo{
		Repo: tags.Repo,
		V0:   BranchVersion{Version: coalesce(tags.V0, npm.V0), Branch: v0Branch},
		V1:   BranchVersion{Version: coalesce(tags.V1, npm.V1), Branch: v1Branch},
	}
	if git.Repo == "" {
		if npm.Repo != nil && *npm.Repo != "" {
			git.Repo = *npm.Repo
		} else {
			git.Repo = ref.String()
		}
	}

	return VersionInfo{
		Git: git,
		Npm: &NpmInfo{Repo: npm.Repo, V0: npm.V0, V1: npm.V1},
		Supports: Supports{
			V0: v0Branch != nil || npm.V0 != nil,
			V1: v1Branch != nil || npm.V1 != nil,
		},
	}
}

func coalesce(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
