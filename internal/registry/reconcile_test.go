package registry

import (
	"context"
	"net/http"
	"reflect"
	"sync/atomic"
	"testing"
)

// newTestReconciler wires the probers to fake GitHub and npm servers and
// counts every upstream request that reaches them.
func newTestReconciler(t *testing.T, ghMux, npmMux http.Handler, requests *atomic.Int64) *Reconciler {
	t.Helper()

	count := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests != nil {
				requests.Add(1)
			}
			h.ServeHTTP(w, r)
		})
	}

	git := NewGitProber(newTestGitClient(t, count(ghMux)), "@core", testLogger())
	npm := newTestNpmProber(t, count(npmMux), "", "")
	return NewReconciler(git, npm, testLogger())
}

// pkgAUpstream reproduces the reference scenario: tags 1.2.0 and 0.9.0, a
// main branch whose manifest declares @core ^0.5.0, and npm listing 0.9.0
// and 1.2.0.
func pkgAUpstream(t *testing.T) (ghMux, npmMux *http.ServeMux) {
	t.Helper()

	ghMux = http.NewServeMux()
	ghMux.HandleFunc("/repos/scope/pkg-a/branches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{{"name": "main"}})
	})
	ghMux.HandleFunc("/repos/scope/pkg-a/tags", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{{"name": "1.2.0"}, {"name": "0.9.0"}})
	})
	ghMux.HandleFunc("/repos/scope/pkg-a/contents/package.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(contentsResponse(t, `{"version":"0.9.0","dependencies":{"@core":"^0.5.0"}}`))
	})

	npmMux = http.NewServeMux()
	npmMux.HandleFunc("/@scope/pkg-a", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"versions": map[string]any{"0.9.0": map[string]any{}, "1.2.0": map[string]any{}},
		})
	})
	return ghMux, npmMux
}

func TestReconcile_EndToEnd(t *testing.T) {
	ghMux, npmMux := pkgAUpstream(t)
	rec := newTestReconciler(t, ghMux, npmMux, nil)

	got := rec.Reconcile(context.Background(), "@scope/pkg-a", "github:scope/pkg-a")

	if got.Git == nil {
		t.Fatal("missing git envelope")
	}
	if got.Git.Repo != "scope/pkg-a" {
		t.Errorf("git.repo: got %q", got.Git.Repo)
	}
	if got.Git.V0.Version == nil || *got.Git.V0.Version != "0.9.0" {
		t.Errorf("git.v0.version: got %v", got.Git.V0.Version)
	}
	if got.Git.V1.Version == nil || *got.Git.V1.Version != "1.2.0" {
		t.Errorf("git.v1.version: got %v", got.Git.V1.Version)
	}
	if got.Git.V0.Branch == nil || *got.Git.V0.Branch != "main" {
		t.Errorf("git.v0.branch: got %v", got.Git.V0.Branch)
	}
	if got.Git.V1.Branch != nil {
		t.Errorf("git.v1.branch: want nil, got %q", *got.Git.V1.Branch)
	}

	if got.Npm == nil {
		t.Fatal("missing npm envelope")
	}
	if got.Npm.V0 == nil || *got.Npm.V0 != "0.9.0" {
		t.Errorf("npm.v0: got %v", got.Npm.V0)
	}
	if got.Npm.V1 == nil || *got.Npm.V1 != "1.2.0" {
		t.Errorf("npm.v1: got %v", got.Npm.V1)
	}

	if !got.Supports.V0 || !got.Supports.V1 {
		t.Errorf("supports: got %+v", got.Supports)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	ghMux, npmMux := pkgAUpstream(t)
	rec := newTestReconciler(t, ghMux, npmMux, nil)

	first := rec.Reconcile(context.Background(), "@scope/pkg-a", "github:scope/pkg-a")
	second := rec.Reconcile(context.Background(), "@scope/pkg-a", "github:scope/pkg-a")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("verdicts differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestReconcile_MalformedRefShortCircuits(t *testing.T) {
	var requests atomic.Int64
	rec := newTestReconciler(t, http.NotFoundHandler(), http.NotFoundHandler(), &requests)

	for _, raw := range []string{"", "scope/pkg-a", "github:scope", "npm:scope/pkg-a"} {
		got := rec.Reconcile(context.Background(), "@scope/pkg-a", raw)
		if got.Supports.V0 || got.Supports.V1 {
			t.Errorf("ref %q: want no support, got %+v", raw, got.Supports)
		}
		if got.Git != nil {
			t.Errorf("ref %q: want no git envelope, got %+v", raw, got.Git)
		}
		if got.Npm == nil || got.Npm.Repo != nil || got.Npm.V0 != nil || got.Npm.V1 != nil {
			t.Errorf("ref %q: want empty npm envelope, got %+v", raw, got.Npm)
		}
	}

	if n := requests.Load(); n != 0 {
		t.Errorf("want zero upstream requests, got %d", n)
	}
}

// When several candidate branches resolve to the same major line, the last
// one in priority order wins. This pins the current behavior; see DESIGN.md
// for the known first-wins/last-wins ambiguity.
func TestReconcile_LastCandidateBranchWinsPerMajor(t *testing.T) {
	manifests := map[string]string{
		"main":   `{"version":"0.1.0","dependencies":{"@core":"^0.5.0"}}`,
		"master": `{"version":"0.1.0","dependencies":{"@core":"^0.6.0"}}`,
		"0.x":    `{"version":"0.1.0","dependencies":{"@core":"^0.7.0"}}`,
		"1.x":    `{"version":"1.0.0","dependencies":{"@core":"^1.0.0"}}`,
	}

	ghMux := http.NewServeMux()
	ghMux.HandleFunc("/repos/scope/pkg-b/branches", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{
			{"name": "1.x"}, {"name": "main"}, {"name": "0.x"}, {"name": "master"},
		})
	})
	ghMux.HandleFunc("/repos/scope/pkg-b/tags", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{})
	})
	ghMux.HandleFunc("/repos/scope/pkg-b/contents/package.json", func(w http.ResponseWriter, r *http.Request) {
		manifest, ok := manifests[r.URL.Query().Get("ref")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(contentsResponse(t, manifest))
	})

	rec := newTestReconciler(t, ghMux, http.NotFoundHandler(), nil)
	got := rec.Reconcile(context.Background(), "@scope/pkg-b", "github:scope/pkg-b")

	if got.Git == nil {
		t.Fatal("missing git envelope")
	}
	if got.Git.V0.Branch == nil || *got.Git.V0.Branch != "0.x" {
		t.Errorf("v0 branch: want 0.x (last v0 candidate in priority order), got %v", got.Git.V0.Branch)
	}
	if got.Git.V1.Branch == nil || *got.Git.V1.Branch != "1.x" {
		t.Errorf("v1 branch: want 1.x, got %v", got.Git.V1.Branch)
	}
	if !got.Supports.V0 || !got.Supports.V1 {
		t.Errorf("supports: got %+v", got.Supports)
	}
}

func TestReconcile_NpmOnlySignalStillSupports(t *testing.T) {
	// All GitHub probes fail; the npm envelope alone decides support.
	npmMux := http.NewServeMux()
	npmMux.HandleFunc("/@scope/pkg-c", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"versions": map[string]any{"1.1.0": map[string]any{}},
		})
	})

	rec := newTestReconciler(t, http.NotFoundHandler(), npmMux, nil)
	got := rec.Reconcile(context.Background(), "@scope/pkg-c", "github:scope/pkg-c")

	if got.Supports.V0 {
		t.Error("unexpected v0 support")
	}
	if !got.Supports.V1 {
		t.Error("expected v1 support from the npm signal")
	}
	if got.Git == nil || got.Git.Repo != "scope/pkg-c" {
		t.Errorf("git.repo fallback: got %+v", got.Git)
	}
	if got.Git.V1.Version == nil || *got.Git.V1.Version != "1.1.0" {
		t.Errorf("git.v1.version should fall back to the npm value, got %v", got.Git.V1.Version)
	}
}
