package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestNpmProber(t *testing.T, handler http.Handler, prefixFrom, prefixTo string) *NpmProber {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewNpmProber(srv.URL, srv.Client(), prefixFrom, prefixTo, testLogger())
}

func TestNpmProber_PackageName(t *testing.T) {
	tests := []struct {
		name       string
		prefixFrom string
		prefixTo   string
		id         string
		want       string
	}{
		{name: "identity mapping", id: "@scope/pkg-a", want: "@scope/pkg-a"},
		{name: "prefix substituted", prefixFrom: "@registry/", prefixTo: "@npm/", id: "@registry/pkg-a", want: "@npm/pkg-a"},
		{name: "non-matching prefix left alone", prefixFrom: "@registry/", prefixTo: "@npm/", id: "@other/pkg-a", want: "@other/pkg-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewNpmProber("https://registry.npmjs.org", nil, tt.prefixFrom, tt.prefixTo, testLogger())
			if got := p.PackageName(tt.id); got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNpmProber_Summary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/@scope/pkg-a", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"versions": map[string]any{
				"0.9.0":        map[string]any{},
				"1.2.0":        map[string]any{},
				"1.0.0-beta.3": map[string]any{},
			},
		})
	})
	p := newTestNpmProber(t, mux, "", "")

	got := p.Summary(context.Background(), "@scope/pkg-a")
	if got.Repo == nil || *got.Repo != "@scope/pkg-a" {
		t.Errorf("repo: got %v", got.Repo)
	}
	if got.V0 == nil || *got.V0 != "0.9.0" {
		t.Errorf("v0: got %v", got.V0)
	}
	if got.V1 == nil || *got.V1 != "1.2.0" {
		t.Errorf("v1: got %v", got.V1)
	}
}

func TestNpmProber_SummaryDegrades(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "package not found", handler: http.NotFound},
		{
			name: "no versions listing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"name":"@scope/pkg-a"}`))
			},
		},
		{
			name: "malformed response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{broken`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestNpmProber(t, tt.handler, "", "")

			got := p.Summary(context.Background(), "@scope/pkg-a")
			if got.Repo == nil || *got.Repo != "@scope/pkg-a" {
				t.Errorf("repo: got %v", got.Repo)
			}
			if got.V0 != nil || got.V1 != nil {
				t.Errorf("want empty version slots, got %+v", got)
			}
		})
	}
}
