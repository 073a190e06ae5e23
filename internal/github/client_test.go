package github

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	client, err := NewClient(ctx, "test-token")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.REST == nil {
		t.Error("expected REST client with explicit token")
	}

	// No token: still returns a usable, unauthenticated client.
	client, err = NewClient(ctx, "")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.REST == nil {
		t.Error("expected REST client without token")
	}
}

func TestNewClient_NilContextReturnsError(t *testing.T) {
	var nilCtx context.Context
	if _, err := NewClient(nilCtx, "tok"); err == nil {
		t.Fatal("expected error for nil context")
	}
}

func TestNewClient_TokenAttachedToRequests(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), "secret-token")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	resp, err := client.HTTP.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if !strings.Contains(gotAuth, "secret-token") {
		t.Errorf("expected bearer token on request, got %q", gotAuth)
	}
}

func TestNewClient_TracingLogsCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	client, err := NewClient(context.Background(), "", WithTracing(logger))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	resp, err := client.HTTP.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if !strings.Contains(buf.String(), "github api") {
		t.Errorf("expected trace output, got %q", buf.String())
	}
}
