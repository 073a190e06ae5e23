// Package github wraps the go-github client with token auth and optional
// request tracing for the registry probers.
package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
)

type Client struct {
	REST *github.Client
	HTTP *http.Client
}

type options struct {
	tracer *log.Logger
}

type Option func(*options)

// WithTracing logs every GitHub API call (method, URL, status, latency) at
// debug level on the given logger.
func WithTracing(logger *log.Logger) Option {
	return func(o *options) {
		o.tracer = logger
	}
}

// tracingRoundTripper wraps an underlying transport and emits one debug
// record per request/response pair.
type tracingRoundTripper struct {
	base http.RoundTripper
	log  *log.Logger
}

func (t *tracingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.log.Debug("github api", "method", req.Method, "url", req.URL.String(), "err", err, "dur", dur)
		return resp, err
	}
	t.log.Debug("github api", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "dur", dur)
	return resp, err
}

func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	transport := http.DefaultTransport
	if o.tracer != nil {
		transport = &tracingRoundTripper{base: transport, log: o.tracer}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	// Always provide an http.Client so tracing works even without a token.
	tc := &http.Client{Transport: transport}

	return &Client{
		REST: github.NewClient(tc),
		HTTP: tc,
	}, nil
}
