package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrMissingCredential fails an aggregation cycle before any network call is
// made. Without a GitHub credential no prior snapshot can exist either, so
// this always surfaces as a hard failure.
var ErrMissingCredential = errors.New("github credential is not configured")

type AggregatorOptions struct {
	// Token is the GitHub bearer credential. Empty fails every cycle.
	Token string

	// TTL is how long a successful snapshot is served without re-aggregating.
	TTL time.Duration

	// CycleTimeout bounds one full aggregation cycle.
	CycleTimeout time.Duration

	// Concurrency bounds the per-package fan-out.
	Concurrency int
}

// Aggregator owns the registry snapshot cache. The snapshot and its
// timestamp are the only shared mutable state in the pipeline; they are
// written only after a cycle fully joins, so readers never observe partial
// results.
type Aggregator struct {
	rec   *Reconciler
	index *IndexClient
	opts  AggregatorOptions
	log   *log.Logger
	now   func() time.Time

	mu        sync.Mutex
	snapshot  *CachedRegistry
	fetchedAt time.Time
}

func NewAggregator(rec *Reconciler, index *IndexClient, opts AggregatorOptions, logger *log.Logger) (*Aggregator, error) {
	if rec == nil {
		return nil, errors.New("reconciler is nil")
	}
	if index == nil {
		return nil, errors.New("index client is nil")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("cache TTL must be > 0, got %s", opts.TTL)
	}
	if opts.CycleTimeout <= 0 {
		return nil, fmt.Errorf("cycle timeout must be > 0, got %s", opts.CycleTimeout)
	}
	if opts.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", opts.Concurrency)
	}
	return &Aggregator{
		rec:   rec,
		index: index,
		opts:  opts,
		log:   logger,
		now:   time.Now,
	}, nil
}

// Registry returns the current snapshot, running a full aggregation cycle
// when the cached one is missing or older than the TTL.
//
// On a failed cycle with a previous snapshot, that snapshot is returned with
// warning/error annotations and a nil error; its timestamp is left untouched
// so the next request retries instead of extending the stale window. With no
// previous snapshot the error is returned alongside an explicit failure
// payload.
func (a *Aggregator) Registry(ctx context.Context) (*CachedRegistry, error) {
	a.mu.Lock()
	if a.snapshot != nil && a.now().Sub(a.fetchedAt) < a.opts.TTL {
		snap := a.snapshot
		a.mu.Unlock()
		return snap, nil
	}
	a.mu.Unlock()

	snap, err := a.aggregate(ctx)
	if err == nil {
		a.mu.Lock()
		a.snapshot = snap
		a.fetchedAt = a.now()
		a.mu.Unlock()
		a.log.Info("registry snapshot refreshed", "packages", len(snap.Registry))
		return snap, nil
	}

	a.log.Error("aggregation cycle failed", "err", err)

	a.mu.Lock()
	prev := a.snapshot
	a.mu.Unlock()
	if prev != nil {
		stale := *prev
		stale.Warning = "serving stale registry data"
		stale.Error = err.Error()
		return &stale, nil
	}

	return &CachedRegistry{
		LastUpdatedAt: a.now(),
		Registry:      map[string]VersionInfo{},
		Error:         err.Error(),
	}, err
}

// aggregate races one full cycle against the cycle timeout. The timeout
// cancels the cycle context, so abandoned probes stop instead of lingering;
// a result that arrives after the deadline is discarded.
func (a *Aggregator) aggregate(ctx context.Context) (*CachedRegistry, error) {
	if a.opts.Token == "" {
		return nil, ErrMissingCredential
	}

	cycleCtx, cancel := context.WithTimeout(ctx, a.opts.CycleTimeout)
	defer cancel()

	type cycleResult struct {
		snap *CachedRegistry
		err  error
	}
	done := make(chan cycleResult, 1)
	go func() {
		snap, err := a.runCycle(cycleCtx)
		done <- cycleResult{snap: snap, err: err}
	}()

	select {
	case res := <-done:
		return res.snap, res.err
	case <-cycleCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("aggregation cycle exceeded %s: %w", a.opts.CycleTimeout, cycleCtx.Err())
	}
}

func (a *Aggregator) runCycle(ctx context.Context) (*CachedRegistry, error) {
	src, err := a.index.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	reg := make(map[string]VersionInfo, len(src))
	var mu sync.Mutex
	sem := make(chan struct{}, a.opts.Concurrency)
	var wg sync.WaitGroup

scheduleLoop:
	for id, rawRef := range src {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break scheduleLoop
		}

		wg.Add(1)
		go func(id, rawRef string) {
			defer wg.Done()
			defer func() { <-sem }()

			info := a.rec.Reconcile(ctx, id, rawRef)
			mu.Lock()
			reg[id] = info
			mu.Unlock()
		}(id, rawRef)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &CachedRegistry{LastUpdatedAt: a.now(), Registry: reg}, nil
}
