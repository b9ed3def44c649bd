package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/slok/reviewdata/internal/model"
)

// requestGate limits the outbound requests: a maximum of in-flight requests and a
// minimum spacing between the start of two requests.
type requestGate struct {
	sem      *semaphore.Weighted
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func newRequestGate(maxConcurrent int, interval time.Duration) *requestGate {
	return &requestGate{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		interval: interval,
	}
}

// acquire blocks until the request can start. The returned func must be called
// once the request has finished.
func (g *requestGate) acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	release = func() { g.sem.Release(1) }

	g.mu.Lock()
	now := time.Now()
	start := g.next
	if start.Before(now) {
		start = now
	}
	g.next = start.Add(g.interval)
	g.mu.Unlock()

	wait := time.Until(start)
	if wait <= 0 {
		return release, nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	case <-t.C:
		return release, nil
	}
}

// rateLimitTracker keeps the last quota information returned by the API.
type rateLimitTracker struct {
	mu   sync.RWMutex
	info model.RateLimitInfo
}

func (r *rateLimitTracker) update(h http.Header) (model.RateLimitInfo, bool) {
	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return model.RateLimitInfo{}, false
	}

	info := model.RateLimitInfo{
		Remaining: remaining,
		UpdatedAt: time.Now().UTC(),
	}
	if limit, err := strconv.Atoi(h.Get("X-RateLimit-Limit")); err == nil {
		info.Limit = limit
	}
	if reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		info.ResetAt = time.Unix(reset, 0).UTC()
	}

	r.mu.Lock()
	r.info = info
	r.mu.Unlock()

	return info, true
}

func (r *rateLimitTracker) get() model.RateLimitInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}
