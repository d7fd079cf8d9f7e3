package tools

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedInvoker bounds the rate of search-type calls against the
// shared backends. Note is never throttled.
type RateLimitedInvoker struct {
	next      Invoker
	retrieval *rate.Limiter
	webSearch *rate.Limiter
}

// NewRateLimitedInvoker wraps next with per-backend limiters. A
// non-positive rps disables limiting for that backend.
func NewRateLimitedInvoker(next Invoker, retrievalRPS, webSearchRPS float64) *RateLimitedInvoker {
	r := &RateLimitedInvoker{next: next}
	if retrievalRPS > 0 {
		r.retrieval = rate.NewLimiter(rate.Limit(retrievalRPS), 1)
	}
	if webSearchRPS > 0 {
		r.webSearch = rate.NewLimiter(rate.Limit(webSearchRPS), 1)
	}
	return r
}

func (r *RateLimitedInvoker) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if r.retrieval != nil {
		if err := r.retrieval.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return r.next.Retrieve(ctx, query, topK)
}

func (r *RateLimitedInvoker) WebSearch(ctx context.Context, query string) ([]Document, error) {
	if r.webSearch != nil {
		if err := r.webSearch.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return r.next.WebSearch(ctx, query)
}

func (r *RateLimitedInvoker) Note(ctx context.Context, text string) error {
	return r.next.Note(ctx, text)
}
