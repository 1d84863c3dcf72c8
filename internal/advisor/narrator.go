package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cashflow-calm/internal/cache"
)

// Narrator rewrites structured facts into a narrative payload. Implementations
// may call out to an external generator; they must not alter any numbers.
type Narrator interface {
	Narrate(ctx context.Context, facts any) (json.RawMessage, error)
}

// NarratorFunc adapts a function to the Narrator interface.
type NarratorFunc func(ctx context.Context, facts any) (json.RawMessage, error)

func (f NarratorFunc) Narrate(ctx context.Context, facts any) (json.RawMessage, error) {
	return f(ctx, facts)
}

// CachedNarrator memoizes an inner Narrator through the cache store. The key
// is a fingerprint of the model identifier and the facts, so identical inputs
// reuse the stored narrative until it expires.
type CachedNarrator struct {
	inner  Narrator
	store  *cache.Store
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedNarrator wraps inner with TTL memoization. The model string names
// the generator and participates in the cache key.
func NewCachedNarrator(inner Narrator, store *cache.Store, model string, ttl time.Duration) *CachedNarrator {
	return &CachedNarrator{
		inner:  inner,
		store:  store,
		model:  model,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// WithLogger overrides the logger.
func (n *CachedNarrator) WithLogger(logger *slog.Logger) *CachedNarrator {
	n.logger = logger
	return n
}

func (n *CachedNarrator) Narrate(ctx context.Context, facts any) (json.RawMessage, error) {
	key, err := cache.Fingerprint(n.model, facts)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint narration input: %w", err)
	}

	var cached json.RawMessage
	hit, err := n.store.Get(ctx, key, &cached)
	if err != nil {
		// A broken cache should degrade the latency, not the feature.
		n.logger.Warn("cache lookup failed, narrating without it", "error", err)
	} else if hit {
		return cached, nil
	}

	narrative, err := n.inner.Narrate(ctx, facts)
	if err != nil {
		return nil, err
	}

	if err := n.store.Set(ctx, key, n.model, narrative, n.ttl); err != nil {
		n.logger.Warn("failed to store narration in cache", "error", err)
	}
	return narrative, nil
}

// TemplateNarrator is the built-in generator: it renders the advice into a
// short deterministic summary without any external dependency.
type TemplateNarrator struct{}

func (TemplateNarrator) Narrate(_ context.Context, facts any) (json.RawMessage, error) {
	advice, ok := facts.(*Advice)
	if !ok {
		return nil, fmt.Errorf("template narrator expects *Advice, got %T", facts)
	}

	var headline string
	switch advice.State {
	case StateActionNeeded:
		headline = "Your cash position needs attention now."
	case StateWatchClosely:
		headline = "Your cash position is workable but worth watching."
	default:
		headline = "Your cash position looks stable."
	}

	summary := headline
	if len(advice.Drivers) > 0 {
		summary += " " + advice.Drivers[0]
	}
	if len(advice.Actions) > 0 {
		summary += " First step: " + advice.Actions[0].Title + "."
	}

	return json.Marshal(map[string]string{
		"headline": headline,
		"summary":  summary,
	})
}
