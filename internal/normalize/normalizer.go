// Package normalize converts raw listing titles into canonical search
// queries, delegating semantic extraction to the classification
// collaborator and caching its output.
package normalize

import (
	"context"
	"log/slog"

	"github.com/dealhound/dealhound/internal/cache"
	"github.com/dealhound/dealhound/internal/model"
	"github.com/dealhound/dealhound/internal/service"
)

// Normalizer resolves listing titles to search queries through a cache
// keyed by normalized title, batching all misses into a single
// collaborator call.
type Normalizer struct {
	classifier service.Classifier
	cache      *cache.Cache[string]
}

// New creates a normalizer using the given classifier and cache.
func New(classifier service.Classifier, store *cache.Cache[string]) *Normalizer {
	return &Normalizer{classifier: classifier, cache: store}
}

// Normalize returns a listing-id to search-query mapping. Listings the
// collaborator produces no usable query for are absent from the result.
// A failed batch call degrades to the cache-hit subset; it never fails
// past this component.
func (n *Normalizer) Normalize(ctx context.Context, listings []model.Listing) map[string]string {
	result := make(map[string]string, len(listings))

	var misses []service.NormalizeItem
	keyByID := make(map[string]string)

	for _, l := range listings {
		key := l.CacheKey()
		if key == "" {
			continue
		}
		if query, ok := n.cache.Get(key); ok {
			result[l.ID] = query
			continue
		}
		misses = append(misses, service.NormalizeItem{ID: l.ID, Title: l.Title})
		keyByID[l.ID] = key
	}

	if len(misses) == 0 {
		return result
	}

	queries, err := n.classifier.NormalizeQueries(ctx, misses)
	if err != nil {
		slog.Warn("Query normalization batch failed, returning cached subset",
			"misses", len(misses),
			"cached", len(result),
			"error", err)
		return result
	}

	for _, q := range queries {
		key, ok := keyByID[q.ID]
		if !ok {
			// Response id that matches no input: ignored.
			continue
		}
		n.cache.Put(key, q.Query)
		result[q.ID] = q.Query
	}

	return result
}
