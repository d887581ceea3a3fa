package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealhound/dealhound/internal/model"
	"github.com/dealhound/dealhound/internal/service"
)

// mockListingSource serves canned listings per search URL.
type mockListingSource struct {
	pages map[string][]model.Listing
	err   error
}

func (m *mockListingSource) FetchListings(_ context.Context, searchURL string) ([]model.Listing, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.pages[searchURL], nil
}

// mockSeenStore is an in-memory seen store.
type mockSeenStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMockSeenStore(ids ...string) *mockSeenStore {
	s := &mockSeenStore{seen: make(map[string]bool)}
	for _, id := range ids {
		s.seen[id] = true
	}
	return s
}

func (m *mockSeenStore) Has(_ context.Context, listingID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[listingID], nil
}

func (m *mockSeenStore) Record(_ context.Context, listing model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[listing.ID] = true
	return nil
}

func (m *mockSeenStore) Purge(_ context.Context, _ time.Duration) (int64, error) { return 0, nil }
func (m *mockSeenStore) Close() error                                            { return nil }

// mockNormalizer maps listing ids to fixed queries.
type mockNormalizer struct {
	queries map[string]string
}

func (m *mockNormalizer) Normalize(_ context.Context, listings []model.Listing) map[string]string {
	out := make(map[string]string)
	for _, l := range listings {
		if q, ok := m.queries[l.ID]; ok {
			out[l.ID] = q
		}
	}
	return out
}

// mockEstimator returns a fixed estimate per query, or an error for
// queries in failing.
type mockEstimator struct {
	estimates map[string]model.PriceEstimate
	failing   map[string]error
	calls     int
}

func (m *mockEstimator) Estimate(_ context.Context, query string, _ decimal.Decimal) (*model.PriceEstimate, error) {
	m.calls++
	if err, ok := m.failing[query]; ok {
		return nil, err
	}
	est, ok := m.estimates[query]
	if !ok {
		est = model.PriceEstimate{MedianPrice: decimal.NewFromInt(200), SampleCount: 5}
	}
	return &est, nil
}

// mockClassifier returns canned flags per listing id.
type mockClassifier struct {
	flags map[string]model.ClassificationFlags
	err   error
	calls int
}

func (m *mockClassifier) NormalizeQueries(_ context.Context, _ []service.NormalizeItem) ([]service.NormalizedQuery, error) {
	return nil, nil
}

func (m *mockClassifier) ClassifyListings(_ context.Context, items []service.ClassifyItem) ([]service.ListingFlags, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]service.ListingFlags, 0, len(items))
	for _, it := range items {
		f, ok := m.flags[it.ID]
		if !ok {
			continue
		}
		out = append(out, service.ListingFlags{ID: it.ID, Flags: f})
	}
	return out, nil
}

// sentMessage records one delivered notification.
type sentMessage struct {
	message  string
	links    []service.ActionLink
	priority bool
}

// mockNotifier records sends.
type mockNotifier struct {
	mu        sync.Mutex
	sent      []sentMessage
	delivered bool
	err       error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{delivered: true}
}

func (m *mockNotifier) Send(_ context.Context, message string, links []service.ActionLink, priority bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.sent = append(m.sent, sentMessage{message: message, links: links, priority: priority})
	return m.delivered, nil
}
