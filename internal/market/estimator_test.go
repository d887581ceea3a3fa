package market

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealhound/dealhound/internal/cache"
	"github.com/dealhound/dealhound/internal/common"
	"github.com/dealhound/dealhound/internal/model"
)

// fakeSource serves a canned document and counts fetches.
type fakeSource struct {
	doc   string
	err   error
	calls int
}

func (f *fakeSource) FetchSoldPrices(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.doc, nil
}

func soldDoc(prices ...string) string {
	var b strings.Builder
	for _, p := range prices {
		fmt.Fprintf(&b, `<span class="s-item__price">EUR %s</span>`, p)
	}
	return b.String()
}

func newTestEstimator(t *testing.T, source *fakeSource) (*Estimator, *cache.Cache[model.PriceEstimate]) {
	t.Helper()
	store := cache.New[model.PriceEstimate](filepath.Join(t.TempDir(), "market.json"), time.Hour, "v1")
	return NewEstimator(source, store, DefaultConfig()), store
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEstimateHappyPath(t *testing.T) {
	source := &fakeSource{doc: soldDoc("100,00", "105,00", "110,00", "200,00", "205,00")}
	est, _ := newTestEstimator(t, source)

	got, err := est.Estimate(context.Background(), "iPhone 13", d("100"))
	require.NoError(t, err)
	assert.True(t, got.MedianPrice.Equal(d("105")), "median was %s", got.MedianPrice)
	assert.Equal(t, 3, got.SampleCount)
	assert.True(t, got.CorridorLow.Equal(d("50")))
	assert.True(t, got.CorridorHigh.Equal(d("300")))
}

func TestEstimateUsesCache(t *testing.T) {
	source := &fakeSource{doc: soldDoc("100,00", "105,00", "110,00")}
	est, _ := newTestEstimator(t, source)

	_, err := est.Estimate(context.Background(), "iPhone 13", d("100"))
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	// Differently-spaced query normalizes to the same key.
	_, err = est.Estimate(context.Background(), "  iphone   13 ", d("100"))
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "cache hit must not fetch")
}

func TestEstimateEmptyQuery(t *testing.T) {
	source := &fakeSource{doc: soldDoc("100,00")}
	est, _ := newTestEstimator(t, source)

	_, err := est.Estimate(context.Background(), "   ", d("100"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInsufficientData)
	assert.Equal(t, 0, source.calls, "empty query must not fetch")
}

func TestEstimateFetchFailure(t *testing.T) {
	source := &fakeSource{err: common.Transient(fmt.Errorf("connection refused"))}
	est, _ := newTestEstimator(t, source)

	_, err := est.Estimate(context.Background(), "iphone", d("100"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransientFetch)
}

func TestEstimateInsufficientSamples(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "no samples at all", doc: "<html>nothing here</html>"},
		{name: "two in corridor", doc: soldDoc("100,00", "110,00")},
		{name: "three samples but only noise", doc: soldDoc("1,50", "2,00", "4,99")},
		{name: "samples outside corridor", doc: soldDoc("10,00", "20,00", "900,00", "950,00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, _ := newTestEstimator(t, &fakeSource{doc: tt.doc})
			_, err := est.Estimate(context.Background(), "iphone", d("100"))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInsufficientData)
		})
	}
}

func TestEstimateCorridorBoundsInclusive(t *testing.T) {
	// Offer 100: corridor exactly [50, 300]. Samples sit on both edges.
	source := &fakeSource{doc: soldDoc("50,00", "50,00", "300,00")}
	est, _ := newTestEstimator(t, source)

	got, err := est.Estimate(context.Background(), "iphone", d("100"))
	require.NoError(t, err)
	assert.Equal(t, 2, got.SampleCount, "edge samples belong to the corridor")
}

func TestEstimateSanityGuardForcesRefetch(t *testing.T) {
	source := &fakeSource{doc: soldDoc("100,00", "105,00", "110,00")}
	store := cache.New[model.PriceEstimate](filepath.Join(t.TempDir(), "market.json"), time.Hour, "v1")
	est := NewEstimator(source, store, DefaultConfig())

	// Seed an implausibly low cached estimate.
	store.Put("iphone", model.PriceEstimate{MedianPrice: d("3"), SampleCount: 5})

	got, err := est.Estimate(context.Background(), "iphone", d("100"))
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "implausible cached value must refetch")
	assert.True(t, got.MedianPrice.Equal(d("105")))
}

func TestEstimateSchemaVersionMismatchRefetches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.json")

	oldStore := cache.New[model.PriceEstimate](path, time.Hour, "v1")
	oldStore.Put("iphone", model.PriceEstimate{MedianPrice: d("150"), SampleCount: 4})

	source := &fakeSource{doc: soldDoc("100,00", "105,00", "110,00")}
	newStore := cache.New[model.PriceEstimate](path, time.Hour, "v2")
	est := NewEstimator(source, newStore, DefaultConfig())

	got, err := est.Estimate(context.Background(), "iphone", d("100"))
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.True(t, got.MedianPrice.Equal(d("105")))
}

func TestParseSamplesGermanFormat(t *testing.T) {
	est, _ := newTestEstimator(t, &fakeSource{})
	samples := est.parseSamples("EUR 1.234,56 and EUR 99,90 and EUR 4,99 and EUR5,01")

	require.Len(t, samples, 3)
	assert.True(t, samples[0].Equal(d("1234.56")))
	assert.True(t, samples[1].Equal(d("99.90")))
	assert.True(t, samples[2].Equal(d("5.01")))
}

func TestDominantCluster(t *testing.T) {
	w50 := decimal.NewFromInt(50)

	t.Run("majority bucket wins without merge", func(t *testing.T) {
		samples := []decimal.Decimal{d("100"), d("105"), d("110"), d("200"), d("205")}
		cluster := dominantCluster(samples, w50)
		require.Len(t, cluster, 3)
		assert.True(t, median(cluster).Equal(d("105")))
	})

	t.Run("adjacent bucket merged across edge", func(t *testing.T) {
		// 95 falls one bucket below 100-110 but within one width.
		samples := []decimal.Decimal{d("95"), d("100"), d("105"), d("110"), d("400")}
		cluster := dominantCluster(samples, w50)
		assert.Len(t, cluster, 4)
	})

	t.Run("tie prefers lower bucket", func(t *testing.T) {
		samples := []decimal.Decimal{d("100"), d("110"), d("400"), d("410")}
		cluster := dominantCluster(samples, w50)
		require.Len(t, cluster, 2)
		assert.True(t, median(cluster).Equal(d("105")))
	})
}

func TestMedian(t *testing.T) {
	assert.True(t, median([]decimal.Decimal{d("3"), d("1"), d("2")}).Equal(d("2")))
	assert.True(t, median([]decimal.Decimal{d("1"), d("2"), d("3"), d("10")}).Equal(d("2.5")))
	assert.True(t, median([]decimal.Decimal{d("7")}).Equal(d("7")))
}

func TestBucketWidthTiers(t *testing.T) {
	assert.True(t, bucketWidth(d("20")).Equal(d("5")))
	assert.True(t, bucketWidth(d("100")).Equal(d("20")))
	assert.True(t, bucketWidth(d("500")).Equal(d("50")))
	assert.True(t, bucketWidth(d("2500")).Equal(d("100")))
}
