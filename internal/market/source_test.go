package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealhound/dealhound/internal/common"
)

func TestFetchSoldPrices(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		assert.Contains(t, r.Header.Get("Accept-Language"), "de-DE")
		_, _ = w.Write([]byte("<html>EUR 99,00</html>"))
	}))
	defer server.Close()

	source := NewSoldListingsSource(SourceConfig{BaseURL: server.URL})
	doc, err := source.FetchSoldPrices(context.Background(), "iphone 13 pro")
	require.NoError(t, err)
	assert.Contains(t, doc, "EUR 99,00")

	assert.Equal(t, "iphone 13 pro", gotQuery["_nkw"][0])
	assert.Equal(t, "1", gotQuery["LH_Sold"][0])
	assert.Equal(t, "1", gotQuery["LH_Complete"][0])
}

func TestFetchSoldPricesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewSoldListingsSource(SourceConfig{BaseURL: server.URL})
	_, err := source.FetchSoldPrices(context.Background(), "iphone")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransientFetch)
	assert.True(t, common.IsRetryable(err))
}

func TestFetchSoldPricesTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close() // refuse connections

	source := NewSoldListingsSource(SourceConfig{BaseURL: server.URL})
	_, err := source.FetchSoldPrices(context.Background(), "iphone")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransientFetch)
}

func TestSoldSearchURL(t *testing.T) {
	u := SoldSearchURL("iphone 13")
	assert.Contains(t, u, "ebay.de/sch/i.html")
	assert.Contains(t, u, "LH_Sold=1")
	assert.Contains(t, u, "iphone+13")
}
