// Package market implements the market-price estimation engine: it
// fetches historical sold prices for a search query and condenses them
// into a robust estimate.
package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dealhound/dealhound/internal/common"
)

const defaultSoldSearchBase = "https://www.ebay.de"

// SourceConfig configures the sold-listings source.
type SourceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SoldListingsSource fetches the sold/completed search results page for
// a query. It implements service.PriceSource.
type SoldListingsSource struct {
	httpClient *http.Client
	baseURL    string
}

// NewSoldListingsSource creates a sold-listings source.
func NewSoldListingsSource(cfg SourceConfig) *SoldListingsSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSoldSearchBase
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &SoldListingsSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// FetchSoldPrices returns the raw HTML of the sold-listings search for
// query. Transport failures and non-200 responses are transient errors.
func (s *SoldListingsSource) FetchSoldPrices(ctx context.Context, query string) (string, error) {
	u := fmt.Sprintf("%s/sch/i.html?_nkw=%s&LH_Sold=1&LH_Complete=1&_ipg=60",
		s.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", common.Transient(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", common.Transient(fmt.Errorf("sold search returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", common.Transient(err)
	}

	return string(body), nil
}

// SoldSearchURL builds the public sold-listings search URL for a query,
// used as an action link in notifications.
func SoldSearchURL(query string) string {
	return fmt.Sprintf("%s/sch/i.html?_nkw=%s&LH_Sold=1&LH_Complete=1",
		defaultSoldSearchBase, url.QueryEscape(query))
}
