// Package scrape implements the listing-source adapters: fetching
// search result pages and seller profiles from a Kleinanzeigen-style
// site. The core consumes it only through the service interfaces.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealhound/dealhound/internal/common"
	"github.com/dealhound/dealhound/internal/model"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// Config configures the listings client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches listings and seller profiles. It implements
// service.ListingSource and service.SellerSource.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a scraping client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.kleinanzeigen.de"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
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

// FetchListings retrieves and parses all ads on a search results page.
// Items missing an id or title are skipped; parse gaps in optional
// fields are tolerated.
func (c *Client) FetchListings(ctx context.Context, searchURL string) ([]model.Listing, error) {
	doc, err := c.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var listings []model.Listing
	doc.Find("article.aditem").Each(func(_ int, item *goquery.Selection) {
		id, ok := item.Attr("data-adid")
		if !ok || id == "" {
			return
		}

		titleLink := item.Find(".aditem-main--middle h2 a").First()
		title := strings.TrimSpace(titleLink.Text())
		if title == "" {
			return
		}

		link, _ := titleLink.Attr("href")
		if strings.HasPrefix(link, "/") {
			link = c.baseURL + link
		}

		listings = append(listings, model.Listing{
			ID:          id,
			Title:       title,
			Description: strings.TrimSpace(item.Find(".aditem-main--middle--description").First().Text()),
			RawPrice:    strings.TrimSpace(item.Find(".aditem-main--middle--price-shipping--price").First().Text()),
			Link:        link,
			PostedAt:    parsePostedAt(item.Find(".aditem-main--top--right").First().Text()),
		})
	})

	return listings, nil
}

// parsePostedAt handles the site's relative date labels. Absolute dates
// and unparseable labels fall back to the zero time; the pipeline only
// uses PostedAt informationally.
func parsePostedAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	now := time.Now()

	switch {
	case strings.HasPrefix(raw, "Heute"):
		if t, err := time.Parse("15:04", strings.TrimSpace(strings.TrimPrefix(raw, "Heute,"))); err == nil {
			return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		}
		return now
	case strings.HasPrefix(raw, "Gestern"):
		yesterday := now.AddDate(0, 0, -1)
		if t, err := time.Parse("15:04", strings.TrimSpace(strings.TrimPrefix(raw, "Gestern,"))); err == nil {
			return time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		}
		return yesterday
	default:
		if t, err := time.Parse("02.01.2006", raw); err == nil {
			return t
		}
		return time.Time{}
	}
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, common.Transient(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, common.Transient(fmt.Errorf("page returned status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	return doc, nil
}
