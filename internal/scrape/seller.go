package scrape

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dealhound/dealhound/internal/model"
)

var activeSinceRe = regexp.MustCompile(`Aktiv seit\s+(\d{2}\.\d{2}\.\d{4})`)

// FetchSellerInfo loads the ad page and extracts the seller's name,
// account type, and account age. A page without a recognizable seller
// block yields (nil, nil); the caller treats the seller as unknown.
func (c *Client) FetchSellerInfo(ctx context.Context, adURL string) (*model.SellerInfo, error) {
	doc, err := c.fetchDocument(ctx, adURL)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(doc.Find(".text-body-regular-strong.text-force-linebreak.userprofile-vip a").First().Text())
	if name == "" {
		return nil, nil
	}

	info := &model.SellerInfo{
		Name:            name,
		AccountType:     model.AccountTypeUnknown,
		ActiveSinceDays: -1,
	}

	doc.Find(".userprofile-vip-details-text").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		switch {
		case strings.Contains(text, "Gewerblicher"):
			info.AccountType = model.AccountTypeCommercial
		case strings.Contains(text, "Privater"):
			info.AccountType = model.AccountTypePrivate
		}

		if m := activeSinceRe.FindStringSubmatch(text); m != nil {
			if since, err := time.Parse("02.01.2006", m[1]); err == nil {
				info.ActiveSinceDays = int(time.Since(since).Hours() / 24)
			}
		}
	})

	return info, nil
}
