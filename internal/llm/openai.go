package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dealhound/dealhound/internal/common"
	"github.com/dealhound/dealhound/internal/model"
	"github.com/dealhound/dealhound/internal/service"
)

const defaultBaseURL = "https://api.openai.com"

// openAIClient implements service.Classifier against the OpenAI API.
type openAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewOpenAIClient creates a new OpenAI-backed classifier.
func NewOpenAIClient(cfg Config) (service.Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key", common.ErrMissingConfig)
	}

	m := cfg.Model
	if m == "" {
		m = "gpt-4o-mini"
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 800
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &openAIClient{
		apiKey:      cfg.APIKey,
		model:       m,
		baseURL:     baseURL,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// NormalizeQueries asks the model for one canonical resale search query
// per listing title. Items the model returns no usable query for are
// simply missing from the result.
func (c *openAIClient) NormalizeQueries(ctx context.Context, items []service.NormalizeItem) ([]service.NormalizedQuery, error) {
	if len(items) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items: %w", err)
	}

	system := "You are a professional reseller. You turn classified-ad titles into short, canonical product search queries for a sold-listings search: brand, model, key variant, nothing else. You MUST respond with ONLY a valid JSON array. Start your response directly with [ and end with ]."
	prompt := fmt.Sprintf(`For each item below, produce the search query. Respond as a JSON array of {"id": string, "query": string}. Omit an item entirely if no meaningful product query can be formed.

Items:
%s`, payload)

	content, err := c.complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}

	var queries []service.NormalizedQuery
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &queries); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	out := make([]service.NormalizedQuery, 0, len(queries))
	for _, q := range queries {
		if q.ID == "" || strings.TrimSpace(q.Query) == "" {
			continue
		}
		out = append(out, service.NormalizedQuery{ID: q.ID, Query: strings.TrimSpace(q.Query)})
	}
	return out, nil
}

// classifyResponseItem is the wire shape of one classification result.
type classifyResponseItem struct {
	ID            string `json:"id"`
	Liquidity     string `json:"liquidity"`
	Bundle        bool   `json:"bundle"`
	Obsolete      bool   `json:"obsolete"`
	AccessoryOnly bool   `json:"accessory_only"`
}

// ClassifyListings tags each listing with resale flags. Responses that
// fail boundary validation are dropped with a log line, not defaulted.
func (c *openAIClient) ClassifyListings(ctx context.Context, items []service.ClassifyItem) ([]service.ListingFlags, error) {
	if len(items) == 0 {
		return nil, nil
	}

	type wireItem struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		OfferPrice  string `json:"offer_price_eur"`
		MarketPrice string `json:"market_price_eur"`
	}
	wire := make([]wireItem, len(items))
	for i, it := range items {
		wire[i] = wireItem{
			ID:          it.ID,
			Title:       it.Title,
			Description: it.Description,
			OfferPrice:  it.OfferPrice.StringFixed(2),
			MarketPrice: it.MarketPrice.StringFixed(2),
		}
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items: %w", err)
	}

	system := "You are a professional reseller evaluating classified ads objectively and realistically. You MUST respond with ONLY a valid JSON array. Start your response directly with [ and end with ]."
	prompt := fmt.Sprintf(`For each ad below, judge the resale characteristics. Respond as a JSON array of:
{"id": string, "bundle": bool, "obsolete": bool, "accessory_only": bool, "liquidity": "HIGH"|"MEDIUM"|"LOW"}

- bundle: the ad sells multiple distinct sellable items together
- obsolete: the product generation is outdated enough to hurt resale
- accessory_only: the ad sells only accessories, not the product itself
- liquidity: how fast this item class typically resells

Ads:
%s`, payload)

	content, err := c.complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}

	var raw []classifyResponseItem
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	out := make([]service.ListingFlags, 0, len(raw))
	for _, r := range raw {
		if r.ID == "" {
			continue
		}
		liquidity, err := model.ParseLiquidity(r.Liquidity)
		if err != nil {
			slog.Warn("Dropping classification with invalid flags", "id", r.ID, "error", err)
			continue
		}
		out = append(out, service.ListingFlags{
			ID: r.ID,
			Flags: model.ClassificationFlags{
				Bundle:        r.Bundle,
				Obsolete:      r.Obsolete,
				AccessoryOnly: r.AccessoryOnly,
				Liquidity:     liquidity,
			},
		})
	}
	return out, nil
}

// complete runs one chat completion and returns the message content.
func (c *openAIClient) complete(ctx context.Context, system, prompt string) (string, error) {
	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &common.RetryableError{
			Err:       fmt.Errorf("%w: %v", common.ErrClassificationUnavailable, err),
			Retryable: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %s", common.ErrRateLimit, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return "", &common.RetryableError{
			Err:       fmt.Errorf("%w: status %d: %s", common.ErrClassificationUnavailable, resp.StatusCode, string(body)),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", common.ErrMalformedResponse)
	}

	return response.Choices[0].Message.Content, nil
}

// chatResponse is the OpenAI chat completion response structure.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
}
