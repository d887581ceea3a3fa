// Package notify delivers deal notifications through the Telegram Bot
// API.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dealhound/dealhound/internal/common"
	"github.com/dealhound/dealhound/internal/service"
)

const defaultAPIBase = "https://api.telegram.org"

// Config holds the Telegram credentials.
type Config struct {
	Token   string
	ChatID  string
	BaseURL string
}

// TelegramNotifier implements service.Notifier.
type TelegramNotifier struct {
	httpClient *http.Client
	token      string
	chatID     string
	baseURL    string
}

// NewTelegramNotifier creates a notifier for the configured bot and chat.
func NewTelegramNotifier(cfg Config) (*TelegramNotifier, error) {
	if cfg.Token == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("%w: telegram token and chat id", common.ErrMissingConfig)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAPIBase
	}

	return &TelegramNotifier{
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type sendMessageRequest struct {
	ReplyMarkup           *replyMarkup `json:"reply_markup,omitempty"`
	ChatID                string       `json:"chat_id"`
	Text                  string       `json:"text"`
	ParseMode             string       `json:"parse_mode"`
	DisableWebPagePreview bool         `json:"disable_web_page_preview"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// Send delivers one HTML message with optional inline action links.
// The returned bool reports delivery; errors are informational and must
// not abort the caller's cycle.
func (n *TelegramNotifier) Send(ctx context.Context, message string, links []service.ActionLink, _ bool) (bool, error) {
	payload := sendMessageRequest{
		ChatID:    n.chatID,
		Text:      message,
		ParseMode: "HTML",
	}
	if len(links) > 0 {
		row := make([]inlineButton, len(links))
		for i, l := range links {
			row[i] = inlineButton{Text: l.Text, URL: l.URL}
		}
		payload.ReplyMarkup = &replyMarkup{InlineKeyboard: [][]inlineButton{row}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal message: %w", err)
	}

	u := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(string(body)))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrNotificationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("%w: status %d: %s", common.ErrNotificationFailed, resp.StatusCode, detail)
	}

	return true, nil
}
