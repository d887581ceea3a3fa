// Package config provides configuration loading and path utilities for
// the application.
package config

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the full application configuration assembled from the
// config file, DEALHOUND_-prefixed environment variables, and flags.
type Config struct {
	Telegram TelegramConfig
	LLM      LLMConfig
	Market   MarketConfig
	Filter   FilterConfig
	Score    ScoreConfig
	Poll     PollConfig
	Storage  StorageConfig
	Search   SearchConfig
	Logging  LoggingConfig
}

// TelegramConfig holds notification delivery settings.
type TelegramConfig struct {
	Token  string
	ChatID string
}

// LLMConfig holds the classification backend settings.
type LLMConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// MarketConfig holds sold-price estimation settings.
type MarketConfig struct {
	BaseURL       string
	CacheFile     string
	CacheTTL      time.Duration
	SchemaVersion string
}

// FilterConfig holds the pipeline filter rule set.
type FilterConfig struct {
	MinPrice           decimal.Decimal
	MaxPrice           decimal.Decimal
	PlaceholderPrice   decimal.Decimal
	MissingPricePolicy string
	Denylist           []string
	Whitelist          []string
	MinAccountAgeDays  int
	FetchSellerInfo    bool
}

// ScoreConfig holds scoring and gate thresholds.
type ScoreConfig struct {
	BoosterTerms []string
	MinMarginEur decimal.Decimal
	MinScore     int
}

// PollConfig holds the watch-loop cadence. QuietHours is a range like
// "23-7" (local time) during which QuietInterval applies.
type PollConfig struct {
	Interval      time.Duration
	QuietInterval time.Duration
	QuietHours    string
	Jitter        time.Duration
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	DBPath string
}

// SearchConfig holds the saved-search URLs to poll.
type SearchConfig struct {
	URLs []string
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// setDefaults registers the default value for every key so a bare
// config file still yields a runnable setup.
func setDefaults() {
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 800)

	viper.SetDefault("market.base_url", "https://www.ebay.de")
	viper.SetDefault("market.cache_file", "~/.config/dealhound/price_cache.json")
	viper.SetDefault("market.cache_ttl", "24h")
	viper.SetDefault("market.schema_version", "v1")

	viper.SetDefault("filter.min_price", 20.0)
	viper.SetDefault("filter.max_price", 2000.0)
	viper.SetDefault("filter.placeholder_price", 100.0)
	viper.SetDefault("filter.missing_price_policy", "placeholder")
	viper.SetDefault("filter.min_account_age_days", 30)
	viper.SetDefault("filter.fetch_seller_info", false)

	viper.SetDefault("score.min_margin_eur", 40.0)
	viper.SetDefault("score.min_score", 75)

	viper.SetDefault("poll.interval", "90s")
	viper.SetDefault("poll.quiet_interval", "15m")
	viper.SetDefault("poll.quiet_hours", "23-7")
	viper.SetDefault("poll.jitter", "10s")

	viper.SetDefault("storage.db_path", "~/.local/share/dealhound/dealhound.db")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// Load assembles the typed configuration from Viper's current state.
// Presence checks live with the components that need the values, so a
// partial config still serves commands that do not use the rest.
func Load() Config {
	setDefaults()

	return Config{
		Telegram: TelegramConfig{
			Token:  viper.GetString("telegram.token"),
			ChatID: viper.GetString("telegram.chat_id"),
		},
		LLM: LLMConfig{
			APIKey:      viper.GetString("llm.api_key"),
			Model:       viper.GetString("llm.model"),
			BaseURL:     viper.GetString("llm.base_url"),
			Temperature: viper.GetFloat64("llm.temperature"),
			MaxTokens:   viper.GetInt("llm.max_tokens"),
		},
		Market: MarketConfig{
			BaseURL:       viper.GetString("market.base_url"),
			CacheFile:     ExpandPath(viper.GetString("market.cache_file")),
			CacheTTL:      viper.GetDuration("market.cache_ttl"),
			SchemaVersion: viper.GetString("market.schema_version"),
		},
		Filter: FilterConfig{
			MinPrice:           decimal.NewFromFloat(viper.GetFloat64("filter.min_price")),
			MaxPrice:           decimal.NewFromFloat(viper.GetFloat64("filter.max_price")),
			PlaceholderPrice:   decimal.NewFromFloat(viper.GetFloat64("filter.placeholder_price")),
			MissingPricePolicy: viper.GetString("filter.missing_price_policy"),
			Denylist:           viper.GetStringSlice("filter.denylist"),
			Whitelist:          viper.GetStringSlice("filter.whitelist"),
			MinAccountAgeDays:  viper.GetInt("filter.min_account_age_days"),
			FetchSellerInfo:    viper.GetBool("filter.fetch_seller_info"),
		},
		Score: ScoreConfig{
			BoosterTerms: viper.GetStringSlice("score.booster_terms"),
			MinMarginEur: decimal.NewFromFloat(viper.GetFloat64("score.min_margin_eur")),
			MinScore:     viper.GetInt("score.min_score"),
		},
		Poll: PollConfig{
			Interval:      viper.GetDuration("poll.interval"),
			QuietInterval: viper.GetDuration("poll.quiet_interval"),
			QuietHours:    viper.GetString("poll.quiet_hours"),
			Jitter:        viper.GetDuration("poll.jitter"),
		},
		Storage: StorageConfig{
			DBPath: ExpandPath(viper.GetString("storage.db_path")),
		},
		Search: SearchConfig{
			URLs: viper.GetStringSlice("search.urls"),
		},
		Logging: LoggingConfig{
			Level:  viper.GetString("logging.level"),
			Format: viper.GetString("logging.format"),
		},
	}
}
