package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	FeedPageURL    string        `mapstructure:"feed_page_url"`
	FeedStopWindow int           `mapstructure:"feed_stop_window"`
	FeedPageBatch  int           `mapstructure:"feed_page_batch"`
	FeedThrottleMs int           `mapstructure:"feed_throttle_ms"`
	FeedThrottle   time.Duration `mapstructure:"-"`

	LookupBatch          int           `mapstructure:"lookup_batch"`
	HTTPTimeoutSeconds   int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout          time.Duration `mapstructure:"-"`
	IndexIntervalSeconds int64         `mapstructure:"index_interval"`
	IndexInterval        time.Duration `mapstructure:"-"`

	QueuesFile        string `mapstructure:"queues_file"`
	FetchQueueID      string `mapstructure:"fetch_queue_id"`
	NotifyQueueID     string `mapstructure:"notify_queue_id"`
	WorkerPollMax     int    `mapstructure:"worker_poll_max"`
	WorkerConcurrency int    `mapstructure:"worker_concurrency"`

	StorageType string `mapstructure:"storage_type"`
	BBoltPath   string `mapstructure:"bbolt_path"`

	TelegramAPIKey            string        `mapstructure:"telegram_api_key"`
	TelegramChatID            string        `mapstructure:"telegram_chat_id"`
	TelegramDebugChatID       string        `mapstructure:"telegram_debug_chat_id"`
	TelegramSilentMode        bool          `mapstructure:"telegram_silent_mode"`
	TelegramRetryMax          int           `mapstructure:"telegram_retry_max"`
	TelegramRetrySleepSeconds int64         `mapstructure:"telegram_retry_sleep_seconds"`
	TelegramRetrySleep        time.Duration `mapstructure:"-"`

	CloudflareAccountID         string `mapstructure:"cloudflare_account_id"`
	CloudflareImagesAccountHash string `mapstructure:"cloudflare_images_account_hash"`
	CloudflareImagesAPIToken    string `mapstructure:"cloudflare_images_api_token"`

	SNSAlertTopicARN string `mapstructure:"sns_alert_topic_arn"`
	SNSRegion        string `mapstructure:"sns_region"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "utn-frsn-news")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("feed_page_url", "https://www.frsn.utn.edu.ar/?paged=%d&page_id=80")
	v.SetDefault("feed_stop_window", 5)
	v.SetDefault("feed_page_batch", 5)
	v.SetDefault("feed_throttle_ms", 500)
	v.SetDefault("lookup_batch", 100)
	v.SetDefault("http_timeout_seconds", 60)
	v.SetDefault("index_interval", 900) // seconds
	v.SetDefault("queues_file", "./configs/queues.yaml")
	v.SetDefault("fetch_queue_id", "fetch")
	v.SetDefault("notify_queue_id", "notify")
	v.SetDefault("worker_poll_max", 10)
	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/news.db")
	v.SetDefault("telegram_retry_max", 5)
	v.SetDefault("telegram_retry_sleep_seconds", 5)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if !strings.Contains(cfg.FeedPageURL, "%d") {
		return nil, fmt.Errorf("feed_page_url must contain a %%d page placeholder")
	}
	if cfg.FeedStopWindow < 0 {
		return nil, fmt.Errorf("invalid feed_stop_window (must not be negative)")
	}
	if cfg.FeedPageBatch <= 0 {
		return nil, fmt.Errorf("invalid feed_page_batch (must be positive)")
	}
	if cfg.LookupBatch <= 0 {
		return nil, fmt.Errorf("invalid lookup_batch (must be positive)")
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	if cfg.IndexIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid index_interval (must be positive seconds)")
	}
	if cfg.WorkerPollMax <= 0 {
		return nil, fmt.Errorf("invalid worker_poll_max (must be positive)")
	}
	if cfg.WorkerConcurrency <= 0 {
		return nil, fmt.Errorf("invalid worker_concurrency (must be positive)")
	}
	if cfg.TelegramRetryMax <= 0 {
		return nil, fmt.Errorf("invalid telegram_retry_max (must be positive)")
	}
	if cfg.TelegramRetrySleepSeconds <= 0 {
		return nil, fmt.Errorf("invalid telegram_retry_sleep_seconds (must be positive seconds)")
	}

	cfg.FeedThrottle = time.Duration(cfg.FeedThrottleMs) * time.Millisecond
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	cfg.IndexInterval = time.Duration(cfg.IndexIntervalSeconds) * time.Second
	cfg.TelegramRetrySleep = time.Duration(cfg.TelegramRetrySleepSeconds) * time.Second

	return &cfg, nil
}
