// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Site       SiteConfig       `mapstructure:"site"`
	Regions    []RegionConfig   `mapstructure:"regions"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Readiness  ReadinessConfig  `mapstructure:"readiness"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Output     OutputConfig     `mapstructure:"output"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Server     ServerConfig     `mapstructure:"server"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SiteConfig describes the target site's endpoints.
type SiteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	SearchPath     string `mapstructure:"search_path"`
	ReviewPath     string `mapstructure:"review_path"`
	ReviewPageSize int    `mapstructure:"review_page_size"`
	ReviewSource   string `mapstructure:"review_source"`
	Country        string `mapstructure:"country"`
}

// RegionConfig overrides one entry of the built-in region table.
type RegionConfig struct {
	Name        string `mapstructure:"name"`
	Subdivision string `mapstructure:"subdivision"`
}

// HTTPConfig configures the transport.
type HTTPConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	UserAgent         string  `mapstructure:"user_agent"`
	RespectRobots     bool    `mapstructure:"respect_robots"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// RetryConfig configures transport retries. MaxAttempts of 0 never gives up.
type RetryConfig struct {
	MaxAttempts    int     `mapstructure:"max_attempts"`
	InitialDelayMs int     `mapstructure:"initial_delay_ms"`
	MaxDelayMs     int     `mapstructure:"max_delay_ms"`
	Multiplier     float64 `mapstructure:"multiplier"`
}

// ReadinessConfig configures the detail page readiness poll.
type ReadinessConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	DelayMs     int `mapstructure:"delay_ms"`
}

// HeadlessConfig configures the optional chromedp transport.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	ReadyTimeoutSec int  `mapstructure:"ready_timeout_seconds"`
}

// CheckpointConfig selects where the crawl cursor lives.
type CheckpointConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	Name    string `mapstructure:"name"`
	Table   string `mapstructure:"table"`
}

// OutputConfig groups the record sinks.
type OutputConfig struct {
	CSV      CSVOutputConfig      `mapstructure:"csv"`
	Blob     BlobOutputConfig     `mapstructure:"blob"`
	Postgres PostgresOutputConfig `mapstructure:"postgres"`
}

// CSVOutputConfig controls the append-only CSV files.
type CSVOutputConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ListingPath string `mapstructure:"listing_path"`
	ReviewPath  string `mapstructure:"review_path"`
}

// BlobOutputConfig controls per-listing JSON documents.
type BlobOutputConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PostgresOutputConfig controls the relational sink.
type PostgresOutputConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ListingTable string `mapstructure:"listing_table"`
	ReviewTable  string `mapstructure:"review_table"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for listing-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// CrawlConfig holds orchestrator behavior.
type CrawlConfig struct {
	OnStructuralFault string `mapstructure:"on_structural_fault"`
}

// LoggingConfig toggles zap development features and sets the level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.vrbo.com")
	v.SetDefault("site.search_path", "/vacation-rentals")
	v.SetDefault("site.review_path", "/ajax/review/unit/%s/getAllReviews")
	v.SetDefault("site.review_page_size", 100000)
	v.SetDefault("site.review_source", "VRBO")
	v.SetDefault("site.country", "USA")
	v.SetDefault("http.timeout_seconds", 5)
	v.SetDefault("http.user_agent", "vacation-rental-crawler/0.1")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("retry.max_attempts", 10)
	v.SetDefault("retry.initial_delay_ms", 2000)
	v.SetDefault("retry.max_delay_ms", 60000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("readiness.max_attempts", 30)
	v.SetDefault("readiness.delay_ms", 1000)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.ready_timeout_seconds", 10)
	v.SetDefault("checkpoint.backend", "file")
	v.SetDefault("checkpoint.path", "last_info.yaml")
	v.SetDefault("checkpoint.name", "default")
	v.SetDefault("checkpoint.table", "crawl_checkpoints")
	v.SetDefault("output.csv.enabled", true)
	v.SetDefault("output.csv.listing_path", "listing.csv")
	v.SetDefault("output.csv.review_path", "review.csv")
	v.SetDefault("output.blob.backend", "")
	v.SetDefault("output.blob.base_dir", "data/listings")
	v.SetDefault("output.blob.prefix", "listings")
	v.SetDefault("output.postgres.enabled", false)
	v.SetDefault("output.postgres.listing_table", "listings")
	v.SetDefault("output.postgres.review_table", "reviews")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("crawl.on_structural_fault", string(crawler.FaultAbort))
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Site.BaseURL) == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Site.ReviewPageSize <= 0 {
		return fmt.Errorf("site.review_page_size must be > 0")
	}
	for i, r := range c.Regions {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("regions[%d].name is required", i)
		}
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.Retry.MaxAttempts < 0 || c.Retry.InitialDelayMs < 0 || c.Retry.MaxDelayMs < 0 {
		return fmt.Errorf("retry values must be >= 0")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if c.Readiness.MaxAttempts < 0 || c.Readiness.DelayMs < 0 {
		return fmt.Errorf("readiness values must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.NavTimeoutSec <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0 when headless is enabled")
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	if c.Headless.ReadyTimeoutSec < 0 {
		return fmt.Errorf("headless.ready_timeout_seconds must be >= 0")
	}
	switch c.Checkpoint.Backend {
	case "file":
		if strings.TrimSpace(c.Checkpoint.Path) == "" {
			return fmt.Errorf("checkpoint.path is required for the file backend")
		}
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres checkpoint backend")
		}
	default:
		return fmt.Errorf("unknown checkpoint.backend %q", c.Checkpoint.Backend)
	}
	switch c.Output.Blob.Backend {
	case "", "local", "memory":
	case "gcs":
		if c.Output.Blob.GCSBucket == "" {
			return fmt.Errorf("output.blob.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown output.blob.backend %q", c.Output.Blob.Backend)
	}
	if c.Output.Postgres.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when output.postgres is enabled")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if !crawler.FaultPolicy(c.Crawl.OnStructuralFault).Valid() {
		return fmt.Errorf("unknown crawl.on_structural_fault %q", c.Crawl.OnStructuralFault)
	}
	return nil
}

// HTTPTimeout converts the per-attempt timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// TransportRetry maps retry.* onto the crawler retry policy config.
func (c Config) TransportRetry() crawler.RetryConfig {
	return crawler.RetryConfig{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: time.Duration(c.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
		Multiplier:   c.Retry.Multiplier,
	}
}

// ReadinessDelay is the pause between readiness re-fetches.
func (c Config) ReadinessDelay() time.Duration {
	return time.Duration(c.Readiness.DelayMs) * time.Millisecond
}

// RegionList returns the configured regions, or the built-in table.
func (c Config) RegionList() []crawler.Region {
	if len(c.Regions) == 0 {
		out := make([]crawler.Region, len(crawler.DefaultRegions))
		copy(out, crawler.DefaultRegions)
		return out
	}
	out := make([]crawler.Region, 0, len(c.Regions))
	for _, r := range c.Regions {
		out = append(out, crawler.Region{Name: r.Name, Subdivision: r.Subdivision})
	}
	return out
}

// FaultPolicy returns the structural fault policy.
func (c Config) FaultPolicy() crawler.FaultPolicy {
	return crawler.FaultPolicy(c.Crawl.OnStructuralFault)
}
