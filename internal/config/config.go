package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"portfolio/internal/client/rotating"
	"portfolio/internal/markethours"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	DB        DBConfig        `mapstructure:"db"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Google    SourceConfig    `mapstructure:"google"`
	Yahoo     SourceConfig    `mapstructure:"yahoo"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Name string `mapstructure:"name"`
}

type ServerConfig struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	// File enables a rotated log file next to stdout.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Namespace string `mapstructure:"namespace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type ScheduleConfig struct {
	Timezone             string        `mapstructure:"timezone"`
	Open                 string        `mapstructure:"open"`
	Close                string        `mapstructure:"close"`
	Weekdays             []string      `mapstructure:"weekdays"`
	Tick                 time.Duration `mapstructure:"tick"`
	FundamentalsInterval time.Duration `mapstructure:"fundamentals_interval"`
	MergeInterval        time.Duration `mapstructure:"merge_interval"`
	Horizon              time.Duration `mapstructure:"horizon"`
}

type FetcherConfig struct {
	Timeout        time.Duration       `mapstructure:"timeout"`
	BackoffBase    time.Duration       `mapstructure:"backoff_base"`
	BackoffJitter  time.Duration       `mapstructure:"backoff_jitter"`
	RatePerSecond  float64             `mapstructure:"rate_per_second"`
	MaxConcurrency int                 `mapstructure:"max_concurrency"`
	HeaderProfiles []map[string]string `mapstructure:"header_profiles"`
	Proxies        []string            `mapstructure:"proxies"`

	// HeaderProfilesJSON is a JSON array of header maps, for environments
	// that cannot express nested config. Entries are appended to HeaderProfiles.
	HeaderProfilesJSON string `mapstructure:"header_profiles_json"`
}

type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type PortfolioConfig struct {
	Path string `mapstructure:"path"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.name", "portfolio-tracker")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.stream_interval", "20s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_grace", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.compress", true)
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", "data/localcache")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.namespace", "portfolio")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("schedule.timezone", "Asia/Kolkata")
	v.SetDefault("schedule.open", "09:15")
	v.SetDefault("schedule.close", "15:30")
	v.SetDefault("schedule.weekdays", []string{"mon", "tue", "wed", "thu", "fri"})
	v.SetDefault("schedule.tick", "15m")
	v.SetDefault("schedule.fundamentals_interval", "20s")
	v.SetDefault("schedule.merge_interval", "20s")
	v.SetDefault("schedule.horizon", "20s")
	v.SetDefault("fetcher.timeout", "15s")
	v.SetDefault("fetcher.backoff_base", "300ms")
	v.SetDefault("fetcher.backoff_jitter", "500ms")
	v.SetDefault("fetcher.rate_per_second", 0)
	v.SetDefault("fetcher.max_concurrency", 8)
	v.SetDefault("fetcher.proxies", []string{})
	v.SetDefault("fetcher.header_profiles_json", "")
	v.SetDefault("google.base_url", "https://www.google.com/finance/quote/")
	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("portfolio.path", "")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "portfolio.stocks")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "portfolio_tracker")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects settings the process cannot run with. Recoverable
// problems are returned as warnings and the offending entries dropped.
func (c *Config) Validate() (warnings []string, err error) {
	switch c.Store.Backend {
	case "file", "memory", "redis", "postgres":
	default:
		return nil, fmt.Errorf("store.backend %q: want file, memory, redis or postgres", c.Store.Backend)
	}
	if c.Store.Backend == "file" && strings.TrimSpace(c.Store.Dir) == "" {
		return nil, fmt.Errorf("store.dir is required for the file backend")
	}
	if c.Store.Backend == "postgres" && strings.TrimSpace(c.DB.DSN) == "" {
		return nil, fmt.Errorf("db.dsn is required for the postgres backend")
	}
	if _, err := c.MarketWindow(); err != nil {
		return nil, err
	}
	for name, d := range map[string]time.Duration{
		"schedule.tick":                  c.Schedule.Tick,
		"schedule.fundamentals_interval": c.Schedule.FundamentalsInterval,
		"schedule.merge_interval":        c.Schedule.MergeInterval,
		"schedule.horizon":               c.Schedule.Horizon,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	if raw := strings.TrimSpace(c.Fetcher.HeaderProfilesJSON); raw != "" {
		var extra []map[string]string
		if err := json.Unmarshal([]byte(raw), &extra); err != nil {
			warnings = append(warnings, fmt.Sprintf("fetcher.header_profiles_json: %v, ignored", err))
		} else {
			c.Fetcher.HeaderProfiles = append(c.Fetcher.HeaderProfiles, extra...)
		}
		c.Fetcher.HeaderProfilesJSON = ""
	}

	profiles := c.Fetcher.HeaderProfiles[:0]
	for i, p := range c.Fetcher.HeaderProfiles {
		if len(p) == 0 {
			warnings = append(warnings, fmt.Sprintf("fetcher.header_profiles[%d] is empty, dropped", i))
			continue
		}
		profiles = append(profiles, p)
	}
	c.Fetcher.HeaderProfiles = profiles

	proxies := c.Fetcher.Proxies[:0]
	for i, p := range c.Fetcher.Proxies {
		if _, err := rotating.ParseRoute(p); err != nil {
			warnings = append(warnings, fmt.Sprintf("fetcher.proxies[%d]: %v, dropped", i, err))
			continue
		}
		proxies = append(proxies, strings.TrimSpace(p))
	}
	c.Fetcher.Proxies = proxies

	if c.Fetcher.MaxConcurrency < 0 {
		warnings = append(warnings, "fetcher.max_concurrency is negative, using unbounded")
		c.Fetcher.MaxConcurrency = 0
	}
	return warnings, nil
}

// MarketWindow builds the trading session from the schedule section.
func (c Config) MarketWindow() (markethours.Window, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return markethours.Window{}, fmt.Errorf("schedule.timezone: %w", err)
	}
	open, err := markethours.ParseClock(c.Schedule.Open)
	if err != nil {
		return markethours.Window{}, fmt.Errorf("schedule.open: %w", err)
	}
	closeAt, err := markethours.ParseClock(c.Schedule.Close)
	if err != nil {
		return markethours.Window{}, fmt.Errorf("schedule.close: %w", err)
	}
	days, err := markethours.ParseWeekdays(c.Schedule.Weekdays)
	if err != nil {
		return markethours.Window{}, fmt.Errorf("schedule.weekdays: %w", err)
	}
	w := markethours.Window{Location: loc, Open: open, Close: closeAt, Weekdays: days}
	if err := w.Validate(); err != nil {
		return markethours.Window{}, err
	}
	return w, nil
}
