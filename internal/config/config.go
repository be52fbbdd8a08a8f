// Package config loads and validates channel-scout configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all tool configuration knobs loaded via Viper.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Export  ExportConfig  `mapstructure:"export"`
	History HistoryConfig `mapstructure:"history"`
	Master  MasterConfig  `mapstructure:"master"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig holds the platform credential and client limits.
type APIConfig struct {
	Key            string  `mapstructure:"key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RPS            float64 `mapstructure:"rps"`
	Burst          int     `mapstructure:"burst"`
}

// CrawlConfig governs one crawl session.
type CrawlConfig struct {
	MaxResults     int      `mapstructure:"max_results"`
	MaxSearchCalls int      `mapstructure:"max_search_calls"`
	Regions        []string `mapstructure:"regions"`
}

// ExportConfig sets the output directory and default file format.
type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// HistoryConfig locates the crawl history document.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// MasterConfig locates the master ledger file.
type MasterConfig struct {
	Path string `mapstructure:"path"`
}

// CleanupConfig controls age-based pruning of the history document.
type CleanupConfig struct {
	AutoEnabled  bool `mapstructure:"auto_enabled"`
	MaxAgeDays   int  `mapstructure:"max_age_days"`
	CooldownDays int  `mapstructure:"cooldown_days"`
}

// ServerConfig controls the optional local status server.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOUT")
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
	v.SetDefault("api.key", "")
	v.SetDefault("api.timeout_seconds", 15)
	v.SetDefault("api.rps", 4)
	v.SetDefault("api.burst", 2)
	v.SetDefault("crawl.max_results", 10)
	v.SetDefault("crawl.max_search_calls", 80)
	v.SetDefault("crawl.regions", []string{})
	v.SetDefault("server.listen", "")
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.format", "csv")
	v.SetDefault("history.path", "crawl_history.json")
	v.SetDefault("master.path", "exports/MASTER/channels_master.csv")
	v.SetDefault("cleanup.auto_enabled", true)
	v.SetDefault("cleanup.max_age_days", 30)
	v.SetDefault("cleanup.cooldown_days", 7)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be > 0")
	}
	if c.Crawl.MaxResults <= 0 || c.Crawl.MaxResults > 50 {
		return fmt.Errorf("crawl.max_results must be in 1..50")
	}
	if c.Crawl.MaxSearchCalls <= 0 {
		return fmt.Errorf("crawl.max_search_calls must be > 0")
	}
	if c.Cleanup.MaxAgeDays <= 0 {
		return fmt.Errorf("cleanup.max_age_days must be > 0")
	}
	if c.Cleanup.CooldownDays < 0 {
		return fmt.Errorf("cleanup.cooldown_days must be >= 0")
	}
	switch c.Export.Format {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("export.format must be csv or xlsx")
	}
	return nil
}

// APITimeout converts the client timeout config into a duration.
func (c Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}
