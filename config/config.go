package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgents is the browser identity pool the fetcher draws from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// Config holds extractor, ledger and shell configuration.
type Config struct {
	MaxRetries         int           `mapstructure:"max_retries"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RetryDelayMin      time.Duration `mapstructure:"retry_delay_min"`
	RetryDelayMax      time.Duration `mapstructure:"retry_delay_max"`
	RepairDelay        time.Duration `mapstructure:"repair_delay"`
	MinBodyLength      int           `mapstructure:"min_body_length"`
	UserAgents         []string      `mapstructure:"user_agents"`
	FallbackUserAgent  string        `mapstructure:"fallback_user_agent"`
	Referer            string        `mapstructure:"referer"`
	AcceptLanguage     string        `mapstructure:"accept_language"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`

	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`

	LedgerDriver string `mapstructure:"ledger_driver"` // memory, xlsx, or sqlite
	LedgerPath   string `mapstructure:"ledger_path"`
	OutputFile   string `mapstructure:"output_file"`
	OutputFormat string `mapstructure:"output_format"` // csv, json, or dual

	Timezone    string `mapstructure:"timezone"`
	ListenAddr  string `mapstructure:"listen_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	Verbose     bool   `mapstructure:"verbose"`
}

// DefaultConfig returns the settings the Kyobo product pages were tuned against.
func DefaultConfig() *Config {
	agents := make([]string, len(DefaultUserAgents))
	copy(agents, DefaultUserAgents)
	return &Config{
		MaxRetries:         3,
		Timeout:            30 * time.Second,
		RetryDelayMin:      2 * time.Second,
		RetryDelayMax:      5 * time.Second,
		RepairDelay:        time.Second,
		MinBodyLength:      1000,
		UserAgents:         agents,
		FallbackUserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		Referer:            "https://www.google.com/",
		AcceptLanguage:     "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
		InsecureSkipVerify: false,
		CacheSize:          128,
		CacheTTL:           10 * time.Minute,
		LedgerDriver:       "xlsx",
		LedgerPath:         "output/applications.xlsx",
		OutputFile:         "output/applications.csv",
		OutputFormat:       "csv",
		Timezone:           "Asia/Seoul",
		ListenAddr:         ":8080",
		MetricsAddr:        "",
		Verbose:            false,
	}
}

// Load merges an optional config file and KYOBO_* environment variables over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KYOBO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("max_retries", defaults.MaxRetries)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("retry_delay_min", defaults.RetryDelayMin)
	v.SetDefault("retry_delay_max", defaults.RetryDelayMax)
	v.SetDefault("repair_delay", defaults.RepairDelay)
	v.SetDefault("min_body_length", defaults.MinBodyLength)
	v.SetDefault("user_agents", defaults.UserAgents)
	v.SetDefault("fallback_user_agent", defaults.FallbackUserAgent)
	v.SetDefault("referer", defaults.Referer)
	v.SetDefault("accept_language", defaults.AcceptLanguage)
	v.SetDefault("insecure_skip_verify", defaults.InsecureSkipVerify)
	v.SetDefault("cache_size", defaults.CacheSize)
	v.SetDefault("cache_ttl", defaults.CacheTTL)
	v.SetDefault("ledger_driver", defaults.LedgerDriver)
	v.SetDefault("ledger_path", defaults.LedgerPath)
	v.SetDefault("output_file", defaults.OutputFile)
	v.SetDefault("output_format", defaults.OutputFormat)
	v.SetDefault("timezone", defaults.Timezone)
	v.SetDefault("listen_addr", defaults.ListenAddr)
	v.SetDefault("metrics_addr", defaults.MetricsAddr)
	v.SetDefault("verbose", defaults.Verbose)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RetryDelayMin < 0 {
		return fmt.Errorf("retry delay min cannot be negative")
	}
	if c.RetryDelayMax < c.RetryDelayMin {
		return fmt.Errorf("retry delay max (%s) cannot be below retry delay min (%s)", c.RetryDelayMax, c.RetryDelayMin)
	}
	if c.RepairDelay < 0 {
		return fmt.Errorf("repair delay cannot be negative")
	}
	if c.MinBodyLength < 0 {
		return fmt.Errorf("min body length cannot be negative")
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agent pool cannot be empty")
	}
	for i, ua := range c.UserAgents {
		if strings.TrimSpace(ua) == "" {
			return fmt.Errorf("user agent %d is empty", i)
		}
	}
	if c.FallbackUserAgent == "" {
		return fmt.Errorf("fallback user agent cannot be empty")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}
	switch c.LedgerDriver {
	case "memory":
	case "xlsx", "sqlite":
		if c.LedgerPath == "" {
			return fmt.Errorf("ledger path cannot be empty for driver %s", c.LedgerDriver)
		}
	default:
		return fmt.Errorf("ledger driver must be memory, xlsx, or sqlite")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.Timezone == "" {
		return fmt.Errorf("timezone cannot be empty")
	}

	return nil
}
