package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRestBaseURL = "https://testnet.binancefuture.com"
	DefaultLogFile     = "logs/trading_bot.log"
)

type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Log      LogConfig      `yaml:"log"`
	Web      WebConfig      `yaml:"web"`
}

type ExchangeConfig struct {
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	RestBaseURL    string `yaml:"rest_base_url"`
	HTTPTimeoutSec int64  `yaml:"http_timeout_sec"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	FileEnabled *bool  `yaml:"file_enabled"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
}

type WebConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the optional YAML file at path, applies environment overrides,
// then normalizes, defaults and validates. An empty path skips the file.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return Config{}, err
		}
		if err := dec.Decode(new(yaml.Node)); err != io.EOF {
			if err == nil {
				return Config{}, fmt.Errorf("config must contain a single YAML document")
			}
			return Config{}, err
		}
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("BINANCE_API_KEY"); ok && v != "" {
		c.Exchange.APIKey = v
	}
	if v, ok := lookup("BINANCE_API_SECRET"); ok && v != "" {
		c.Exchange.APISecret = v
	}
	if v, ok := lookup("BINANCE_BASE_URL"); ok && v != "" {
		c.Exchange.RestBaseURL = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Web.ListenAddr = ":" + strings.TrimPrefix(strings.TrimSpace(v), ":")
	}
}

func (c *Config) normalize() {
	c.Exchange.APIKey = strings.TrimSpace(c.Exchange.APIKey)
	c.Exchange.APISecret = strings.TrimSpace(c.Exchange.APISecret)
	c.Exchange.RestBaseURL = strings.TrimRight(strings.TrimSpace(c.Exchange.RestBaseURL), "/")
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.File = strings.TrimSpace(c.Log.File)
	c.Web.ListenAddr = strings.TrimSpace(c.Web.ListenAddr)
}

func (c *Config) applyDefaults() {
	if c.Exchange.RestBaseURL == "" {
		c.Exchange.RestBaseURL = DefaultRestBaseURL
	}
	if c.Exchange.HTTPTimeoutSec == 0 {
		c.Exchange.HTTPTimeoutSec = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = DefaultLogFile
	}
	if c.Log.FileEnabled == nil {
		enabled := true
		c.Log.FileEnabled = &enabled
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 5
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Web.ListenAddr == "" {
		c.Web.ListenAddr = ":5000"
	}
}

// Validate checks ranges and formats. Credentials are not checked here;
// binance.NewClient rejects them when missing.
func (c Config) Validate() error {
	if err := validateURL(c.Exchange.RestBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("exchange rest_base_url %v", err)
	}
	if c.Exchange.HTTPTimeoutSec < 1 || c.Exchange.HTTPTimeoutSec > 120 {
		return fmt.Errorf("exchange http_timeout_sec must be between 1 and 120")
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error")
	}
	if c.Log.MaxSizeMB < 1 || c.Log.MaxSizeMB > 1024 {
		return fmt.Errorf("log max_size_mb must be between 1 and 1024")
	}
	if c.Log.MaxBackups < 0 || c.Log.MaxBackups > 100 {
		return fmt.Errorf("log max_backups must be between 0 and 100")
	}
	if !strings.Contains(c.Web.ListenAddr, ":") {
		return fmt.Errorf("web listen_addr must be host:port or :port")
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
