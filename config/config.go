package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/rustyeddy/stockdata/market"
	"github.com/rustyeddy/stockdata/provider"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: provider.api_key is read from
// STOCKDATA_PROVIDER_API_KEY.
const EnvPrefix = "STOCKDATA"

// Config is the complete application configuration.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider" json:"provider" yaml:"provider"`
	Throttle ThrottleConfig `mapstructure:"throttle" json:"throttle" yaml:"throttle"`
	Store    StoreConfig    `mapstructure:"store" json:"store" yaml:"store"`
	Journal  JournalConfig  `mapstructure:"journal" json:"journal" yaml:"journal"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging" yaml:"logging"`
	Watch    WatchConfig    `mapstructure:"watch" json:"watch" yaml:"watch"`
	Server   ServerConfig   `mapstructure:"server" json:"server" yaml:"server"`
}

// ProviderConfig configures the remote data API.
type ProviderConfig struct {
	APIKey          string        `mapstructure:"api_key" json:"api_key" yaml:"api_key"`
	BaseURL         string        `mapstructure:"base_url" json:"base_url" yaml:"base_url" validate:"required,url"`
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	OutputSize      string        `mapstructure:"output_size" json:"output_size" yaml:"output_size" validate:"oneof=compact full"`
	TimePeriod      int           `mapstructure:"time_period" json:"time_period" yaml:"time_period" validate:"gte=1"`
	Indicators      []string      `mapstructure:"indicators" json:"indicators" yaml:"indicators"` // empty means all
	AlignIndicators bool          `mapstructure:"align_indicators" json:"align_indicators" yaml:"align_indicators"`
	MaxRetries      int           `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries" validate:"gte=0"`
}

// ThrottleConfig bounds remote calls to Limit per Window.
type ThrottleConfig struct {
	Limit  int           `mapstructure:"limit" json:"limit" yaml:"limit" validate:"gte=1"`
	Window time.Duration `mapstructure:"window" json:"window" yaml:"window" validate:"gt=0"`
}

// StoreConfig selects the snapshot cache.
type StoreConfig struct {
	Backend string      `mapstructure:"backend" json:"backend" yaml:"backend" validate:"oneof=file sqlite redis"`
	Dir     string      `mapstructure:"dir" json:"dir" yaml:"dir" validate:"required_if=Backend file"`
	DBPath  string      `mapstructure:"db_path" json:"db_path,omitempty" yaml:"db_path,omitempty" validate:"required_if=Backend sqlite"`
	Redis   RedisConfig `mapstructure:"redis" json:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" json:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" json:"password,omitempty" yaml:"password,omitempty"`
	DB       int           `mapstructure:"db" json:"db" yaml:"db" validate:"gte=0"`
	Prefix   string        `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl" validate:"gte=0"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type   string `mapstructure:"type" json:"type" yaml:"type" validate:"oneof=none csv sqlite"`
	File   string `mapstructure:"file" json:"file,omitempty" yaml:"file,omitempty" validate:"required_if=Type csv"`
	DBPath string `mapstructure:"db_path" json:"db_path,omitempty" yaml:"db_path,omitempty" validate:"required_if=Type sqlite"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" json:"format" yaml:"format" validate:"oneof=json console"`
}

// WatchConfig lists the symbols refreshed on Schedule (standard 5 field
// cron syntax).
type WatchConfig struct {
	Schedule  string   `mapstructure:"schedule" json:"schedule" yaml:"schedule" validate:"required"`
	Symbols   []string `mapstructure:"symbols" json:"symbols" yaml:"symbols"`
	Intervals []string `mapstructure:"intervals" json:"intervals" yaml:"intervals" validate:"min=1"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" json:"addr" yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout" validate:"gt=0"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:    "https://www.alphavantage.co",
			Timeout:    30 * time.Second,
			OutputSize: "full",
			TimePeriod: provider.DefaultTimePeriod,
			MaxRetries: 5,
		},
		Throttle: ThrottleConfig{
			Limit:  30,
			Window: 70 * time.Second,
		},
		Store: StoreConfig{
			Backend: "file",
			Dir:     "./data",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "stockdata:",
			},
		},
		Journal: JournalConfig{
			Type: "csv",
			File: "./data/fetches.csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Watch: WatchConfig{
			Schedule:  "30 18 * * 1-5",
			Intervals: []string{string(market.Daily)},
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
	}
}

// setDefaults registers every key with viper so env overrides apply
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("provider.api_key", d.Provider.APIKey)
	v.SetDefault("provider.base_url", d.Provider.BaseURL)
	v.SetDefault("provider.timeout", d.Provider.Timeout)
	v.SetDefault("provider.output_size", d.Provider.OutputSize)
	v.SetDefault("provider.time_period", d.Provider.TimePeriod)
	v.SetDefault("provider.indicators", d.Provider.Indicators)
	v.SetDefault("provider.align_indicators", d.Provider.AlignIndicators)
	v.SetDefault("provider.max_retries", d.Provider.MaxRetries)

	v.SetDefault("throttle.limit", d.Throttle.Limit)
	v.SetDefault("throttle.window", d.Throttle.Window)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("store.db_path", d.Store.DBPath)
	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.password", d.Store.Redis.Password)
	v.SetDefault("store.redis.db", d.Store.Redis.DB)
	v.SetDefault("store.redis.prefix", d.Store.Redis.Prefix)
	v.SetDefault("store.redis.ttl", d.Store.Redis.TTL)

	v.SetDefault("journal.type", d.Journal.Type)
	v.SetDefault("journal.file", d.Journal.File)
	v.SetDefault("journal.db_path", d.Journal.DBPath)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("watch.schedule", d.Watch.Schedule)
	v.SetDefault("watch.symbols", d.Watch.Symbols)
	v.SetDefault("watch.intervals", d.Watch.Intervals)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
}

// Load builds the configuration from defaults, the file at path (YAML or
// JSON, optional when path is empty) and STOCKDATA_* environment variables.
// The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("stockdata")
		v.AddConfigPath(".")
		if home, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "stockdata"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a single file without defaults or
// environment overrides. YAML is tried first, then JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = c.YAML()
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Provider.APIKey != "" {
		out.Provider.APIKey = "********"
	}
	if out.Store.Redis.Password != "" {
		out.Store.Redis.Password = "********"
	}
	return &out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report yaml key names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct constraints, then the values that need parsing.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldError(verrs[0])
		}
		return err
	}

	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required for the redis backend")
	}
	if _, err := provider.ParseIndicators(c.Provider.Indicators); err != nil {
		return fmt.Errorf("provider.indicators: %w", err)
	}
	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return fmt.Errorf("watch.schedule: %w", err)
	}
	for _, s := range c.Watch.Intervals {
		if _, err := market.ParseInterval(s); err != nil {
			return fmt.Errorf("watch.intervals: %w", err)
		}
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	// Namespace is "Config.provider.output_size"
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "min":
		return fmt.Errorf("%s needs at least %s entries", field, fe.Param())
	case "url":
		return fmt.Errorf("%s must be a URL", field)
	}
	return fmt.Errorf("%s failed %q validation", field, fe.Tag())
}

// ParsedIntervals returns the watch intervals as market intervals.
func (w WatchConfig) ParsedIntervals() ([]market.Interval, error) {
	out := make([]market.Interval, 0, len(w.Intervals))
	for _, s := range w.Intervals {
		iv, err := market.ParseInterval(s)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}
