package config

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PipelineConfig configures lead acceptance and routing.
type PipelineConfig struct {
	MinLeadScore       float64 `yaml:"min_lead_score" mapstructure:"min_lead_score"`
	FuzzyThreshold     float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	FallbackPolicy     string  `yaml:"fallback_policy" mapstructure:"fallback_policy"`
	DefaultCompanySize string  `yaml:"default_company_size" mapstructure:"default_company_size"`
}

// ClassifyConfig points at an optional taxonomy override.
type ClassifyConfig struct {
	TaxonomyPath string `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
}

// NotifyConfig configures officer notifications.
type NotifyConfig struct {
	Driver         string        `yaml:"driver" mapstructure:"driver"`
	RatePerMinute  float64       `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	Burst          int           `yaml:"burst" mapstructure:"burst"`
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	DossierBaseURL string        `yaml:"dossier_base_url" mapstructure:"dossier_base_url"`
	Email          EmailConfig   `yaml:"email" mapstructure:"email"`
	Webhook        WebhookConfig `yaml:"webhook" mapstructure:"webhook"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string        `yaml:"host" mapstructure:"host"`
	Port     int           `yaml:"port" mapstructure:"port"`
	Username string        `yaml:"username" mapstructure:"username"`
	Password string        `yaml:"password" mapstructure:"password"`
	From     string        `yaml:"from" mapstructure:"from"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// WebhookConfig holds the webhook endpoint.
type WebhookConfig struct {
	URL     string            `yaml:"url" mapstructure:"url"`
	Timeout time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// ServerConfig configures the HTTP ingest server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadsignal.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("pipeline.min_lead_score", 30.0)
	v.SetDefault("pipeline.fuzzy_threshold", 85.0)
	v.SetDefault("pipeline.fallback_policy", "any_active")
	v.SetDefault("pipeline.default_company_size", "medium")
	v.SetDefault("classify.taxonomy_path", "")
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.rate_per_minute", 0)
	v.SetDefault("notify.burst", 1)
	v.SetDefault("notify.max_attempts", 3)
	v.SetDefault("notify.retry_backoff", "250ms")
	v.SetDefault("notify.dossier_base_url", "")
	v.SetDefault("notify.email.host", "")
	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.username", "")
	v.SetDefault("notify.email.password", "")
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.timeout", "10s")
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.timeout", "10s")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var (
	storeDrivers  = []string{"sqlite", "postgres"}
	fallbacks     = []string{"any_active", "none"}
	companySizes  = []string{"enterprise", "large", "medium", "small"}
	notifyDrivers = []string{"log", "email", "webhook", "none"}
	validateModes = []string{"process", "serve", "migrate", "officers", "export", "analyze"}
)

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	if !slices.Contains(validateModes, mode) {
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var errs []string
	if !slices.Contains(storeDrivers, c.Store.Driver) {
		errs = append(errs, "store.driver must be one of "+strings.Join(storeDrivers, ", "))
	}
	if mode != "analyze" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if c.Pipeline.MinLeadScore < 0 || c.Pipeline.MinLeadScore > 100 {
		errs = append(errs, "pipeline.min_lead_score must be between 0 and 100")
	}
	if c.Pipeline.FuzzyThreshold <= 0 || c.Pipeline.FuzzyThreshold > 100 {
		errs = append(errs, "pipeline.fuzzy_threshold must be in (0, 100]")
	}
	if !slices.Contains(fallbacks, c.Pipeline.FallbackPolicy) {
		errs = append(errs, "pipeline.fallback_policy must be one of "+strings.Join(fallbacks, ", "))
	}
	if c.Pipeline.DefaultCompanySize != "" && !slices.Contains(companySizes, c.Pipeline.DefaultCompanySize) {
		errs = append(errs, "pipeline.default_company_size must be one of "+strings.Join(companySizes, ", "))
	}

	switch c.Notify.Driver {
	case "email":
		if c.Notify.Email.Host == "" {
			errs = append(errs, "notify.email.host is required for the email driver")
		}
		if c.Notify.Email.From == "" {
			errs = append(errs, "notify.email.from is required for the email driver")
		}
	case "webhook":
		if c.Notify.Webhook.URL == "" {
			errs = append(errs, "notify.webhook.url is required for the webhook driver")
		}
	default:
		if !slices.Contains(notifyDrivers, c.Notify.Driver) {
			errs = append(errs, "notify.driver must be one of "+strings.Join(notifyDrivers, ", "))
		}
	}
	if c.Notify.RatePerMinute < 0 {
		errs = append(errs, "notify.rate_per_minute must be >= 0")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
