package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	DataForSEO DataForSEOConfig `yaml:"dataforseo" mapstructure:"dataforseo"`
	Places     PlacesConfig     `yaml:"places" mapstructure:"places"`
	Freshness  FreshnessConfig  `yaml:"freshness" mapstructure:"freshness"`
	Assets     AssetsConfig     `yaml:"assets" mapstructure:"assets"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DataForSEOConfig holds enrichment API credentials and connection settings.
type DataForSEOConfig struct {
	Login       string      `yaml:"login" mapstructure:"login"`
	Password    string      `yaml:"password" mapstructure:"password"`
	BaseURL     string      `yaml:"base_url" mapstructure:"base_url"`
	PostbackURL string      `yaml:"postback_url" mapstructure:"postback_url"`
	RateRPS     float64     `yaml:"rate_rps" mapstructure:"rate_rps"`
	Depth       int         `yaml:"depth" mapstructure:"depth"`
	Retry       RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig tunes transport retry and circuit-breaker behavior for provider
// calls. Zero values fall back to the library defaults.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PlacesConfig holds mapping-provider search settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FreshnessConfig sets per-kind staleness thresholds in hours. A kind is
// re-submitted for a place only when its newest ledger row is older than the
// threshold. Zero means always due.
type FreshnessConfig struct {
	ReviewsHours        int `yaml:"reviews_hours" mapstructure:"reviews_hours"`
	BusinessInfoHours   int `yaml:"business_info_hours" mapstructure:"business_info_hours"`
	UpdatesHours        int `yaml:"updates_hours" mapstructure:"updates_hours"`
	QnAHours            int `yaml:"qna_hours" mapstructure:"qna_hours"`
	SocialProfilesHours int `yaml:"social_profiles_hours" mapstructure:"social_profiles_hours"`
}

// AssetsConfig configures local storage of downloaded profile assets.
type AssetsConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	PlatformRules string `yaml:"platform_rules" mapstructure:"platform_rules"`
}

// ServerConfig configures the callback/dashboard server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("LOCALRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "localrank.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("dataforseo.base_url", "https://api.dataforseo.com/v3")
	v.SetDefault("dataforseo.rate_rps", 2)
	v.SetDefault("dataforseo.depth", 100)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("freshness.reviews_hours", 24)
	v.SetDefault("freshness.business_info_hours", 168)
	v.SetDefault("freshness.updates_hours", 72)
	v.SetDefault("freshness.qna_hours", 168)
	v.SetDefault("freshness.social_profiles_hours", 720)
	v.SetDefault("assets.dir", "assets")

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

// KindHours returns the freshness threshold for a kind in hours.
func (f FreshnessConfig) KindHours(kind string) int {
	switch kind {
	case "reviews":
		return f.ReviewsHours
	case "business_info":
		return f.BusinessInfoHours
	case "updates":
		return f.UpdatesHours
	case "qna":
		return f.QnAHours
	case "social_profiles":
		return f.SocialProfilesHours
	}
	return 0
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
