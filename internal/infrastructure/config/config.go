package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	HTTP        HTTPConfig
	ShipStation ShipStationConfig
	Splitter    SplitterConfig
	Telemetry   TelemetryConfig
	Profiling   ProfilingConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	TrustedProxies    []string
}

// ShipStationConfig holds the order API credentials and client limits
type ShipStationConfig struct {
	BaseURL            string
	APIKey             string
	APISecret          string
	AuthToken          string // pre-encoded base64 "key:secret", wins over APIKey/APISecret
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	AllowedHosts       []string // extra hosts accepted in webhook resource URLs
}

// HasCredentials reports whether any form of credentials is configured
func (s ShipStationConfig) HasCredentials() bool {
	return s.AuthToken != "" || (s.APIKey != "" && s.APISecret != "")
}

// SplitterConfig controls how split submissions are dispatched
type SplitterConfig struct {
	MaxConcurrency int
	AsyncSubmit    bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)

	MetricsEnabled  bool
	MetricsInterval time.Duration

	LogsEnabled bool   // Bridge zap entries to the collector
	LogsLevel   string // Minimum level bridged
}

// ProfilingConfig holds Pyroscope continuous profiling settings
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	SpanProfiles      bool // Link profiles to trace spans
}

// IsProduction reports whether the service runs with production rules
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SPLITTER_ prefix (e.g., SPLITTER_SHIPSTATION_API_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("SPLITTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// bools that default to true cannot be told apart from "unset" after loading
	v.SetDefault("splitter.async_submit", true)
	v.SetDefault("telemetry.metrics_enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:   v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		ShipStation: ShipStationConfig{
			BaseURL:            v.GetString("shipstation.base_url"),
			APIKey:             v.GetString("shipstation.api_key"),
			APISecret:          v.GetString("shipstation.api_secret"),
			AuthToken:          v.GetString("shipstation.auth_token"),
			Timeout:            v.GetDuration("shipstation.timeout"),
			RateLimitPerMinute: v.GetInt("shipstation.rate_limit_per_minute"),
			RateLimitBurst:     v.GetInt("shipstation.rate_limit_burst"),
			AllowedHosts:       v.GetStringSlice("shipstation.allowed_hosts"),
		},
		Splitter: SplitterConfig{
			MaxConcurrency: v.GetInt("splitter.max_concurrency"),
			AsyncSubmit:    v.GetBool("splitter.async_submit"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			LogsLevel:         v.GetString("telemetry.logs_level"),
		},
		Profiling: ProfilingConfig{
			Enabled:           v.GetBool("profiling.enabled"),
			ServerAddress:     v.GetString("profiling.server_address"),
			ApplicationName:   v.GetString("profiling.application_name"),
			BasicAuthUser:     v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiling.basic_auth_password"),
			SpanProfiles:      v.GetBool("profiling.span_profiles"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "order-splitter"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 120
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
	if cfg.ShipStation.BaseURL == "" {
		cfg.ShipStation.BaseURL = "https://ssapi.shipstation.com"
	}
	if cfg.ShipStation.Timeout == 0 {
		cfg.ShipStation.Timeout = 30 * time.Second
	}
	if cfg.ShipStation.RateLimitPerMinute == 0 {
		cfg.ShipStation.RateLimitPerMinute = 40
	}
	if cfg.ShipStation.RateLimitBurst == 0 {
		cfg.ShipStation.RateLimitBurst = 5
	}
	if cfg.Splitter.MaxConcurrency == 0 {
		cfg.Splitter.MaxConcurrency = 4
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.LogsLevel == "" {
		cfg.Telemetry.LogsLevel = "info"
	}
	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.App.Name
	}
	// SamplingRatio stays 0 (never sample) only when tracing is off
	if cfg.Telemetry.SamplingRatio == 0 && cfg.Telemetry.Enabled {
		cfg.Telemetry.SamplingRatio = 1.0
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Splitter.MaxConcurrency < 0 {
		return fmt.Errorf("splitter.max_concurrency must be positive, got %d", c.Splitter.MaxConcurrency)
	}
	if c.ShipStation.RateLimitPerMinute < 0 || c.ShipStation.RateLimitBurst < 0 {
		return fmt.Errorf("shipstation rate limits cannot be negative")
	}
	if !strings.HasPrefix(c.ShipStation.BaseURL, "https://") && !strings.HasPrefix(c.ShipStation.BaseURL, "http://") {
		return fmt.Errorf("shipstation.base_url must be an http(s) URL, got %q", c.ShipStation.BaseURL)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}

	if c.IsProduction() {
		if !c.ShipStation.HasCredentials() {
			return fmt.Errorf("shipstation credentials (api_key/api_secret or auth_token) are required in production")
		}
		if !strings.HasPrefix(c.ShipStation.BaseURL, "https://") {
			return fmt.Errorf("shipstation.base_url must use https in production")
		}
		if c.Telemetry.Insecure && c.Telemetry.Enabled {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
	}

	return nil
}
