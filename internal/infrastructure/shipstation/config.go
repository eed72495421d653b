package shipstation

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	// ProductionAPIURL is the ShipStation API endpoint
	ProductionAPIURL = "https://ssapi.shipstation.com"

	// DefaultTimeout is the HTTP request timeout used when none is configured
	DefaultTimeout = 30 * time.Second
	// DefaultRateLimitPerMinute matches ShipStation's published per-key quota
	DefaultRateLimitPerMinute = 40
	// DefaultRateLimitBurst is the number of calls allowed back to back
	DefaultRateLimitBurst = 5
)

// Errors for ShipStation configuration
var (
	ErrConfigMissingCredentials = errors.New("shipstation: api key and secret or auth token is required")
	ErrConfigInvalidBaseURL     = errors.New("shipstation: invalid base url")
)

// Config holds configuration for the ShipStation API integration
type Config struct {
	// BaseURL is the API root, without trailing slash
	BaseURL string
	// APIKey is the ShipStation API key
	APIKey string
	// APISecret is the ShipStation API secret
	APISecret string
	// AuthToken is a pre-encoded basic auth token; it takes precedence over key and secret
	AuthToken string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// RateLimitPerMinute caps outbound requests
	RateLimitPerMinute int
	// RateLimitBurst is the token bucket size
	RateLimitBurst int
	// AllowedHosts lists hosts a webhook resource_url may point at.
	// The BaseURL host is always allowed.
	AllowedHosts []string
}

// NewConfig creates a new ShipStation configuration with defaults
func NewConfig(apiKey, apiSecret string) *Config {
	return &Config{
		BaseURL:            ProductionAPIURL,
		APIKey:             apiKey,
		APISecret:          apiSecret,
		Timeout:            DefaultTimeout,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		RateLimitBurst:     DefaultRateLimitBurst,
	}
}

// HasCredentials returns true if the config can authenticate
func (c *Config) HasCredentials() bool {
	return c.AuthToken != "" || (c.APIKey != "" && c.APISecret != "")
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if !c.HasCredentials() {
		return ErrConfigMissingCredentials
	}
	if c.BaseURL == "" {
		c.BaseURL = ProductionAPIURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return ErrConfigInvalidBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = DefaultRateLimitBurst
	}
	return nil
}

// AuthHeader returns the Authorization header value
func (c *Config) AuthHeader() string {
	token := c.AuthToken
	if token == "" {
		token = base64.StdEncoding.EncodeToString([]byte(c.APIKey + ":" + c.APISecret))
	}
	return "Basic " + token
}
