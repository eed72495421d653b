package shipstation

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{
			name:    "key and secret",
			config:  &Config{APIKey: "key", APISecret: "secret"},
			wantErr: nil,
		},
		{
			name:    "auth token only",
			config:  &Config{AuthToken: "dG9rZW4="},
			wantErr: nil,
		},
		{
			name:    "missing secret",
			config:  &Config{APIKey: "key"},
			wantErr: ErrConfigMissingCredentials,
		},
		{
			name:    "missing everything",
			config:  &Config{},
			wantErr: ErrConfigMissingCredentials,
		},
		{
			name:    "invalid base url",
			config:  &Config{APIKey: "key", APISecret: "secret", BaseURL: "ftp://example.com"},
			wantErr: ErrConfigInvalidBaseURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				// Check defaults are set
				assert.Equal(t, ProductionAPIURL, tt.config.BaseURL)
				assert.Equal(t, DefaultTimeout, tt.config.Timeout)
				assert.Equal(t, DefaultRateLimitPerMinute, tt.config.RateLimitPerMinute)
				assert.Equal(t, DefaultRateLimitBurst, tt.config.RateLimitBurst)
			}
		})
	}
}

func TestConfig_Validate_TrimsTrailingSlash(t *testing.T) {
	config := &Config{APIKey: "key", APISecret: "secret", BaseURL: "https://ssapi.example.com/"}
	assert.NoError(t, config.Validate())
	assert.Equal(t, "https://ssapi.example.com", config.BaseURL)
}

func TestConfig_AuthHeader(t *testing.T) {
	t.Run("key and secret are encoded", func(t *testing.T) {
		config := NewConfig("key", "secret")
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		assert.Equal(t, expected, config.AuthHeader())
	})

	t.Run("auth token is used as is", func(t *testing.T) {
		config := NewConfig("key", "secret")
		config.AuthToken = "cHJlLWVuY29kZWQ="
		assert.Equal(t, "Basic cHJlLWVuY29kZWQ=", config.AuthHeader())
	})
}
