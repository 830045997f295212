// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	return &Config{
		ListenAddress: ":3000",
		Hosts:         Hosts{Login: "https://login.example.com", API: "https://api.example.com"},
		Interaction: Interaction{
			CookieName: "_interaction",
			CookieKeys: []string{testKey},
			TTL:        time.Hour,
			FlashTTL:   time.Minute,
		},
		Upstream: Upstream{
			Name:         "azuread",
			Issuer:       "https://login.microsoftonline.com/tenant/v2.0",
			ClientID:     "upstream-client",
			ResponseType: "id_token",
		},
		Directory: Directory{URL: "https://directory.example.com"},
		RateLimit: RateLimit{RequestsPerSecond: 10, Burst: 20},
		Telemetry: Telemetry{SamplingRate: 0.1},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing login host",
			mutate:  func(c *Config) { c.Hosts.Login = "" },
			wantErr: "hosts.login is required",
		},
		{
			name:    "relative api host",
			mutate:  func(c *Config) { c.Hosts.API = "/api" },
			wantErr: "hosts.api must be an absolute URL",
		},
		{
			name:    "short cookie key",
			mutate:  func(c *Config) { c.Interaction.CookieKeys = []string{"short"} },
			wantErr: "interaction.cookie_keys[0] must be at least 32 bytes",
		},
		{
			name:    "no cookie keys",
			mutate:  func(c *Config) { c.Interaction.CookieKeys = nil },
			wantErr: "interaction.cookie_keys requires at least one key",
		},
		{
			name:    "code flow without secret",
			mutate:  func(c *Config) { c.Upstream.ResponseType = "code" },
			wantErr: "upstream.client_secret is required",
		},
		{
			name:    "unknown response type",
			mutate:  func(c *Config) { c.Upstream.ResponseType = "token" },
			wantErr: "upstream.response_type must be id_token or code",
		},
		{
			name:    "sampling rate out of range",
			mutate:  func(c *Config) { c.Telemetry.SamplingRate = 2 },
			wantErr: "telemetry.sampling_rate must be between 0 and 1",
		},
		{
			name:    "production without redis",
			mutate:  func(c *Config) { c.Production = true },
			wantErr: "redis.address is required in production",
		},
		{
			name: "production with redis",
			mutate: func(c *Config) {
				c.Production = true
				c.Redis.Address = "localhost:6379"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"hosts:",
		"  login: https://login.example.com/",
		"  api: https://api.example.com",
		"interaction:",
		"  ttl: 30m",
		"directory:",
		"  url: https://directory.example.com",
		"  timeout: 2s",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "https://login.example.com", cfg.Issuer())
	assert.Equal(t, 30*time.Minute, cfg.Interaction.TTL)
	assert.Equal(t, 2*time.Second, cfg.Directory.Timeout)
	assert.Equal(t, "https://login.example.com/interaction/azuread", cfg.Upstream.RedirectURL)
	assert.Equal(t, "https://tryextra.net/", cfg.OIDC.PostLogoutRedirectURI)
	assert.Equal(t, "_interaction", cfg.Interaction.CookieName)
	assert.True(t, cfg.SecureCookies())
}

func TestLoad_Environment(t *testing.T) { //nolint:paralleltest // uses t.Setenv
	t.Setenv("EXTRA_OIDC_HOSTS_LOGIN", "http://localhost:3000")
	t.Setenv("EXTRA_OIDC_UPSTREAM_TENANT_DOMAIN", "example.com")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.Hosts.Login)
	assert.Equal(t, "example.com", cfg.Upstream.TenantDomain)
	assert.False(t, cfg.SecureCookies())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
