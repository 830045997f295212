// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config contains the definition of the extra-oidc configuration
// and the logic required to load it from flags, environment and file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "EXTRA_OIDC"

// Config represents the configuration of the server.
type Config struct {
	// ListenAddress is the host:port the HTTP server binds to.
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`

	// Production disables diagnostic detail on error pages and requires Redis,
	// the only source of client change notifications.
	Production bool `mapstructure:"production" yaml:"production"`

	Hosts       Hosts       `mapstructure:"hosts" yaml:"hosts"`
	Interaction Interaction `mapstructure:"interaction" yaml:"interaction"`
	OIDC        OIDC        `mapstructure:"oidc" yaml:"oidc"`
	Upstream    Upstream    `mapstructure:"upstream" yaml:"upstream"`
	Directory   Directory   `mapstructure:"directory" yaml:"directory"`
	Redis       Redis       `mapstructure:"redis" yaml:"redis"`
	RateLimit   RateLimit   `mapstructure:"rate_limit" yaml:"rate_limit"`
	Telemetry   Telemetry   `mapstructure:"telemetry" yaml:"telemetry"`
}

// Hosts are the externally visible origins of this server and the API it issues tokens for.
type Hosts struct {
	// Login is the issuer URL of this server.
	Login string `mapstructure:"login" yaml:"login"`

	// API is the audience of access tokens and client credentials.
	API string `mapstructure:"api" yaml:"api"`
}

// Interaction configures paused authorization flows.
type Interaction struct {
	CookieName string `mapstructure:"cookie_name" yaml:"cookie_name"`

	// CookieKeys sign the interaction cookie. The first key signs; all keys verify.
	CookieKeys []string `mapstructure:"cookie_keys" yaml:"-"`

	// TTL bounds the lifetime of a paused interaction.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// FlashTTL bounds the lifetime of a failure message shown on the failed screen.
	FlashTTL time.Duration `mapstructure:"flash_ttl" yaml:"flash_ttl"`
}

// OIDC configures the authorization engine.
type OIDC struct {
	PostLogoutRedirectURI string        `mapstructure:"post_logout_redirect_uri" yaml:"post_logout_redirect_uri"`
	AccessTokenLifespan   time.Duration `mapstructure:"access_token_lifespan" yaml:"access_token_lifespan"`
	RefreshTokenLifespan  time.Duration `mapstructure:"refresh_token_lifespan" yaml:"refresh_token_lifespan"`
	IDTokenLifespan       time.Duration `mapstructure:"id_token_lifespan" yaml:"id_token_lifespan"`
	AuthorizeCodeLifespan time.Duration `mapstructure:"authorize_code_lifespan" yaml:"authorize_code_lifespan"`
	SessionLifespan       time.Duration `mapstructure:"session_lifespan" yaml:"session_lifespan"`

	// SigningKeyFile is a PEM private key. An ephemeral key is generated when empty.
	SigningKeyFile string `mapstructure:"signing_key_file" yaml:"signing_key_file"`

	// HMACSecret signs opaque codes and refresh tokens. Must be at least 32 bytes.
	HMACSecret string `mapstructure:"hmac_secret" yaml:"-"`

	// FrontchannelLogoutTimeout is the budget given to logout frames.
	FrontchannelLogoutTimeout time.Duration `mapstructure:"frontchannel_logout_timeout" yaml:"frontchannel_logout_timeout"`
}

// Upstream configures the external identity provider.
type Upstream struct {
	// Name is the path segment of the login handshake, /interaction/<name>.
	Name         string        `mapstructure:"name" yaml:"name"`
	Issuer       string        `mapstructure:"issuer" yaml:"issuer"`
	ClientID     string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string        `mapstructure:"client_secret" yaml:"-"`
	RedirectURL  string        `mapstructure:"redirect_url" yaml:"redirect_url"`
	TenantDomain string        `mapstructure:"tenant_domain" yaml:"tenant_domain"`
	ResponseType string        `mapstructure:"response_type" yaml:"response_type"`
	Scopes       []string      `mapstructure:"scopes" yaml:"scopes"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Directory configures the directory service client.
type Directory struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Token   string        `mapstructure:"token" yaml:"-"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// ChangesChannel is the Redis channel carrying client change notifications.
	ChangesChannel string `mapstructure:"changes_channel" yaml:"changes_channel"`
}

// Redis configures the shared key-value store. Empty Address selects in-process stores.
type Redis struct {
	Address   string `mapstructure:"address" yaml:"address"`
	Password  string `mapstructure:"password" yaml:"-"`
	DB        int    `mapstructure:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// RateLimit configures per-client-IP limits on interaction routes.
type RateLimit struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// Telemetry configures tracing and metrics.
type Telemetry struct {
	Endpoint       string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure       bool    `mapstructure:"insecure" yaml:"insecure"`
	SamplingRate   float64 `mapstructure:"sampling_rate" yaml:"sampling_rate"`
	MetricsEnabled bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
}

// SetDefaults registers every key with its default so environment variables
// are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen_address", ":3000")
	v.SetDefault("production", false)

	v.SetDefault("hosts.login", "")
	v.SetDefault("hosts.api", "")

	v.SetDefault("interaction.cookie_name", "_interaction")
	v.SetDefault("interaction.cookie_keys", []string{})
	v.SetDefault("interaction.ttl", time.Hour)
	v.SetDefault("interaction.flash_ttl", time.Minute)

	v.SetDefault("oidc.post_logout_redirect_uri", "https://tryextra.net/")
	v.SetDefault("oidc.access_token_lifespan", time.Hour)
	v.SetDefault("oidc.refresh_token_lifespan", 14*24*time.Hour)
	v.SetDefault("oidc.id_token_lifespan", time.Hour)
	v.SetDefault("oidc.authorize_code_lifespan", 10*time.Minute)
	v.SetDefault("oidc.session_lifespan", 14*24*time.Hour)
	v.SetDefault("oidc.signing_key_file", "")
	v.SetDefault("oidc.hmac_secret", "")
	v.SetDefault("oidc.frontchannel_logout_timeout", 2500*time.Millisecond)

	v.SetDefault("upstream.name", "azuread")
	v.SetDefault("upstream.issuer", "")
	v.SetDefault("upstream.client_id", "")
	v.SetDefault("upstream.client_secret", "")
	v.SetDefault("upstream.redirect_url", "")
	v.SetDefault("upstream.tenant_domain", "")
	v.SetDefault("upstream.response_type", "id_token")
	v.SetDefault("upstream.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("upstream.timeout", 10*time.Second)

	v.SetDefault("directory.url", "")
	v.SetDefault("directory.token", "")
	v.SetDefault("directory.timeout", 5*time.Second)
	v.SetDefault("directory.changes_channel", "directory:clients")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "extra-oidc:")

	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.sampling_rate", 0.1)
	v.SetDefault("telemetry.metrics_enabled", true)
}

// Load reads the configuration from v. When configPath is set the file is merged
// first; EXTRA_OIDC_* environment variables override it.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Hosts.Login = strings.TrimSuffix(c.Hosts.Login, "/")
	if c.Upstream.RedirectURL == "" && c.Hosts.Login != "" {
		c.Upstream.RedirectURL = c.Hosts.Login + "/interaction/" + c.Upstream.Name
	}
}

// Issuer returns the issuer identifier of the authorization engine.
func (c *Config) Issuer() string {
	return c.Hosts.Login
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Hosts.Login, "https://")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	var errs []error

	if err := validateURL("hosts.login", c.Hosts.Login); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("hosts.api", c.Hosts.API); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("upstream.issuer", c.Upstream.Issuer); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("directory.url", c.Directory.URL); err != nil {
		errs = append(errs, err)
	}
	if c.Upstream.ClientID == "" {
		errs = append(errs, errors.New("upstream.client_id is required"))
	}
	switch c.Upstream.ResponseType {
	case "id_token", "code":
	default:
		errs = append(errs, fmt.Errorf("upstream.response_type must be id_token or code, got %q", c.Upstream.ResponseType))
	}
	if c.Upstream.ResponseType == "code" && c.Upstream.ClientSecret == "" {
		errs = append(errs, errors.New("upstream.client_secret is required for the code response type"))
	}
	if len(c.Interaction.CookieKeys) == 0 {
		errs = append(errs, errors.New("interaction.cookie_keys requires at least one key"))
	}
	for i, k := range c.Interaction.CookieKeys {
		if len(k) < 32 {
			errs = append(errs, fmt.Errorf("interaction.cookie_keys[%d] must be at least 32 bytes", i))
		}
	}
	if c.OIDC.HMACSecret != "" && len(c.OIDC.HMACSecret) < 32 {
		errs = append(errs, errors.New("oidc.hmac_secret must be at least 32 bytes"))
	}
	if c.Interaction.TTL <= 0 {
		errs = append(errs, errors.New("interaction.ttl must be positive"))
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, errors.New("telemetry.sampling_rate must be between 0 and 1"))
	}
	if c.Production && c.Redis.Address == "" {
		errs = append(errs, errors.New("redis.address is required in production: cached clients are only invalidated by its change feed"))
	}

	return errors.Join(errs...)
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, raw)
	}
	return nil
}
