// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tryextra/extra-oidc/pkg/api"
	apierrors "github.com/tryextra/extra-oidc/pkg/api/errors"
	v1 "github.com/tryextra/extra-oidc/pkg/api/v1"
	"github.com/tryextra/extra-oidc/pkg/authserver"
	"github.com/tryextra/extra-oidc/pkg/authserver/keys"
	"github.com/tryextra/extra-oidc/pkg/authserver/storage"
	"github.com/tryextra/extra-oidc/pkg/clients"
	"github.com/tryextra/extra-oidc/pkg/config"
	"github.com/tryextra/extra-oidc/pkg/directory"
	"github.com/tryextra/extra-oidc/pkg/identity"
	"github.com/tryextra/extra-oidc/pkg/interaction"
	"github.com/tryextra/extra-oidc/pkg/ledger"
	"github.com/tryextra/extra-oidc/pkg/logger"
	"github.com/tryextra/extra-oidc/pkg/telemetry"
	"github.com/tryextra/extra-oidc/pkg/views"
)

const telemetryShutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the OpenID Connect provider",
		Long: `Start the OpenID Connect provider. The server runs until it receives SIGINT or
SIGTERM, then drains in-flight requests before exiting.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("failed to shut down telemetry", "error", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	dir, err := directory.NewHTTPClient(cfg.Directory.URL, cfg.Directory.Token,
		directory.WithTimeout(cfg.Directory.Timeout))
	if err != nil {
		return fmt.Errorf("failed to create directory client: %w", err)
	}
	resolver := clients.NewResolver(dir.Clients(), clients.WithObserver(metrics))

	shared, err := newSharedState(ctx, cfg, resolver)
	if err != nil {
		return err
	}
	defer shared.close()

	grants := ledger.New(dir.Authorizations(), append(shared.ledgerOpts, ledger.WithObserver(metrics))...)

	renderer, err := views.New()
	if err != nil {
		return fmt.Errorf("failed to load views: %w", err)
	}
	errs := apierrors.NewWriter(renderer, !cfg.Production)

	cookies, err := interaction.NewCookieCodec(cfg.Interaction.CookieName, cfg.Interaction.CookieKeys, cfg.SecureCookies())
	if err != nil {
		return fmt.Errorf("failed to create interaction cookie codec: %w", err)
	}

	engine := interaction.NewEngine(resolver, grants, interaction.WithPromptObserver(metrics))

	oidcServer, err := newAuthServer(ctx, cfg, authserver.Deps{
		Clients:            resolver,
		Accounts:           authserver.NewAccounts(dir.Users()),
		Ledger:             grants,
		Decider:            engine,
		Interactions:       shared.store,
		InteractionCookies: cookies,
		Views:              renderer,
		Errors:             errs,
		Observer:           metrics,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := oidcServer.Close(); err != nil {
			logger.Warnw("failed to close authorization engine", "error", err)
		}
	}()

	bridge, err := identity.NewBridge(ctx, identity.Config{
		Issuer:       cfg.Upstream.Issuer,
		ClientID:     cfg.Upstream.ClientID,
		ClientSecret: cfg.Upstream.ClientSecret,
		RedirectURL:  cfg.Upstream.RedirectURL,
		TenantDomain: cfg.Upstream.TenantDomain,
		ResponseType: cfg.Upstream.ResponseType,
		Scopes:       cfg.Upstream.Scopes,
	}, identity.Deps{
		Policy:     identity.NewPolicy(dir.Users()),
		Store:      shared.store,
		Flash:      shared.flash,
		Errors:     errs,
		Observer:   metrics,
		FlashTTL:   cfg.Interaction.FlashTTL,
		HTTPClient: &http.Client{Timeout: cfg.Upstream.Timeout},
	})
	if err != nil {
		return err
	}

	var limiter *api.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = api.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		defer limiter.Close()
	}

	router := api.NewRouter(api.RouterConfig{
		Engine: oidcServer,
		Guard:  interaction.NewGuard(shared.store, cookies, errs),
		Interaction: interaction.NewHandler(interaction.HandlerConfig{
			Store:     shared.store,
			Flash:     shared.flash,
			Engine:    engine,
			Views:     renderer,
			Errors:    errs,
			LoginPath: identity.LoginPath,
			ResumeURL: authserver.ResumeURL,
		}),
		Errors:         errs,
		Bridge:         bridge,
		RateLimiter:    limiter,
		Metrics:        tel.PrometheusHandler(),
		TracerProvider: tel.TracerProvider(),
		MeterProvider:  tel.MeterProvider(),
		Checks:         shared.checks,
	})

	logger.Infow("starting extra-oidc", "issuer", cfg.Issuer(), "address", cfg.ListenAddress, "redis", cfg.Redis.Address != "")
	return api.Serve(ctx, cfg.ListenAddress, router)
}

func newTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Provider, error) {
	telCfg := telemetry.DefaultConfig()
	telCfg.Endpoint = cfg.Telemetry.Endpoint
	telCfg.Insecure = cfg.Telemetry.Insecure
	telCfg.SamplingRate = cfg.Telemetry.SamplingRate
	telCfg.MetricsEnabled = cfg.Telemetry.MetricsEnabled

	tel, err := telemetry.NewProvider(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	return tel, nil
}

// newAuthServer builds the authorization engine. deps.Storage and deps.Keys
// are filled in from cfg.
func newAuthServer(ctx context.Context, cfg *config.Config, deps authserver.Deps) (*authserver.Server, error) {
	keyProvider, err := keys.NewProviderFromConfig(keys.Config{SigningKeyFile: cfg.OIDC.SigningKeyFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}
	deps.Keys = keyProvider
	deps.Storage = storage.NewMemoryStorage(
		authserver.ClientSource(deps.Clients, authserver.DefaultScopes, cfg.Hosts.API))

	srv, err := authserver.New(ctx, authserver.Config{
		Issuer:                    cfg.Issuer(),
		APIAudience:               cfg.Hosts.API,
		HMACSecret:                []byte(cfg.OIDC.HMACSecret),
		AccessTokenLifespan:       cfg.OIDC.AccessTokenLifespan,
		RefreshTokenLifespan:      cfg.OIDC.RefreshTokenLifespan,
		AuthCodeLifespan:          cfg.OIDC.AuthorizeCodeLifespan,
		IDTokenLifespan:           cfg.OIDC.IDTokenLifespan,
		SessionLifespan:           cfg.OIDC.SessionLifespan,
		InteractionTTL:            cfg.Interaction.TTL,
		PostLogoutRedirectURI:     cfg.OIDC.PostLogoutRedirectURI,
		FrontchannelLogoutTimeout: cfg.OIDC.FrontchannelLogoutTimeout,
		CookieKeys:                cfg.Interaction.CookieKeys,
		SecureCookies:             cfg.SecureCookies(),
		Development:               !cfg.Production,
	}, deps)
	if err != nil {
		_ = deps.Storage.Close()
		return nil, fmt.Errorf("failed to create authorization engine: %w", err)
	}
	return srv, nil
}

// sharedState is the state replicas share through Redis, or keep in process
// when no Redis is configured.
type sharedState struct {
	store      interaction.Store
	flash      interaction.FlashStore
	ledgerOpts []ledger.Option
	checks     []v1.Check
	closers    []func() error
}

func newSharedState(ctx context.Context, cfg *config.Config, resolver *clients.Resolver) (*sharedState, error) {
	s := &sharedState{}

	if cfg.Redis.Address == "" {
		logger.Warnw("no redis configured, interactions and client invalidations are local to this process")
		mem := interaction.NewMemoryStore()
		s.store, s.flash = mem, mem
		s.closers = append(s.closers, mem.Close)
		return s, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	s.closers = append(s.closers, rdb.Close)

	if err := rdb.Ping(ctx).Err(); err != nil {
		s.close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Address, err)
	}

	rs := interaction.NewRedisStore(rdb, cfg.Redis.KeyPrefix)
	s.store, s.flash = rs, rs
	s.ledgerOpts = append(s.ledgerOpts, ledger.WithLocker(ledger.NewRedisLocker(rdb, cfg.Redis.KeyPrefix, 0, 0)))
	s.checks = append(s.checks, v1.Check{
		Name:  "redis",
		Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	sub, err := directory.NewChangeFeed(rdb, cfg.Directory.ChangesChannel).Subscribe(ctx)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to subscribe to client changes: %w", err)
	}
	// Closed before the client.
	s.closers = append([]func() error{sub.Close}, s.closers...)
	go resolver.Watch(ctx, sub)

	return s, nil
}

func (s *sharedState) close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			logger.Warnw("failed to release resource", "error", err)
		}
	}
}
