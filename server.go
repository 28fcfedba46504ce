package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/integrations"
	"github.com/Ramsey-B/fern/pkg/integrations/airtable"
	"github.com/Ramsey-B/fern/pkg/integrations/hubspot"
	"github.com/Ramsey-B/fern/pkg/integrations/notion"
	"github.com/Ramsey-B/fern/pkg/kvstore"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/oauth"
	redisclient "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// server holds the wired service and its closable resources
type server struct {
	cfg       config.Config
	logger    ectologger.Logger
	echo      *echo.Echo
	redis     *redisclient.Client
	publisher *events.Publisher
	checker   *health.Checker
	tracer    *sdktrace.TracerProvider
}

// newServer wires every component from the configuration
func newServer(ctx context.Context, cfg config.Config, logger ectologger.Logger) (*server, error) {
	s := &server{cfg: cfg, logger: logger}

	if err := s.setupTracing(ctx); err != nil {
		return nil, err
	}

	redisClient, err := redisclient.NewClient(redisclient.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	s.redis = redisClient

	store := kvstore.NewRedisStore(redisClient)
	httpClient := httpclient.NewClient(httpclient.DefaultConfig(), logger)

	registry := integrations.NewRegistry()
	registry.Register(hubspot.New(providerConfig(cfg.OAuth.HubSpot), httpClient, logger))
	registry.Register(notion.New(providerConfig(cfg.OAuth.Notion), httpClient, logger))
	registry.Register(airtable.New(providerConfig(cfg.OAuth.Airtable), cfg.OAuth.AirtableCodeVerifier, httpClient, logger))

	states := oauth.NewStateManager(store, cfg.StateTokenTTL, logger)
	creds := oauth.NewCredentialStore(store, cfg.StateTokenTTL, logger)
	exchange := oauth.NewExchangeClient(httpClient, registry, logger)

	observers := oauth.MultiObserver{oauth.NewLogObserver(logger)}
	if cfg.Kafka.Enabled {
		s.publisher = events.NewPublisher(events.ParseConfig(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		observers = append(observers, s.publisher)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Server.ReadTimeout = cfg.HTTPReadTimeout
	e.Server.WriteTimeout = cfg.HTTPWriteTimeout
	e.Server.IdleTimeout = cfg.HTTPIdleTimeout

	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	}))

	var routeMiddleware []echo.MiddlewareFunc
	if cfg.Auth.Enabled {
		routeMiddleware = append(routeMiddleware, middleware.Authentication(logger, cfg.Auth.IssuerURL, cfg.Auth.ClientID))
	}

	handlers.NewIntegrationHandler(registry, states, creds, exchange, observers, logger).RegisterRoutes(e, routeMiddleware...)
	handlers.NewLogsHandler(logger).RegisterRoutes(e)

	s.checker = health.NewChecker(redisClient.Redis(), version)
	s.checker.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo = e
	return s, nil
}

// setupTracing installs the global tracer, exporting via OTLP when enabled
func (s *server) setupTracing(ctx context.Context) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", s.cfg.AppName),
			attribute.String("service.version", version),
			attribute.String("deployment.environment", s.cfg.Env),
		)),
	}

	if s.cfg.OTLP.Enabled {
		exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: s.cfg.OTLP.Endpoint,
			Protocol: s.cfg.OTLP.Protocol,
			Insecure: s.cfg.OTLP.Insecure,
			Timeout:  exporters.DefaultOTLPConfig().Timeout,
		})
		if err != nil {
			return fmt.Errorf("otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	s.tracer = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(s.tracer)
	tracing.SetTracer(s.tracer.Tracer(s.cfg.AppName))

	return nil
}

// start runs the HTTP listener until the server is shut down
func (s *server) start() error {
	s.checker.SetReady(true)
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// shutdown drains the listener and closes every resource
func (s *server) shutdown(ctx context.Context) {
	s.checker.SetReady(false)

	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to shut down HTTP server cleanly")
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close event publisher")
		}
	}
	if err := s.redis.Close(); err != nil {
		s.logger.WithError(err).Error("Failed to close Redis connection")
	}
	if err := s.tracer.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to shut down tracer provider")
	}
}

func providerConfig(p config.ProviderConfig) integrations.OAuthConfig {
	return integrations.OAuthConfig{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURI:  p.RedirectURI,
		Scopes:       p.Scopes,
	}
}
