// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package advisory provides the advisor engagement service for the FinHaven
// dashboard.
//
// This package contains the main Service type that coordinates all
// components: the engagement store and coordinator, the realtime room
// registry, HTTP routing, and observability infrastructure.
//
// # Identity Integration
//
// The service accepts an identity.Provider via New. The default
// NopProvider resolves every request to a local admin principal, which
// keeps single-user deployments free of identity infrastructure;
// multi-user deployments inject a real provider.
//
// # Usage
//
//	cfg := advisory.Config{Port: 12310, DataDir: "/var/lib/finhaven"}
//	svc, err := advisory.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package advisory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/finhaven/finhaven/pkg/identity"
	"github.com/finhaven/finhaven/pkg/logging"
	"github.com/finhaven/finhaven/services/advisory/engagement"
	"github.com/finhaven/finhaven/services/advisory/observability"
	"github.com/finhaven/finhaven/services/advisory/realtime"
	"github.com/finhaven/finhaven/services/advisory/routes"
	storage "github.com/finhaven/finhaven/services/advisory/storage/badger"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the advisory service.
//
// Run blocks until shutdown (SIGINT/SIGTERM) or a fatal server error, then
// drains in-flight requests and closes the store. Run is called at most
// once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers must
	// not modify the routes.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds advisory service configuration. Zero values use defaults
// applied by New, so Config{} is a runnable configuration (in-memory store,
// port 12310).
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// DataDir is the badger database directory. Empty means an in-memory
	// store, which loses all engagement state on restart.
	DataDir string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "finhaven-otel-collector:4317"
	OTelEndpoint string

	// EnableTracing controls whether the OTLP exporter is started. The
	// collector connection is lazy, so enabling it without a reachable
	// collector only costs buffered spans.
	EnableTracing bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses GIN_MODE env var or "debug".
	GinMode string

	// ShutdownGrace bounds how long Run waits for in-flight requests on
	// shutdown. Default: 10s
	ShutdownGrace time.Duration
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "finhaven-otel-collector:4317"
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	logger        *slog.Logger
	router        *gin.Engine
	db            *storage.DB
	coordinator   *engagement.Coordinator
	registry      *realtime.Registry
	provider      identity.Provider
	tracerCleanup func(context.Context)
}

// New creates a new advisory Service.
//
// # Description
//
// Initializes all components in dependency order: metrics, tracing, the
// badger store, the engagement coordinator, the realtime registry, and the
// HTTP router. If provider is nil, identity.NopProvider is used and every
// request runs as the local admin.
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - provider: Identity provider. May be nil.
//
// # Outputs
//
//   - Service: Ready-to-run advisory service.
//   - error: Non-nil if the store or tracer fails to initialize.
func New(cfg Config, provider identity.Provider) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
		logger: logging.Default("advisory"),
	}

	if provider != nil {
		s.provider = provider
	} else {
		s.provider = &identity.NopProvider{}
	}

	if s.config.EnableTracing {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	metrics := observability.InitMetrics()

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, err
	}

	s.coordinator = engagement.NewCoordinator(
		engagement.NewStore(s.db), s.logger, metrics)
	s.registry = realtime.NewRegistry(s.logger, metrics)

	s.initRouter()

	return s, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a fatal
// server error. On shutdown it drains in-flight requests for up to
// ShutdownGrace, then closes the store and flushes the tracer.
func (s *service) Run() error {
	defer s.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting advisory server", "port", s.config.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down advisory server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			s.config.ShutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing with an OTLP
// exporter over insecure gRPC, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("advisory-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore opens the badger database. An empty DataDir selects the
// in-memory store for local development and tests.
func (s *service) initStore() error {
	var err error
	if s.config.DataDir == "" {
		s.logger.Warn("no data directory configured, engagement state is in-memory only")
		s.db, err = storage.OpenInMemory()
	} else {
		cfg := storage.DefaultConfig()
		cfg.Path = s.config.DataDir
		cfg.Logger = s.logger
		s.db, err = storage.Open(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to open engagement store: %w", err)
	}
	return nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("advisory-service"))

	routes.SetupRoutes(s.router, s.provider, s.coordinator, s.registry)
}

// cleanup releases all resources held by the service. Called when Run exits
// or on initialization failure.
func (s *service) cleanup() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
