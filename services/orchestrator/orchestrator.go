// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator provides the core orchestrator service for the
// autonomous research agent.
//
// This package contains the main Orchestrator type that coordinates the
// components of the service: the session store, the operation registry,
// the LLM-backed design/assessment workers, the trigger reconciler that
// drives the research cycle state machine, and a thin health/metrics HTTP
// surface.
//
// # Enterprise Integration
//
// The orchestrator supports dependency injection via extensions.ServiceOptions,
// enabling a production deployment to supply real implementations of the
// training/backtest starters, operation status provider, indicator/symbol
// catalogs, and strategy validator. None of those subsystems are designed
// here; without them injected, the orchestrator runs its reconciler loop but
// never completes a research cycle.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 12210}
//	svc, err := orchestrator.New(context.Background(), cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
//
// # Import Path
//
//	import "github.com/AleutianAI/researchorchestrator/services/orchestrator"
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/researchorchestrator/pkg/extensions"
	"github.com/AleutianAI/researchorchestrator/services/llm"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/gates"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/observability"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/reconciler"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/registry"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/store"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/workers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Description
//
// Service abstracts the orchestrator lifecycle, enabling testing and
// alternative implementations. The interface follows the minimal surface
// area principle - only essential lifecycle methods are exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error. The
	// reconciler loop and its workers run in the background regardless of
	// whether Run is ever called; Run only owns the ambient HTTP surface.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Close stops the reconciler loop, closes the store, and shuts down the
	// tracer. Safe to call once after Run returns, or standalone in tests.
	Close()
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options.
//
// # Description
//
// Config centralizes all configuration for the orchestrator service.
// Values can be populated from environment variables (see cmd/orchestrator)
// or programmatically for testing. Zero values are filled in by
// applyConfigDefaults.
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int

	// LLMBackend selects the tool-use-capable LLM provider.
	// Valid values: "claude"/"anthropic", "openai". Default: "claude"
	LLMBackend string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus /metrics endpoint. Default: true
	EnableMetrics bool

	// DatabaseURL is the Postgres DSN for the session/action store.
	DatabaseURL string

	// StrategiesDir is the filesystem directory design/assessment workers
	// read and write strategy YAML and assessment artifacts in.
	// Default: "./strategies"
	StrategiesDir string

	// Invoker bounds the agentic LLM loop. Default: llm.DefaultInvokerConfig().
	Invoker llm.InvokerConfig

	// Reconciler bounds the background trigger-reconciler loop.
	// Default: reconciler.DefaultConfig().
	Reconciler reconciler.Config
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Fields
//
//   - config: Service configuration
//   - opts: Extension options for the externally-owned collaborators
//   - router: Gin HTTP engine exposing health/metrics/session-status routes
//   - store: Session/action persistence
//   - registry: In-process AGENT_DESIGN/AGENT_ASSESSMENT operation tracking
//   - reconciler: Background trigger-reconciler loop
//   - tracerCleanup: Function to shut down the tracer on exit
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New() returns.
type service struct {
	config        Config
	opts          extensions.ServiceOptions
	router        *gin.Engine
	store         store.Store
	registry      *registry.Registry
	reconciler    *reconciler.Reconciler
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new orchestrator Service with the given configuration.
//
// # Description
//
// New initializes all orchestrator components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Opens the session/action store and recovers orphaned sessions
//  5. Creates the LLM client, invoker, and design/assessment workers
//  6. Starts the trigger reconciler's background loop
//  7. Sets up the ambient HTTP routes
//
// If opts is nil, extensions.DefaultOptions() is used — the orchestrator
// will run but never complete a research cycle, since every collaborator
// defaults to a no-op that refuses to start jobs.
func New(ctx context.Context, cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("initialized Prometheus metrics for the research-agent orchestrator")
	}

	st, err := store.Open(ctx, s.config.DatabaseURL)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	s.store = st

	s.registry = registry.New()

	llmClient, err := newLLMClient(s.config.LLMBackend)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	invoker := llm.NewInvoker(llmClient, s.config.Invoker)
	designWorker := workers.NewDesignWorker(s.registry, s.store, invoker, s.opts, s.config.StrategiesDir)
	assessmentWorker := workers.NewAssessmentWorker(s.registry, s.store, invoker, s.opts, s.config.StrategiesDir)

	gateEvaluator := gates.NewEvaluatorFromEnv()
	s.reconciler = reconciler.New(s.store, gateEvaluator, s.opts, designWorker, assessmentWorker, s.config.Reconciler)
	if err := s.reconciler.Start(ctx); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to start reconciler: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("starting orchestrator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Close stops the reconciler loop, closes the store, and shuts down the
// tracer.
func (s *service) Close() {
	s.cleanup()
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "claude"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	cfg.EnableMetrics = true

	if cfg.StrategiesDir == "" {
		cfg.StrategiesDir = "./strategies"
	}
	if cfg.Invoker == (llm.InvokerConfig{}) {
		cfg.Invoker = llm.DefaultInvokerConfig()
	}
	if cfg.Reconciler == (reconciler.Config{}) {
		cfg.Reconciler = reconciler.DefaultConfig()
	}

	return cfg
}

// newLLMClient builds the tool-use-capable LLM client for the configured
// backend. Only the two backends whose underlying SDKs speak a tool-call
// wire format are supported (see DESIGN.md).
func newLLMClient(backend string) (llm.LLMClient, error) {
	switch backend {
	case "openai":
		slog.Info("using OpenAI LLM backend")
		return llm.NewOpenAIClient()
	case "claude", "anthropic", "":
		slog.Info("using Anthropic (Claude) LLM backend")
		return llm.NewAnthropicClient()
	default:
		return nil, fmt.Errorf("unsupported LLM backend %q (valid: claude, openai)", backend)
	}
}

// initTracer initializes OpenTelemetry distributed tracing.
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
		resource.WithAttributes(semconv.ServiceNameKey.String("agent-orchestrator-service")))
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
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initRouter sets up the Gin HTTP router with the ambient health/metrics/
// session-status routes. There is no chat or RAG surface here — the
// reconciler loop, not an HTTP handler, drives the research cycle.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("agent-orchestrator-service"))

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if s.config.EnableMetrics {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.router.GET("/sessions/active", s.handleActiveSession)
}

// handleActiveSession reports the single active research session, if any.
func (s *service) handleActiveSession(c *gin.Context) {
	session, err := s.store.GetActiveSession(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNoActiveSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

// cleanup releases all resources held by the service. Safe to call before
// every field is populated (used on partial-initialization failure in New).
func (s *service) cleanup() {
	if s.reconciler != nil {
		if err := s.reconciler.Stop(); err != nil {
			slog.Warn("reconciler stop error", "error", err)
		}
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
