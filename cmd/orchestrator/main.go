// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command orchestrator starts the autonomous research agent orchestrator.
//
// This is the main entry point for the containerized orchestrator service.
// It reads configuration from environment variables, opens the session
// store, starts the trigger reconciler's background loop, and serves the
// ambient health/metrics HTTP surface.
//
// # Environment Variables
//
//   - ORCHESTRATOR_PORT: HTTP server port (default: 12210)
//   - LLM_BACKEND_TYPE: LLM provider - claude, openai (default: claude)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//   - DATABASE_URL: Postgres DSN for the session/action store
//   - STRATEGIES_DIR: filesystem directory for strategy/assessment artifacts (default: ./strategies)
//   - AGENT_ENABLED: enables the reconciler's background loop (default: true)
//   - AGENT_TRIGGER_INTERVAL_SECONDS: reconciler tick interval (default: 300)
//   - AGENT_MODEL, AGENT_MAX_TOKENS, AGENT_TIMEOUT_SECONDS, AGENT_MAX_ITERATIONS,
//     AGENT_MAX_INPUT_TOKENS: agentic loop bounds (see services/llm.DefaultInvokerConfig)
//   - TRAINING_GATE_MIN_ACCURACY, TRAINING_GATE_MAX_FINAL_LOSS,
//     TRAINING_GATE_MIN_LOSS_REDUCTION, BACKTEST_GATE_MIN_WIN_RATE,
//     BACKTEST_GATE_MAX_DRAWDOWN, BACKTEST_GATE_MIN_SHARPE: gate thresholds
//     (see services/orchestrator/gates)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_DIR: optional directory for JSON file logging alongside stderr
//   - LOG_JSON: stderr log format, true for JSON, false for text (default: true)
//
// # Usage
//
//	# Build
//	go build -o orchestrator ./cmd/orchestrator
//
//	# Run
//	./orchestrator
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/AleutianAI/researchorchestrator/pkg/logging"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator"
	"github.com/AleutianAI/researchorchestrator/services/orchestrator/reconciler"
)

func main() {
	appLogger := logging.New(logging.Config{
		Level:   parseLogLevel(getEnvString("LOG_LEVEL", "info")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "orchestrator",
		JSON:    getEnvBool("LOG_JSON", true),
	})
	defer appLogger.Close()
	slog.SetDefault(appLogger.Slog())

	cfg := orchestrator.Config{
		Port:          getEnvInt("ORCHESTRATOR_PORT", 12210),
		LLMBackend:    getEnvString("LLM_BACKEND_TYPE", "claude"),
		OTelEndpoint:  getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StrategiesDir: getEnvString("STRATEGIES_DIR", "./strategies"),
		Reconciler: reconciler.Config{
			Enabled:  getEnvBool("AGENT_ENABLED", true),
			Interval: time.Duration(getEnvInt("AGENT_TRIGGER_INTERVAL_SECONDS", 300)) * time.Second,
		},
	}

	slog.Info("starting orchestrator",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"reconciler_enabled", cfg.Reconciler.Enabled,
		"reconciler_interval", cfg.Reconciler.Interval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := orchestrator.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("failed to create orchestrator: %v", err)
	}
	defer svc.Close()

	if err := svc.Run(); err != nil {
		log.Fatalf("orchestrator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// parseLogLevel maps LOG_LEVEL's string value to a logging.Level, defaulting
// to Info for an unrecognized value.
func parseLogLevel(s string) logging.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
