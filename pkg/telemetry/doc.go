// Package telemetry provides observability instrumentation for Formulary.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring and debugging install runs.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "formulary"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithRunID("run-123").WithFormula("hawk-tui")
//	logger.Info("Starting install run")
//	logger.WithError(err).Error("Install failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into run flow and phase timings:
//
//	ctx, span := tel.Tracer.StartRunSpan(ctx, runID, formulaName)
//	defer span.End()
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track install behavior and performance:
//
//	tel.Metrics.RecordRunStarted("hawk-tui")
//	tel.Metrics.RecordRunCompleted("verified", duration)
//	tel.Metrics.RecordStepExecution("install", "verified")
//	tel.Metrics.RecordPhaseDuration("test", duration)
//	tel.Metrics.RecordFetch("hit", duration)
//
// Metrics are exposed via HTTP at /metrics when enabled.
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishRunStarted(runID, formulaName)
//	tel.Events.PublishStepCompleted(runID, "hawk-tui", "verified", duration)
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByStep
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Run context
//	ctx = telemetry.WithRunContext(ctx, runID, formulaName)
//	defer telemetry.EndRunContext(ctx, runID, status, err)
//
//	// Step context
//	ctx = telemetry.WithStepContext(ctx, runID, step, action)
//	defer telemetry.EndStepContext(ctx, runID, step, action, status, err)
//
//	// Phase instrumentation
//	err := telemetry.RecordPhase(ctx, step, "install", func(ctx context.Context) error {
//	    return installIntoEnvironment(ctx)
//	})
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
package telemetry
