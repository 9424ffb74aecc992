package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/formulary/formulary/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "formulary"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("engine")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"run_id":  "run-123",
		"formula": "hawk-tui",
	})

	// Log at different levels
	logger.Debug("Resolving dependencies")
	logger.Info("Plan resolved")
	logger.Warn("Recommended dependency missing")

	// Log with error
	err := fmt.Errorf("network timeout")
	logger.WithError(err).Error("Failed to fetch source artifact")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "none"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a run span
	ctx, span := tel.Tracer.StartRunSpan(ctx, "run-789", "hawk-tui")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("plan.id", "plan-789"),
		attribute.Int("plan.steps", 3),
	)

	// Nested step span
	ctx, stepSpan := tel.Tracer.StartStepSpan(ctx, "run-789", "hawk-tui", "install")
	defer stepSpan.End()

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(stepSpan)
	_ = ctx

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record run metrics
	tel.Metrics.RecordRunStarted("hawk-tui")

	// Simulate run execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordRunCompleted("verified", duration)

	// Record step and phase metrics
	tel.Metrics.RecordStepExecution("install", "verified")
	tel.Metrics.RecordPhaseDuration("test", 25*time.Millisecond)

	// Record fetch metrics
	tel.Metrics.RecordFetch("hit", 2*time.Millisecond)

	// Record error metrics
	tel.Metrics.RecordError("UNREACHABLE")

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishRunStarted("run-123", "hawk-tui")
	tel.Events.PublishStepStarted("run-123", "hawk-tui", "install")
	tel.Events.PublishStepCompleted("run-123", "hawk-tui", "verified", 25*time.Millisecond)

	// Output varies due to async nature, no output specified
}

// Example_runInstrumentation demonstrates instrumenting a complete run.
func Example_runInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start run context
	runID := "run-123"
	ctx = telemetry.WithRunContext(ctx, runID, "hawk-tui")

	// Execute run (simulated)
	executeStep(ctx, runID)

	// End run context
	telemetry.EndRunContext(ctx, runID, "verified", nil)

	fmt.Println("Run instrumentation complete")
	// Output: Run instrumentation complete
}

func executeStep(ctx context.Context, runID string) {
	ctx = telemetry.WithStepContext(ctx, runID, "hawk-tui", "install")

	// Get logger from context
	logger := telemetry.FromContext(ctx)
	logger.Info("Executing step")

	// Phase instrumentation
	_ = telemetry.RecordPhase(ctx, "hawk-tui", "install", func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	// End step context
	telemetry.EndStepContext(ctx, runID, "hawk-tui", "install", "verified", nil)
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only policy violations)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Policy event: %s\n", event.Message)
	}, telemetry.FilterByType("policy.violation"))

	// Publish various events
	tel.Events.PublishRunStarted("run-123", "hawk-tui")                   // Info - filtered by level filter
	tel.Events.PublishPolicyViolation("hawk-tui", "source_https", "http") // Error - passes level filter
	tel.Events.PublishRunFailed("run-123", "test phase timed out")        // Error - passes level filter

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "formulary"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "formulary"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	engineLogger := tel.Logger.NewComponentLogger("engine")
	fetchLogger := tel.Logger.NewComponentLogger("fetch")
	envLogger := tel.Logger.NewComponentLogger("envbuild")

	engineLogger.Info("Engine initialized")
	fetchLogger.Info("Cache directory ready")
	envLogger.Info("Environment root prepared")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
