package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/formulary/formulary/pkg/engine"
	"github.com/formulary/formulary/pkg/telemetry"
)

// runTelemetry bundles the observability pieces of an install run: the
// Prometheus metrics registry, the OpenTelemetry tracer provider, and the
// event bus that drives progress output.
type runTelemetry struct {
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	bus     *telemetry.EventPublisher
}

// setupTelemetry builds metrics, tracing, and the event bus from command
// flags. Metrics are served only when metricsAddr is set; traces are
// exported only when traceExporter is set. The event bus is always live so
// the progress printer sees every run.
func setupTelemetry(metricsAddr, traceExporter, traceEndpoint, serviceVersion string) (*runTelemetry, error) {
	defaults := telemetry.DefaultConfig()

	mcfg := defaults.Metrics
	mcfg.Enabled = metricsAddr != ""
	if mcfg.Enabled {
		mcfg.ListenAddress = metricsAddr
	}
	metrics, err := telemetry.NewMetrics(mcfg)
	if err != nil {
		return nil, fmt.Errorf("setting up metrics: %w", err)
	}
	if mcfg.Enabled {
		if err := metrics.StartMetricsServer(); err != nil {
			return nil, fmt.Errorf("starting metrics server: %w", err)
		}
	}

	tcfg := defaults.Tracing
	tcfg.Enabled = traceExporter != ""
	if tcfg.Enabled {
		tcfg.Exporter = traceExporter
		tcfg.Endpoint = traceEndpoint
	}
	tracer, err := telemetry.NewTracer(tcfg, defaults.ServiceName, serviceVersion, "cli")
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	bus, err := telemetry.NewEventPublisher(defaults.Events)
	if err != nil {
		return nil, fmt.Errorf("setting up event bus: %w", err)
	}

	return &runTelemetry{metrics: metrics, tracer: tracer, bus: bus}, nil
}

// Close drains the event bus and flushes pending spans. It uses its own
// timeout so shutdown still completes after the run context is cancelled.
func (rt *runTelemetry) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rt.bus.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Event bus shutdown failed")
	}
	if err := rt.tracer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Tracer shutdown failed")
	}
}

// busPublisher bridges execution timeline events onto the telemetry event
// bus so bus subscribers, such as the progress printer, see them.
type busPublisher struct {
	bus *telemetry.EventPublisher
}

func (p busPublisher) Publish(_ context.Context, event engine.Event) error {
	return p.bus.Publish(telemetry.Event{
		ID:        event.ID,
		Timestamp: event.Timestamp,
		Type:      busEventType(event),
		Source:    "engine",
		RunID:     event.RunID,
		Step:      event.Step,
		Phase:     string(event.Phase),
		Message:   event.Message,
		Level:     event.Level,
	})
}

// busEventType maps an execution timeline event onto the bus taxonomy.
func busEventType(event engine.Event) string {
	switch event.Type {
	case engine.EventRunStarted:
		return telemetry.EventTypeRunStarted
	case engine.EventRunCompleted:
		if event.Level == telemetry.EventLevelError {
			return telemetry.EventTypeRunFailed
		}
		return telemetry.EventTypeRunCompleted
	case engine.EventStepStatusChanged:
		switch event.Status {
		case engine.StepVerified:
			return telemetry.EventTypeStepCompleted
		case engine.StepFailed:
			return telemetry.EventTypeStepFailed
		default:
			return telemetry.EventTypeStepStarted
		}
	case engine.EventPhaseStarted:
		return telemetry.EventTypePhaseStarted
	case engine.EventPhaseCompleted:
		return telemetry.EventTypePhaseCompleted
	}
	return string(event.Type)
}

// fanoutPublisher forwards each execution event to every sink in order.
type fanoutPublisher []engine.EventPublisher

func (f fanoutPublisher) Publish(ctx context.Context, event engine.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newProgressPrinter returns a bus subscriber that renders timeline events
// as one-line progress updates.
func newProgressPrinter(out io.Writer) telemetry.EventSubscriber {
	return func(event telemetry.Event) {
		switch {
		case event.Step != "" && event.Phase != "":
			fmt.Fprintf(out, "  %s: %s\n", event.Step, event.Phase)
		case event.Step != "":
			fmt.Fprintf(out, "  %s\n", event.Message)
		default:
			fmt.Fprintf(out, "==> %s\n", event.Message)
		}
	}
}
