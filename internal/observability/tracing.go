package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/leo-topology/internal/logging"
)

// TracingConfig selects the simulator's trace exporter. Two exporters
// are supported: pretty-printed stdout spans for local runs, and OTLP
// over gRPC for shipping to a collector.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // "stdout" or "otlp"
	Endpoint    string // OTLP collector address, host:port
	SampleRatio float64
}

// TracingConfigFromEnv reads the TOPOLOGY_TRACING_* variables. Tracing
// stays off unless TOPOLOGY_TRACING_ENABLED=true.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("TOPOLOGY_TRACING_ENABLED"), "true"),
		ServiceName: envOr("TOPOLOGY_TRACING_SERVICE_NAME", "topology-engine"),
		Exporter:    strings.ToLower(envOr("TOPOLOGY_TRACING_EXPORTER", "stdout")),
		Endpoint:    envOr("TOPOLOGY_OTLP_ENDPOINT", "localhost:4317"),
		SampleRatio: 1.0,
	}
	if raw := os.Getenv("TOPOLOGY_TRACING_SAMPLE_RATIO"); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil && ratio >= 0 && ratio <= 1 {
			cfg.SampleRatio = ratio
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// InitTracing installs the global tracer provider and propagators per
// cfg. The returned shutdown flushes pending spans under a bounded
// timeout; flush failures are logged rather than returned since the
// caller is already exiting.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context), error) {
	if log == nil {
		log = logging.Noop()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		return func(context.Context) {}, nil
	}

	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.Exporter {
	case "stdout":
		exp, err = stdouttrace.New(
			stdouttrace.WithWriter(os.Stdout),
			stdouttrace.WithPrettyPrint(),
		)
	case "otlp":
		exp, err = otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "topology"),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn(ctx, "tracing shutdown failed", logging.String("error", err.Error()))
		}
	}, nil
}
