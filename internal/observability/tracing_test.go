package observability

import (
	"context"
	"testing"
)

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("TOPOLOGY_TRACING_ENABLED", "")
	t.Setenv("TOPOLOGY_TRACING_EXPORTER", "")
	t.Setenv("TOPOLOGY_TRACING_SERVICE_NAME", "")
	t.Setenv("TOPOLOGY_OTLP_ENDPOINT", "")
	t.Setenv("TOPOLOGY_TRACING_SAMPLE_RATIO", "")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled {
		t.Fatal("tracing enabled by default")
	}
	if cfg.Exporter != "stdout" {
		t.Fatalf("default exporter = %q, want stdout", cfg.Exporter)
	}
	if cfg.ServiceName != "topology-engine" {
		t.Fatalf("default service name = %q", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4317" {
		t.Fatalf("default endpoint = %q", cfg.Endpoint)
	}
	if cfg.SampleRatio != 1.0 {
		t.Fatalf("default sample ratio = %v, want 1.0", cfg.SampleRatio)
	}
}

func TestTracingConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("TOPOLOGY_TRACING_ENABLED", "TRUE")
	t.Setenv("TOPOLOGY_TRACING_EXPORTER", "OTLP")
	t.Setenv("TOPOLOGY_TRACING_SERVICE_NAME", "sim-west")
	t.Setenv("TOPOLOGY_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("TOPOLOGY_TRACING_SAMPLE_RATIO", "0.25")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled {
		t.Fatal("tracing not enabled")
	}
	if cfg.Exporter != "otlp" {
		t.Fatalf("exporter = %q, want otlp", cfg.Exporter)
	}
	if cfg.ServiceName != "sim-west" {
		t.Fatalf("service name = %q", cfg.ServiceName)
	}
	if cfg.Endpoint != "collector:4317" {
		t.Fatalf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.SampleRatio != 0.25 {
		t.Fatalf("sample ratio = %v, want 0.25", cfg.SampleRatio)
	}
}

func TestTracingConfigFromEnvBadRatioIgnored(t *testing.T) {
	t.Setenv("TOPOLOGY_TRACING_SAMPLE_RATIO", "2.5")

	cfg := TracingConfigFromEnv()
	if cfg.SampleRatio != 1.0 {
		t.Fatalf("sample ratio = %v, want default 1.0", cfg.SampleRatio)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	shutdown(ctx)
}

func TestInitTracingUnsupportedExporter(t *testing.T) {
	cfg := TracingConfig{Enabled: true, Exporter: "jaeger"}
	if _, err := InitTracing(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected an error for an unsupported exporter")
	}
}
