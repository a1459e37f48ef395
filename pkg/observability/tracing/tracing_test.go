package tracing

import (
	"context"
	"testing"

	"github.com/synaptica-ai/capacity-planner/pkg/common/config"
	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
)

func TestInitDisabledInstallsNoop(t *testing.T) {
	logger.Silence()
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatal("noop provider should produce invalid span contexts")
	}
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown)
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	if _, err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"}); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestConfigFromClampsRatio(t *testing.T) {
	cfg := ConfigFrom(&config.Config{TracingEnabled: true, TracingSampleRatio: 3, TracingServiceName: "planner"})
	if cfg.SampleRatio != 1 || !cfg.Enabled || cfg.ServiceName != "planner" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
