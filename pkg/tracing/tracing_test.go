package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Enabled() {
		t.Error("default config should not export spans")
	}
	if cfg.ServiceName != "spycheck" {
		t.Errorf("ServiceName = %s, want spycheck", cfg.ServiceName)
	}
	if cfg.SampleRatio != 1.0 {
		t.Errorf("SampleRatio = %v, want 1.0", cfg.SampleRatio)
	}
}

func TestSetup_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("disabled setup replaced the global tracer provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown error = %v", err)
	}
}

func TestSetup_InvalidSampleRatio(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OTLPEndpoint = "127.0.0.1:4318"
	cfg.SampleRatio = 1.5

	if _, err := Setup(context.Background(), cfg); err == nil {
		t.Error("Setup() should reject a sample ratio above 1")
	}
}

func TestShutdown(t *testing.T) {
	want := errors.New("flush failed")

	var hadDeadline bool
	err := Shutdown(func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return want
	}, time.Second)

	if !errors.Is(err, want) {
		t.Errorf("Shutdown() error = %v, want %v", err, want)
	}
	if !hadDeadline {
		t.Error("shutdown context should carry a deadline")
	}
}
