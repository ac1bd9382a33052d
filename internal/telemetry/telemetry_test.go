package telemetry

import (
	"context"
	"testing"
)

func TestInitAndShutdown(t *testing.T) {
	p, err := Init(Config{ServiceName: "aid-agent-test", ServiceVersion: "0.0.0-test"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.Tracer == nil || p.Meter == nil {
		t.Fatal("Init must populate both providers")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
