package otel

import (
	"context"
	"strings"
	"testing"
)

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing service name")
	}
}

func TestInitWithoutExportersShutsDownCleanly(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "escrowd", Environment: "test"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("authorization=Bearer abc, x-tenant = escrow ,broken,=skip")
	if len(headers) != 2 {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if headers["authorization"] != "Bearer abc" || headers["x-tenant"] != "escrow" {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestTracerIsUsableWithoutInit(t *testing.T) {
	_, span := Tracer("test").Start(context.Background(), "noop")
	span.End()
}

func TestMergeHeadersPrefersExtra(t *testing.T) {
	base := map[string]string{"authorization": "a", "x-tenant": "escrow"}
	merged := MergeHeaders(base, map[string]string{"authorization": "b"})
	if merged["authorization"] != "b" || merged["x-tenant"] != "escrow" {
		t.Fatalf("unexpected merge: %v", merged)
	}
	if base["authorization"] != "a" {
		t.Fatalf("base modified: %v", base)
	}
}

func TestSamplerBounds(t *testing.T) {
	for _, ratio := range []float64{0, 1, 2} {
		if got := sampler(ratio).Description(); !strings.Contains(got, "root:AlwaysOnSampler") {
			t.Fatalf("ratio %v: unexpected sampler %s", ratio, got)
		}
	}
	if got := sampler(0.25).Description(); !strings.Contains(got, "TraceIDRatioBased") {
		t.Fatalf("expected ratio sampler, got %s", got)
	}
}
