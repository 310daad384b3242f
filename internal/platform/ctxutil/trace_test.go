package ctxutil

import (
	"context"
	"testing"
)

func TestInjectPayloadRoundTrip(t *testing.T) {
	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "t-1", RequestID: "r-1"})
	payload := InjectPayload(ctx, map[string]any{"request_id": "caller"})
	if payload["trace_id"] != "t-1" {
		t.Fatalf("expected trace id injected, got %v", payload["trace_id"])
	}
	if payload["request_id"] != "caller" {
		t.Fatalf("expected caller request id kept, got %v", payload["request_id"])
	}
	td := FromPayload(payload)
	if td == nil || td.TraceID != "t-1" || td.RequestID != "caller" {
		t.Fatalf("unexpected trace data: %+v", td)
	}
}

func TestFromPayloadEmpty(t *testing.T) {
	if td := FromPayload(map[string]any{"x": 1}); td != nil {
		t.Fatalf("expected nil, got %+v", td)
	}
	if GetTraceData(context.Background()) != nil {
		t.Fatalf("expected nil trace data on bare context")
	}
}

func TestCallerFollowsPayload(t *testing.T) {
	ctx := WithTraceData(context.Background(), &TraceData{RequestID: "r-2", Caller: "ingest"})
	payload := InjectPayload(ctx, nil)
	if payload["caller"] != "ingest" {
		t.Fatalf("caller not injected: %v", payload)
	}
	td := FromPayload(map[string]any{"caller": "dashboard"})
	if td == nil || td.Caller != "dashboard" {
		t.Fatalf("caller-only payload: %+v", td)
	}
	fields := td.LogFields()
	if len(fields) != 2 || fields[0] != "caller" || fields[1] != "dashboard" {
		t.Fatalf("log fields: %v", fields)
	}
}
