package ctxutil

import (
	"context"
	"fmt"
	"strings"
)

type traceDataKey struct{}

// TraceData follows a request into the jobs it enqueues so job logs can be joined back to it.
type TraceData struct {
	TraceID   string
	RequestID string
	// Caller names the upstream system (ingest pipeline, dashboard) that issued the request.
	Caller string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	if td == nil {
		return ctx
	}
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// InjectPayload copies trace identifiers into a job payload without overwriting caller-set keys.
func InjectPayload(ctx context.Context, payload map[string]any) map[string]any {
	if payload == nil {
		payload = map[string]any{}
	}
	td := GetTraceData(ctx)
	if td == nil {
		return payload
	}
	if _, ok := payload["trace_id"]; !ok && td.TraceID != "" {
		payload["trace_id"] = td.TraceID
	}
	if _, ok := payload["request_id"]; !ok && td.RequestID != "" {
		payload["request_id"] = td.RequestID
	}
	if _, ok := payload["caller"]; !ok && td.Caller != "" {
		payload["caller"] = td.Caller
	}
	return payload
}

// FromPayload is the inverse of InjectPayload. Returns nil when no field is present.
func FromPayload(payload map[string]any) *TraceData {
	td := &TraceData{
		TraceID:   payloadString(payload, "trace_id"),
		RequestID: payloadString(payload, "request_id"),
		Caller:    payloadString(payload, "caller"),
	}
	if td.TraceID == "" && td.RequestID == "" && td.Caller == "" {
		return nil
	}
	return td
}

// LogFields renders the trace data as logger key/value pairs.
func (td *TraceData) LogFields() []any {
	if td == nil {
		return nil
	}
	out := make([]any, 0, 6)
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.Caller != "" {
		out = append(out, "caller", td.Caller)
	}
	return out
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
