// Package telemetry records domain-significant moments to the local
// telemetry journal with trace correlation.
package telemetry

import (
	"context"
	"time"

	"github.com/emberhabit/ember/internal/services/progression/storage"
	"go.opentelemetry.io/otel/trace"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Emitter appends telemetry events to the journal, stamping each with the
// active trace and span IDs when a span is recording.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates a telemetry emitter backed by the given store.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records a telemetry event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, name string, severity Severity, scopeKind, scopeID string, attrs map[string]any) error {
	if e == nil || e.store == nil {
		return nil
	}

	now := time.Now().UTC()
	if e.clock != nil {
		now = e.clock().UTC()
	}

	evt := storage.TelemetryEvent{
		Timestamp:  now,
		EventName:  name,
		Severity:   string(severity),
		ScopeKind:  scopeKind,
		ScopeID:    scopeID,
		Attributes: attrs,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		evt.TraceID = sc.TraceID().String()
		evt.SpanID = sc.SpanID().String()
	}
	return e.store.AppendTelemetryEvent(ctx, evt)
}
