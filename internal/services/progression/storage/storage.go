// Package storage defines the persistence contracts for the progression
// daemon: progress cursors, the celebration feed, and telemetry events.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("progression storage: record not found")

// ErrConflict indicates a record with the same identity already exists.
var ErrConflict = errors.New("progression storage: record conflict")

// CursorRecord is the persisted counter value last acknowledged for a scope.
type CursorRecord struct {
	ScopeKind string
	ScopeID   string
	Value     int
	UpdatedAt time.Time
}

// CursorStore persists one integer per progression scope. Cursors survive
// process restarts but not app reinstallation.
type CursorStore interface {
	// GetCursor returns the cursor for a scope or ErrNotFound.
	GetCursor(ctx context.Context, scopeKind, scopeID string) (CursorRecord, error)
	// PutCursor inserts or replaces the cursor for a scope.
	PutCursor(ctx context.Context, record CursorRecord) error
	// ListCursors returns every tracked scope's cursor.
	ListCursors(ctx context.Context) ([]CursorRecord, error)
}

// CelebrationRecord is one emitted celebration, persisted so delivery is
// at-least-once within an installation and the feed can replay a backlog.
type CelebrationRecord struct {
	ID           string
	ScopeKind    string
	ScopeID      string
	Kind         string
	OldValue     int
	NewValue     int
	PreviousTier string
	CurrentTier  string
	TierIndex    int
	Multiplier   float64
	CreatedAt    time.Time
}

// CelebrationStore persists the celebration feed.
type CelebrationStore interface {
	AppendCelebration(ctx context.Context, record CelebrationRecord) error
	// ListRecentCelebrations returns newest-first records across all scopes.
	ListRecentCelebrations(ctx context.Context, limit int) ([]CelebrationRecord, error)
	// ListCelebrationsByScope returns newest-first records for one scope.
	ListCelebrationsByScope(ctx context.Context, scopeKind, scopeID string, limit int) ([]CelebrationRecord, error)
}

// TelemetryEvent captures a domain-significant moment with trace correlation.
type TelemetryEvent struct {
	Timestamp  time.Time
	EventName  string
	Severity   string
	ScopeKind  string
	ScopeID    string
	TraceID    string
	SpanID     string
	Attributes map[string]any
}

// TelemetryStore persists operational telemetry records for audits and
// incident analysis.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
}

// Store aggregates the daemon's persistence interfaces.
type Store interface {
	CursorStore
	CelebrationStore
	TelemetryStore
	Close() error
}
