// Package sqlite provides the SQLite-backed progression store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/emberhabit/ember/internal/platform/storage/sqlitemigrate"
	"github.com/emberhabit/ember/internal/services/progression/storage"
	"github.com/emberhabit/ember/internal/services/progression/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for progress cursors, the
// celebration feed, and telemetry events.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the progression SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetCursor returns the persisted cursor for a scope.
func (s *Store) GetCursor(ctx context.Context, scopeKind, scopeID string) (storage.CursorRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CursorRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CursorRecord{}, fmt.Errorf("storage is not configured")
	}
	scopeKind = strings.TrimSpace(scopeKind)
	scopeID = strings.TrimSpace(scopeID)
	if scopeKind == "" || scopeID == "" {
		return storage.CursorRecord{}, fmt.Errorf("scope kind and id are required")
	}

	var record storage.CursorRecord
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT scope_kind, scope_id, value, updated_at
FROM progress_cursors
WHERE scope_kind = ? AND scope_id = ?
`, scopeKind, scopeID).Scan(&record.ScopeKind, &record.ScopeID, &record.Value, &updatedAt)
	if err == sql.ErrNoRows {
		return storage.CursorRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.CursorRecord{}, fmt.Errorf("get cursor: %w", err)
	}
	record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return record, nil
}

// PutCursor inserts or replaces the cursor for a scope.
func (s *Store) PutCursor(ctx context.Context, record storage.CursorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.ScopeKind = strings.TrimSpace(record.ScopeKind)
	record.ScopeID = strings.TrimSpace(record.ScopeID)
	if record.ScopeKind == "" {
		return fmt.Errorf("scope kind is required")
	}
	if record.ScopeID == "" {
		return fmt.Errorf("scope id is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO progress_cursors (scope_kind, scope_id, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (scope_kind, scope_id) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at
`,
		record.ScopeKind,
		record.ScopeID,
		record.Value,
		record.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put cursor: %w", err)
	}
	return nil
}

// ListCursors returns every tracked scope's cursor.
func (s *Store) ListCursors(ctx context.Context) ([]storage.CursorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT scope_kind, scope_id, value, updated_at
FROM progress_cursors
ORDER BY scope_kind, scope_id
`)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var records []storage.CursorRecord
	for rows.Next() {
		var record storage.CursorRecord
		var updatedAt int64
		if err := rows.Scan(&record.ScopeKind, &record.ScopeID, &record.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cursors: %w", err)
	}
	return records, nil
}

// AppendCelebration persists one emitted celebration.
func (s *Store) AppendCelebration(ctx context.Context, record storage.CelebrationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.ID = strings.TrimSpace(record.ID)
	record.ScopeKind = strings.TrimSpace(record.ScopeKind)
	record.ScopeID = strings.TrimSpace(record.ScopeID)
	record.Kind = strings.TrimSpace(record.Kind)
	if record.ID == "" {
		return fmt.Errorf("celebration id is required")
	}
	if record.ScopeKind == "" || record.ScopeID == "" {
		return fmt.Errorf("scope kind and id are required")
	}
	if record.Kind == "" {
		return fmt.Errorf("celebration kind is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO celebrations (
	id,
	scope_kind,
	scope_id,
	kind,
	old_value,
	new_value,
	previous_tier,
	current_tier,
	tier_index,
	multiplier,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.ScopeKind,
		record.ScopeID,
		record.Kind,
		record.OldValue,
		record.NewValue,
		record.PreviousTier,
		record.CurrentTier,
		record.TierIndex,
		record.Multiplier,
		record.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return storage.ErrConflict
		}
		return fmt.Errorf("append celebration: %w", err)
	}
	return nil
}

// ListRecentCelebrations returns newest-first celebrations across all scopes.
func (s *Store) ListRecentCelebrations(ctx context.Context, limit int) ([]storage.CelebrationRecord, error) {
	return s.listCelebrations(ctx, `
SELECT id, scope_kind, scope_id, kind, old_value, new_value, previous_tier, current_tier, tier_index, multiplier, created_at
FROM celebrations
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
}

// ListCelebrationsByScope returns newest-first celebrations for one scope.
func (s *Store) ListCelebrationsByScope(ctx context.Context, scopeKind, scopeID string, limit int) ([]storage.CelebrationRecord, error) {
	scopeKind = strings.TrimSpace(scopeKind)
	scopeID = strings.TrimSpace(scopeID)
	if scopeKind == "" || scopeID == "" {
		return nil, fmt.Errorf("scope kind and id are required")
	}
	return s.listCelebrations(ctx, `
SELECT id, scope_kind, scope_id, kind, old_value, new_value, previous_tier, current_tier, tier_index, multiplier, created_at
FROM celebrations
WHERE scope_kind = ? AND scope_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, scopeKind, scopeID, limit)
}

func (s *Store) listCelebrations(ctx context.Context, query string, args ...any) ([]storage.CelebrationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("limit is required")
	}
	if limit, ok := args[len(args)-1].(int); !ok || limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list celebrations: %w", err)
	}
	defer rows.Close()

	var records []storage.CelebrationRecord
	for rows.Next() {
		var record storage.CelebrationRecord
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.ScopeKind,
			&record.ScopeID,
			&record.Kind,
			&record.OldValue,
			&record.NewValue,
			&record.PreviousTier,
			&record.CurrentTier,
			&record.TierIndex,
			&record.Multiplier,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan celebration: %w", err)
		}
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate celebrations: %w", err)
	}
	return records, nil
}

// AppendTelemetryEvent persists one telemetry record.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	evt.EventName = strings.TrimSpace(evt.EventName)
	evt.Severity = strings.TrimSpace(evt.Severity)
	if evt.EventName == "" {
		return fmt.Errorf("event name is required")
	}
	if evt.Severity == "" {
		evt.Severity = "INFO"
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	attributes := "{}"
	if len(evt.Attributes) > 0 {
		encoded, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes: %w", err)
		}
		attributes = string(encoded)
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO telemetry_events (
	timestamp,
	event_name,
	severity,
	scope_kind,
	scope_id,
	trace_id,
	span_id,
	attributes
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		evt.Timestamp.UTC().UnixMilli(),
		evt.EventName,
		evt.Severity,
		strings.TrimSpace(evt.ScopeKind),
		strings.TrimSpace(evt.ScopeID),
		strings.TrimSpace(evt.TraceID),
		strings.TrimSpace(evt.SpanID),
		attributes,
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}
