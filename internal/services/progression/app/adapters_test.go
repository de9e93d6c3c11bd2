package app

import (
	"context"
	"testing"

	"github.com/emberhabit/ember/internal/services/progression/domain"
	"github.com/emberhabit/ember/internal/services/progression/storage"
)

type memCursorStore struct {
	cursors map[string]storage.CursorRecord
}

func newMemCursorStore() *memCursorStore {
	return &memCursorStore{cursors: make(map[string]storage.CursorRecord)}
}

func (m *memCursorStore) GetCursor(_ context.Context, scopeKind, scopeID string) (storage.CursorRecord, error) {
	record, ok := m.cursors[scopeKind+"/"+scopeID]
	if !ok {
		return storage.CursorRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (m *memCursorStore) PutCursor(_ context.Context, record storage.CursorRecord) error {
	m.cursors[record.ScopeKind+"/"+record.ScopeID] = record
	return nil
}

func (m *memCursorStore) ListCursors(_ context.Context) ([]storage.CursorRecord, error) {
	out := make([]storage.CursorRecord, 0, len(m.cursors))
	for _, record := range m.cursors {
		out = append(out, record)
	}
	return out, nil
}

func TestCursorStoreAdapterMissingCursor(t *testing.T) {
	t.Parallel()

	adapter := cursorStoreAdapter{store: newMemCursorStore()}
	scope := domain.Scope{Kind: domain.ScopeKindHabit, ID: "habit-1"}

	_, ok, err := adapter.GetCursor(context.Background(), scope)
	if err != nil {
		t.Fatalf("get cursor: %v", err)
	}
	if ok {
		t.Fatal("expected missing cursor to report ok=false")
	}
}

func TestCursorStoreAdapterRoundTrip(t *testing.T) {
	t.Parallel()

	adapter := cursorStoreAdapter{store: newMemCursorStore()}
	scope := domain.Scope{Kind: domain.ScopeKindGroup, ID: "grp-1"}

	if err := adapter.PutCursor(context.Background(), scope, 14); err != nil {
		t.Fatalf("put cursor: %v", err)
	}

	value, ok, err := adapter.GetCursor(context.Background(), scope)
	if err != nil {
		t.Fatalf("get cursor: %v", err)
	}
	if !ok || value != 14 {
		t.Fatalf("expected (14, true), got (%d, %t)", value, ok)
	}
}

func TestTelemetryAdapterWithoutEmitterIsNoOp(t *testing.T) {
	t.Parallel()

	adapter := telemetryAdapter{}
	adapter.Emit(context.Background(), "progression.cursor.first_observation", "INFO", domain.Scope{Kind: domain.ScopeKindHabit, ID: "habit-1"}, nil)
}
