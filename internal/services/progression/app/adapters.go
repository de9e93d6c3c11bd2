package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emberhabit/ember/internal/platform/id"
	"github.com/emberhabit/ember/internal/services/progression/domain"
	"github.com/emberhabit/ember/internal/services/progression/storage"
	"github.com/emberhabit/ember/internal/telemetry"
)

// cursorStoreAdapter exposes the persisted cursor table through the engine's
// narrower per-scope contract.
type cursorStoreAdapter struct {
	store storage.CursorStore
}

func (a cursorStoreAdapter) GetCursor(ctx context.Context, scope domain.Scope) (int, bool, error) {
	record, err := a.store.GetCursor(ctx, string(scope.Kind), scope.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return record.Value, true, nil
}

func (a cursorStoreAdapter) PutCursor(ctx context.Context, scope domain.Scope, value int) error {
	return a.store.PutCursor(ctx, storage.CursorRecord{
		ScopeKind: string(scope.Kind),
		ScopeID:   scope.ID,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	})
}

// feedEventSink persists each celebration so delivery is at-least-once
// within the installation, then pushes it to subscribed feed connections.
type feedEventSink struct {
	celebrations storage.CelebrationStore
	hub          *scopeHub
	logf         func(format string, args ...any)
}

func newFeedEventSink(celebrations storage.CelebrationStore, hub *scopeHub, logf func(format string, args ...any)) *feedEventSink {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &feedEventSink{celebrations: celebrations, hub: hub, logf: logf}
}

func (s *feedEventSink) CelebrationFired(ctx context.Context, celebration domain.Celebration) error {
	recordID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("generate celebration id: %w", err)
	}
	record := storage.CelebrationRecord{
		ID:           recordID,
		ScopeKind:    string(celebration.Scope.Kind),
		ScopeID:      celebration.Scope.ID,
		Kind:         string(celebration.Kind),
		OldValue:     celebration.OldValue,
		NewValue:     celebration.NewValue,
		PreviousTier: celebration.PreviousTier.Name,
		CurrentTier:  celebration.CurrentTier.Name,
		TierIndex:    celebration.CurrentTier.Index,
		Multiplier:   celebration.CurrentTier.Multiplier,
		CreatedAt:    time.Now().UTC(),
	}
	if s.celebrations != nil {
		if err := s.celebrations.AppendCelebration(ctx, record); err != nil {
			return fmt.Errorf("persist celebration: %w", err)
		}
	}

	s.logf("progression: celebration scope=%s kind=%s %d->%d tier=%s",
		celebration.Scope.Key(), celebration.Kind, celebration.OldValue, celebration.NewValue, celebration.CurrentTier.Name)

	if s.hub != nil {
		s.hub.broadcast(celebration.Scope.Key(), wsFrame{
			Type:    "feed.celebration",
			Payload: mustJSON(celebrationEnvelope{Celebration: feedCelebrationFromRecord(record)}),
		})
	}
	return nil
}

func (s *feedEventSink) MilestonesUnlocked(_ context.Context, scope domain.Scope, unlocked []domain.Milestone, totalXP int) error {
	s.logf("progression: milestones unlocked scope=%s count=%d total_xp=%d", scope.Key(), len(unlocked), totalXP)

	if s.hub == nil {
		return nil
	}
	milestones := make([]feedMilestone, 0, len(unlocked))
	for _, milestone := range unlocked {
		milestones = append(milestones, feedMilestone{
			ID:           milestone.ID,
			DayThreshold: milestone.DayThreshold,
			XP:           milestone.XP,
			Badge:        milestone.Badge,
		})
	}
	s.hub.broadcast(scope.Key(), wsFrame{
		Type: "feed.milestones",
		Payload: mustJSON(milestonesEnvelope{
			ScopeKind:  string(scope.Kind),
			ScopeID:    scope.ID,
			Milestones: milestones,
			TotalXP:    totalXP,
		}),
	})
	return nil
}

// telemetryAdapter feeds engine telemetry into the persisted journal. Emit
// failures are logged and never surface to the engine.
type telemetryAdapter struct {
	emitter *telemetry.Emitter
	logf    func(format string, args ...any)
}

func (a telemetryAdapter) Emit(ctx context.Context, name, severity string, scope domain.Scope, attrs map[string]any) {
	if a.emitter == nil {
		return
	}
	if err := a.emitter.Emit(ctx, name, telemetry.Severity(severity), string(scope.Kind), scope.ID, attrs); err != nil && a.logf != nil {
		a.logf("progression: telemetry emit %s: %v", name, err)
	}
}
