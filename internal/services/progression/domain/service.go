package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

// ProgressionRecord is the backend's authoritative view of one scope: the
// counter's current value, the already-awarded milestone set, and total XP.
// The client diffs against it and is never the sole source of truth.
type ProgressionRecord struct {
	Scope               Scope
	Counter             int
	AwardedMilestoneIDs []string
	TotalXP             int
	StartedAt           time.Time
}

// Backend is the hosted progression API boundary.
type Backend interface {
	FetchProgression(ctx context.Context, scope Scope) (ProgressionRecord, error)
	SubmitAwards(ctx context.Context, scope Scope, milestoneIDs []string) (AwardOutcome, error)
}

// CursorStore persists one integer per scope: the counter value last observed
// and acknowledged by this client. It survives process restarts.
type CursorStore interface {
	GetCursor(ctx context.Context, scope Scope) (value int, ok bool, err error)
	PutCursor(ctx context.Context, scope Scope, value int) error
}

// EventSink receives celebration and unlock events for presentation.
type EventSink interface {
	CelebrationFired(ctx context.Context, celebration Celebration) error
	MilestonesUnlocked(ctx context.Context, scope Scope, unlocked []Milestone, totalXP int) error
}

// Telemetry records domain-significant moments. Implementations must not
// fail the calling operation.
type Telemetry interface {
	Emit(ctx context.Context, name, severity string, scope Scope, attrs map[string]any)
}

// Deps bundles service dependencies. Zero-value fields fall back to shipped
// defaults where one exists.
type Deps struct {
	HabitTiers         TierTable
	GroupTiers         TierTable
	Milestones         []Milestone
	QuestTargetPercent float64
	Backend            Backend
	Cursors            CursorStore
	Events             EventSink
	Telemetry          Telemetry
	Clock              func() time.Time
	Location           *time.Location
	Logf               func(format string, args ...any)
}

// Service orchestrates the asynchronous reconciliation path: progression
// fetch, award reconciliation, celebration detection, and cursor catch-up.
// The synchronous tier path (TierFor) never blocks on any of it.
type Service struct {
	habitTiers TierTable
	groupTiers TierTable
	milestones []Milestone
	questPct   float64
	backend    Backend
	cursors    CursorStore
	detector   *Detector
	reconciler *Reconciler
	events     EventSink
	telemetry  Telemetry
	clock      func() time.Time
	loc        *time.Location
	logf       func(format string, args ...any)

	mu         sync.Mutex
	scopeLocks map[string]*sync.Mutex
}

// NewService validates dependencies and builds a progression service.
func NewService(deps Deps) (*Service, error) {
	if deps.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if deps.Cursors == nil {
		return nil, errors.New("cursor store is required")
	}
	if deps.Events == nil {
		return nil, errors.New("event sink is required")
	}
	if len(deps.HabitTiers.Tiers) == 0 {
		deps.HabitTiers = HabitStreakTiers
	}
	if len(deps.GroupTiers.Tiers) == 0 {
		deps.GroupTiers = GroupLevelTiers
	}
	if err := deps.HabitTiers.Validate(); err != nil {
		return nil, err
	}
	if err := deps.GroupTiers.Validate(); err != nil {
		return nil, err
	}
	if deps.Milestones == nil {
		deps.Milestones = DefaultMilestones
	}
	if err := ValidateMilestones(deps.Milestones); err != nil {
		return nil, err
	}
	if deps.QuestTargetPercent == 0 {
		deps.QuestTargetPercent = DefaultQuestTargetPercent
	}
	if deps.QuestTargetPercent <= 0 || deps.QuestTargetPercent > 1 {
		return nil, apperrors.New(apperrors.CodeQuestTargetInvalid, "quest target percent must be in (0, 1]")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Logf == nil {
		deps.Logf = func(string, ...any) {}
	}
	return &Service{
		habitTiers: deps.HabitTiers,
		groupTiers: deps.GroupTiers,
		milestones: deps.Milestones,
		questPct:   deps.QuestTargetPercent,
		backend:    deps.Backend,
		cursors:    deps.Cursors,
		detector:   NewDetector(),
		reconciler: NewReconciler(deps.Backend),
		events:     deps.Events,
		telemetry:  deps.Telemetry,
		clock:      deps.Clock,
		loc:        deps.Location,
		logf:       deps.Logf,
		scopeLocks: make(map[string]*sync.Mutex),
	}, nil
}

// TierFor is the synchronous read path: it resolves a counter against the
// axis's tier table with no I/O so the caller can render immediately.
func (s *Service) TierFor(kind ScopeKind, counter int) (TierProgress, error) {
	table, err := s.tableFor(kind)
	if err != nil {
		return TierProgress{}, err
	}
	return ResolveTier(table, counter)
}

// QuestTarget normalizes a quest's base target with the configured percent.
func (s *Service) QuestTarget(baseTarget, habitsCount int) (int, error) {
	return NormalizeQuestTarget(baseTarget, habitsCount, s.questPct)
}

// MilestonePreview returns the elapsed-day count since start and the ordered
// milestone subset reached by it, using the service clock and location.
func (s *Service) MilestonePreview(start time.Time) (int, []Milestone, error) {
	elapsed := ElapsedDays(start, s.clock(), s.loc)
	reached, err := ReachedMilestones(s.milestones, elapsed)
	if err != nil {
		return 0, nil, err
	}
	return elapsed, reached, nil
}

// Milestones returns the configured milestone ladder.
func (s *Service) Milestones() []Milestone {
	return s.milestones
}

// ObserveResult describes what one catch-up check did.
type ObserveResult struct {
	Celebration      *Celebration
	FirstObservation bool
	CounterRegressed bool
	Unchanged        bool
}

// Observe runs the offline catch-up rule for one fresh counter value. The
// read-run-write sequence against the cursor store is serialized per scope
// so two near-simultaneous activations cannot celebrate twice; different
// scopes proceed concurrently.
func (s *Service) Observe(ctx context.Context, scope Scope, newValue int) (ObserveResult, error) {
	if err := scope.Validate(); err != nil {
		return ObserveResult{}, err
	}
	if newValue < 0 {
		return ObserveResult{}, apperrors.WithMetadata(apperrors.CodeCounterNegative, "counter must be non-negative", map[string]string{
			"scope": scope.Key(),
		})
	}
	table, err := s.tableFor(scope.Kind)
	if err != nil {
		return ObserveResult{}, err
	}

	lock := s.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	cursor, ok, err := s.cursors.GetCursor(ctx, scope)
	if err != nil {
		return ObserveResult{}, fmt.Errorf("read cursor %s: %w", scope.Key(), err)
	}

	if !ok {
		// First observation ever: there is no previous state to compare
		// against, so celebrating here would be spurious.
		if err := s.cursors.PutCursor(ctx, scope, newValue); err != nil {
			return ObserveResult{}, fmt.Errorf("persist cursor %s: %w", scope.Key(), err)
		}
		s.emit(ctx, "progression.cursor.first_observation", "INFO", scope, map[string]any{
			"value": newValue,
		})
		return ObserveResult{FirstObservation: true}, nil
	}

	if cursor == newValue {
		return ObserveResult{Unchanged: true}, nil
	}

	if cursor > newValue {
		s.logf("progression: counter regressed scope=%s old=%d new=%d", scope.Key(), cursor, newValue)
		s.emit(ctx, "progression.counter.regressed", "WARN", scope, map[string]any{
			"old": cursor,
			"new": newValue,
		})
		if err := s.cursors.PutCursor(ctx, scope, newValue); err != nil {
			return ObserveResult{}, fmt.Errorf("persist cursor %s: %w", scope.Key(), err)
		}
		return ObserveResult{CounterRegressed: true}, nil
	}

	// Progress happened while the client was inactive: collapse any number
	// of intermediate steps into one celebration for the net change.
	celebration, err := s.detector.Observe(table, scope, cursor, newValue)
	if err != nil {
		return ObserveResult{}, err
	}
	result := ObserveResult{Celebration: celebration}
	if celebration != nil {
		if err := s.events.CelebrationFired(ctx, *celebration); err != nil {
			s.logf("progression: publish celebration scope=%s kind=%s: %v", scope.Key(), celebration.Kind, err)
		}
		s.emit(ctx, "progression.celebration.fired", "INFO", scope, map[string]any{
			"kind": string(celebration.Kind),
			"old":  celebration.OldValue,
			"new":  celebration.NewValue,
			"tier": celebration.CurrentTier.Name,
		})
	}
	if err := s.cursors.PutCursor(ctx, scope, newValue); err != nil {
		return result, fmt.Errorf("persist cursor %s: %w", scope.Key(), err)
	}
	return result, nil
}

// RefreshResult reports the outcome of one natural trigger.
type RefreshResult struct {
	Record  ProgressionRecord
	Awards  ReconcileResult
	Observe ObserveResult
}

// Refresh is the asynchronous reconciliation path for one scope: it fetches
// the authoritative progression record, reconciles milestone awards, and
// runs the catch-up check on the fresh counter value. A failed award request
// is logged and retried on the next trigger; it never fails the refresh.
func (s *Service) Refresh(ctx context.Context, scope Scope) (RefreshResult, error) {
	if err := scope.Validate(); err != nil {
		return RefreshResult{}, err
	}

	record, err := s.backend.FetchProgression(ctx, scope)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("fetch progression %s: %w", scope.Key(), err)
	}
	result := RefreshResult{Record: record}

	if scope.Kind == ScopeKindHabit && !record.StartedAt.IsZero() {
		elapsed := ElapsedDays(record.StartedAt, s.clock(), s.loc)
		reached, err := ReachedMilestones(s.milestones, elapsed)
		if err != nil {
			return result, err
		}
		awards, err := s.reconciler.Reconcile(ctx, scope, reached, record.AwardedMilestoneIDs)
		if err != nil {
			s.logf("progression: award request failed scope=%s: %v", scope.Key(), err)
			s.emit(ctx, "progression.awards.failed", "ERROR", scope, map[string]any{
				"error": err.Error(),
			})
		} else {
			result.Awards = awards
			if len(awards.NewlyUnlocked) > 0 {
				s.emit(ctx, "progression.awards.confirmed", "INFO", scope, map[string]any{
					"count":    len(awards.NewlyUnlocked),
					"total_xp": awards.TotalXPAwarded,
				})
				if err := s.events.MilestonesUnlocked(ctx, scope, awards.NewlyUnlocked, awards.TotalXPAwarded); err != nil {
					s.logf("progression: publish unlocks scope=%s: %v", scope.Key(), err)
				}
			}
		}
	}

	observe, err := s.Observe(ctx, scope, record.Counter)
	if err != nil {
		return result, err
	}
	result.Observe = observe
	return result, nil
}

func (s *Service) tableFor(kind ScopeKind) (TierTable, error) {
	switch kind {
	case ScopeKindHabit:
		return s.habitTiers, nil
	case ScopeKindGroup:
		return s.groupTiers, nil
	default:
		return TierTable{}, apperrors.WithMetadata(apperrors.CodeScopeKindInvalid, "scope kind must be habit or group", map[string]string{
			"kind": string(kind),
		})
	}
}

func (s *Service) scopeLock(scope Scope) *sync.Mutex {
	key := scope.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.scopeLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.scopeLocks[key] = lock
	}
	return lock
}

func (s *Service) emit(ctx context.Context, name, severity string, scope Scope, attrs map[string]any) {
	if s.telemetry == nil {
		return
	}
	s.telemetry.Emit(ctx, name, severity, scope, attrs)
}
