package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emberhabit/ember/internal/services/progression/domain"
)

// scenarioClock is a settable clock shared by the engine and the script.
type scenarioClock struct {
	mu  sync.Mutex
	now time.Time
}

func newScenarioClock(start time.Time) *scenarioClock {
	return &scenarioClock{now: start}
}

func (c *scenarioClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *scenarioClock) AdvanceDays(days int) {
	c.mu.Lock()
	c.now = c.now.AddDate(0, 0, days)
	c.mu.Unlock()
}

// scriptedBackend stands in for the hosted progression API. Scenario steps
// mutate its counters and availability; the engine only sees the Backend
// interface.
type scriptedBackend struct {
	mu      sync.Mutex
	down    bool
	records map[string]domain.ProgressionRecord
	xpByID  map[string]int
}

func newScriptedBackend(milestones []domain.Milestone) *scriptedBackend {
	xp := make(map[string]int, len(milestones))
	for _, milestone := range milestones {
		xp[milestone.ID] = milestone.XP
	}
	return &scriptedBackend{
		records: map[string]domain.ProgressionRecord{},
		xpByID:  xp,
	}
}

func (b *scriptedBackend) setAvailable(up bool) {
	b.mu.Lock()
	b.down = !up
	b.mu.Unlock()
}

func (b *scriptedBackend) upsert(scope domain.Scope, mutate func(*domain.ProgressionRecord)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.records[scope.Key()]
	if !ok {
		record = domain.ProgressionRecord{Scope: scope}
	}
	mutate(&record)
	b.records[scope.Key()] = record
}

func (b *scriptedBackend) counter(scope domain.Scope) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.records[scope.Key()]
	return record.Counter, ok
}

func (b *scriptedBackend) awarded(scope domain.Scope) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	record := b.records[scope.Key()]
	out := make([]string, len(record.AwardedMilestoneIDs))
	copy(out, record.AwardedMilestoneIDs)
	return out
}

func (b *scriptedBackend) FetchProgression(_ context.Context, scope domain.Scope) (domain.ProgressionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return domain.ProgressionRecord{}, fmt.Errorf("backend unavailable")
	}
	record, ok := b.records[scope.Key()]
	if !ok {
		return domain.ProgressionRecord{}, fmt.Errorf("unknown scope %s", scope.Key())
	}
	return record, nil
}

func (b *scriptedBackend) SubmitAwards(_ context.Context, scope domain.Scope, milestoneIDs []string) (domain.AwardOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return domain.AwardOutcome{}, fmt.Errorf("backend unavailable")
	}
	record, ok := b.records[scope.Key()]
	if !ok {
		return domain.AwardOutcome{}, fmt.Errorf("unknown scope %s", scope.Key())
	}
	seen := make(map[string]struct{}, len(record.AwardedMilestoneIDs))
	for _, id := range record.AwardedMilestoneIDs {
		seen[id] = struct{}{}
	}
	outcome := domain.AwardOutcome{}
	for _, id := range milestoneIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		record.AwardedMilestoneIDs = append(record.AwardedMilestoneIDs, id)
		record.TotalXP += b.xpByID[id]
		outcome.AwardedIDs = append(outcome.AwardedIDs, id)
		outcome.TotalXP += b.xpByID[id]
	}
	b.records[scope.Key()] = record
	return outcome, nil
}

// cursorMap is an in-memory cursor store for scenario runs.
type cursorMap struct {
	mu     sync.Mutex
	values map[string]int
}

func newCursorMap() *cursorMap {
	return &cursorMap{values: map[string]int{}}
}

func (c *cursorMap) GetCursor(_ context.Context, scope domain.Scope) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[scope.Key()]
	return value, ok, nil
}

func (c *cursorMap) PutCursor(_ context.Context, scope domain.Scope, value int) error {
	c.mu.Lock()
	c.values[scope.Key()] = value
	c.mu.Unlock()
	return nil
}

// unlockEvent is one recorded MilestonesUnlocked emission.
type unlockEvent struct {
	scope    domain.Scope
	unlocked []domain.Milestone
	totalXP  int
}

// recordingSink captures engine events for expectation steps.
type recordingSink struct {
	mu           sync.Mutex
	celebrations []domain.Celebration
	unlocks      []unlockEvent
}

func (s *recordingSink) CelebrationFired(_ context.Context, celebration domain.Celebration) error {
	s.mu.Lock()
	s.celebrations = append(s.celebrations, celebration)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) MilestonesUnlocked(_ context.Context, scope domain.Scope, unlocked []domain.Milestone, totalXP int) error {
	s.mu.Lock()
	s.unlocks = append(s.unlocks, unlockEvent{scope: scope, unlocked: unlocked, totalXP: totalXP})
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) celebrationsForScope(scope domain.Scope) []domain.Celebration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Celebration, 0, len(s.celebrations))
	for _, celebration := range s.celebrations {
		if celebration.Scope == scope {
			out = append(out, celebration)
		}
	}
	return out
}

// scenarioEnv bundles the in-process engine a scenario runs against.
type scenarioEnv struct {
	service *domain.Service
	backend *scriptedBackend
	cursors *cursorMap
	sink    *recordingSink
	clock   *scenarioClock
}

// scenarioState tracks named fixtures across steps.
type scenarioState struct {
	scopes map[string]domain.Scope
}
