package scenario

import (
	"context"
	"fmt"

	"github.com/emberhabit/ember/internal/services/progression/domain"
)

func (r *Runner) runStep(ctx context.Context, state *scenarioState, step Step) error {
	switch step.Kind {
	case "habit":
		return r.stepFixture(state, step.Args, domain.ScopeKindHabit)
	case "group":
		return r.stepFixture(state, step.Args, domain.ScopeKindGroup)
	case "counter":
		return r.stepCounter(state, step.Args)
	case "advance_days":
		return r.stepAdvanceDays(step.Args)
	case "backend_down":
		r.env.backend.setAvailable(false)
		return nil
	case "backend_up":
		r.env.backend.setAvailable(true)
		return nil
	case "observe":
		return r.stepObserve(ctx, state, step.Args)
	case "refresh":
		return r.stepRefresh(ctx, state, step.Args)
	case "expect_celebration":
		return r.stepExpectCelebration(state, step.Args)
	case "expect_no_celebration":
		return r.stepExpectNoCelebration(state, step.Args)
	case "expect_awards":
		return r.stepExpectAwards(state, step.Args)
	case "expect_cursor":
		return r.stepExpectCursor(ctx, state, step.Args)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) stepFixture(state *scenarioState, args map[string]any, kind domain.ScopeKind) error {
	name := optionalString(args, "name", "")
	if name == "" {
		return r.failf("fixture name is required")
	}
	if _, exists := state.scopes[name]; exists {
		return r.failf("fixture %q already defined", name)
	}
	scope := domain.Scope{Kind: kind, ID: optionalString(args, "id", name)}
	if err := scope.Validate(); err != nil {
		return err
	}
	state.scopes[name] = scope

	counterKey := "counter"
	if kind == domain.ScopeKindGroup {
		counterKey = "level"
	}
	counter := optionalInt(args, counterKey, 0)
	if counter < 0 {
		return r.failf("fixture %q counter must be non-negative", name)
	}
	startedDaysAgo := optionalInt(args, "started_days_ago", 0)
	awarded := readStringSlice(args, "awarded")

	r.env.backend.upsert(scope, func(record *domain.ProgressionRecord) {
		record.Counter = counter
		record.AwardedMilestoneIDs = awarded
		if kind == domain.ScopeKindHabit && startedDaysAgo > 0 {
			record.StartedAt = r.env.clock.Now().AddDate(0, 0, -startedDaysAgo)
		}
	})
	return nil
}

func (r *Runner) stepCounter(state *scenarioState, args map[string]any) error {
	scope, err := r.resolveScope(state, args)
	if err != nil {
		return err
	}
	value, ok := readInt(args, "value")
	if !ok {
		return r.failf("counter requires value")
	}
	if value < 0 {
		return r.failf("counter value must be non-negative")
	}
	r.env.backend.upsert(scope, func(record *domain.ProgressionRecord) {
		record.Counter = value
	})
	return nil
}

func (r *Runner) stepAdvanceDays(args map[string]any) error {
	days, ok := readInt(args, "days")
	if !ok || days <= 0 {
		return r.failf("advance_days requires a positive day count")
	}
	r.env.clock.AdvanceDays(days)
	return nil
}

func (r *Runner) stepObserve(ctx context.Context, state *scenarioState, args map[string]any) error {
	scope, err := r.resolveScope(state, args)
	if err != nil {
		return err
	}
	value, ok := readInt(args, "value")
	if !ok {
		value, ok = r.env.backend.counter(scope)
		if !ok {
			return r.failf("no counter recorded for %q", optionalString(args, "target", ""))
		}
	}
	_, err = r.env.service.Observe(ctx, scope, value)
	return r.checkStepError(args, err, "observe")
}

func (r *Runner) stepRefresh(ctx context.Context, state *scenarioState, args map[string]any) error {
	scope, err := r.resolveScope(state, args)
	if err != nil {
		return err
	}
	_, err = r.env.service.Refresh(ctx, scope)
	return r.checkStepError(args, err, "refresh")
}

// checkStepError maps an engine error through the step's expect_error flag.
func (r *Runner) checkStepError(args map[string]any, err error, kind string) error {
	if optionalBool(args, "expect_error", false) {
		if err == nil {
			return r.assertf("expected %s to fail", kind)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return nil
}

func (r *Runner) stepExpectCelebration(state *scenarioState, args map[string]any) error {
	scope, err := r.resolveScope(state, args)
	if err != nil {
		return err
	}
	fired := r.env.sink.celebrationsForScope(scope)
	if count, ok := readInt(args, "count"); ok && len(fired) != count {
		return r.assertf("celebrations for %s = %d, want %d", scope.Key(), len(fired), count)
	}
	if len(fired) == 0 {
		return r.assertf("expected a celebration for %s", scope.Key())
	}
	latest := fired[len(fired)-1]
	if kind := optionalString(args, "kind", ""); kind != "" && string(latest.Kind) != kind {
		return r.assertf("celebration kind = %s, want %s", latest.Kind, kind)
	}
	if tier := optionalString(args, "tier", ""); tier != "" && latest.CurrentTier.Name != tier {
		return r.assertf("celebration tier = %s, want %s", latest.CurrentTier.Name, tier)
	}
	if old, ok := readInt(args, "old"); ok && latest.OldValue != old {
		return r.assertf("celebration old value = %d, want %d", latest.OldValue, old)
	}
	if newValue, ok := readInt(args, "new"); ok && latest.NewValue != newValue {
		return r.assertf("celebration new value = %d, want %d", latest.NewValue, newValue)
	}
	return nil
}

func (r *Runner) stepExpectNoCelebration(state *scenarioState, args map[string]any) error {
	scope, err := r.resolveScope(state, args)
	if err != nil {
		return err
	}
	fired := r.env.sink.celebrationsForScope(scope)
	if len(fired) != 0 {
		latest := fired[len(fired)-1]
		return r.assertf("expected no celebration for %s, got %s to %s", scope.Key(), latest.Kind, latest.CurrentTier.Name)
	}
	return nil
}

func (r *Runner) stepExpectAwards(state *scenarioState, args map[string]any) error {
	scope, err := r.resolveScope(state, args)
	if err != nil {
		return err
	}
	want := readStringSlice(args, "milestones")
	if len(want) == 0 {
		return r.failf("expect_awards requires milestones")
	}
	awarded := r.env.backend.awarded(scope)
	have := make(map[string]struct{}, len(awarded))
	for _, id := range awarded {
		have[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := have[id]; !ok {
			return r.assertf("milestone %s not awarded for %s (awarded: %v)", id, scope.Key(), awarded)
		}
	}
	return nil
}

func (r *Runner) stepExpectCursor(ctx context.Context, state *scenarioState, args map[string]any) error {
	scope, err := r.resolveScope(state, args)
	if err != nil {
		return err
	}
	want, ok := readInt(args, "value")
	if !ok {
		return r.failf("expect_cursor requires value")
	}
	value, found, err := r.env.cursors.GetCursor(ctx, scope)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	if !found {
		return r.assertf("no cursor recorded for %s", scope.Key())
	}
	if value != want {
		return r.assertf("cursor for %s = %d, want %d", scope.Key(), value, want)
	}
	return nil
}

func (r *Runner) resolveScope(state *scenarioState, args map[string]any) (domain.Scope, error) {
	name := optionalString(args, "target", "")
	if name == "" {
		name = optionalString(args, "name", "")
	}
	if name == "" {
		return domain.Scope{}, r.failf("target is required")
	}
	scope, ok := state.scopes[name]
	if !ok {
		return domain.Scope{}, fmt.Errorf("unknown fixture %q", name)
	}
	return scope, nil
}
