package domain

import (
	"context"
	"sync"
)

// AwardOutcome is the backend's confirmation of a batched award request.
type AwardOutcome struct {
	AwardedIDs []string
	TotalXP    int
}

// AwardSubmitter issues one atomic, batched award request. The backend is
// idempotent: re-submitting an already-awarded id is a no-op, not an error.
type AwardSubmitter interface {
	SubmitAwards(ctx context.Context, scope Scope, milestoneIDs []string) (AwardOutcome, error)
}

// ReconcileResult reports the newly awarded subset of one reconciliation.
type ReconcileResult struct {
	NewlyUnlocked  []Milestone
	TotalXPAwarded int
	// InFlightSkipped is set when a reconciliation for the same scope was
	// already outstanding and this trigger was dropped, not queued.
	InFlightSkipped bool
}

// Reconciler grants each milestone's XP exactly once per scope even though
// the milestone ledger is recomputed on every trigger. The awarded set is
// server-authoritative; the reconciler only diffs against it.
type Reconciler struct {
	submitter AwardSubmitter

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewReconciler creates an award reconciler backed by submitter.
func NewReconciler(submitter AwardSubmitter) *Reconciler {
	return &Reconciler{
		submitter: submitter,
		inFlight:  make(map[string]struct{}),
	}
}

// Reconcile computes reached minus awarded and, when the delta is non-empty,
// issues a single batched award request. Only a confirmed success is
// reported; a failed request mutates nothing and is retried on the next
// natural trigger. A trigger arriving while a request is outstanding for the
// same scope is dropped because the outstanding request already subsumes it.
func (r *Reconciler) Reconcile(ctx context.Context, scope Scope, reached []Milestone, awarded []string) (ReconcileResult, error) {
	if err := scope.Validate(); err != nil {
		return ReconcileResult{}, err
	}

	awardedSet := make(map[string]struct{}, len(awarded))
	for _, id := range awarded {
		awardedSet[id] = struct{}{}
	}
	delta := make([]Milestone, 0, len(reached))
	for _, milestone := range reached {
		if _, ok := awardedSet[milestone.ID]; ok {
			continue
		}
		delta = append(delta, milestone)
	}
	if len(delta) == 0 {
		return ReconcileResult{}, nil
	}

	if !r.begin(scope) {
		return ReconcileResult{InFlightSkipped: true}, nil
	}
	defer r.end(scope)

	ids := make([]string, len(delta))
	for i, milestone := range delta {
		ids[i] = milestone.ID
	}
	outcome, err := r.submitter.SubmitAwards(ctx, scope, ids)
	if err != nil {
		return ReconcileResult{}, err
	}

	unlocked := delta
	if len(outcome.AwardedIDs) > 0 {
		confirmed := make(map[string]struct{}, len(outcome.AwardedIDs))
		for _, id := range outcome.AwardedIDs {
			confirmed[id] = struct{}{}
		}
		unlocked = make([]Milestone, 0, len(delta))
		for _, milestone := range delta {
			if _, ok := confirmed[milestone.ID]; ok {
				unlocked = append(unlocked, milestone)
			}
		}
	}
	return ReconcileResult{
		NewlyUnlocked:  unlocked,
		TotalXPAwarded: outcome.TotalXP,
	}, nil
}

func (r *Reconciler) begin(scope Scope) bool {
	key := scope.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, outstanding := r.inFlight[key]; outstanding {
		return false
	}
	r.inFlight[key] = struct{}{}
	return true
}

func (r *Reconciler) end(scope Scope) {
	r.mu.Lock()
	delete(r.inFlight, scope.Key())
	r.mu.Unlock()
}
