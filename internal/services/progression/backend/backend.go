// Package backend defines the contract to the hosted Ember progression API.
package backend

import (
	"context"

	"github.com/emberhabit/ember/internal/services/progression/domain"
)

// Client is the hosted progression API boundary. The server is assumed to
// treat award submissions idempotently; callers still avoid resubmitting
// while a request is in flight.
type Client interface {
	// FetchProgression returns the authoritative progression record for a
	// scope.
	FetchProgression(ctx context.Context, scope domain.Scope) (domain.ProgressionRecord, error)
	// SubmitAwards submits one batched milestone award request and returns
	// the server-confirmed outcome.
	SubmitAwards(ctx context.Context, scope domain.Scope, milestoneIDs []string) (domain.AwardOutcome, error)
}
