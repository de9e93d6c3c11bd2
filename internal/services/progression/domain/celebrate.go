package domain

import (
	"strconv"
	"sync"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

// CelebrationKind distinguishes the two celebration events.
type CelebrationKind string

const (
	// CelebrationTierUp fires when a counter crosses a tier boundary.
	CelebrationTierUp CelebrationKind = "tier-up"
	// CelebrationLevelUp fires for counter increases inside one tier.
	CelebrationLevelUp CelebrationKind = "level-up"
)

// Celebration is the self-contained event payload handed to the presentation
// layer. It carries enough context (tier names, indexes, multipliers, both
// counter values) that no follow-up query is needed to render it.
type Celebration struct {
	Kind         CelebrationKind
	Scope        Scope
	OldValue     int
	NewValue     int
	PreviousTier TierDefinition
	CurrentTier  TierDefinition
}

// Detector decides whether a counter transition warrants a Tier-Up or a
// Level-Up. Its seen-sets live for the process lifetime: they suppress
// duplicates from rapid re-renders within one session, while the persisted
// cursor (not this type) guarantees correctness across restarts.
type Detector struct {
	mu          sync.Mutex
	tierUpSeen  map[string]struct{}
	levelUpSeen map[string]struct{}
}

// NewDetector creates a detector with empty seen-sets.
func NewDetector() *Detector {
	return &Detector{
		tierUpSeen:  make(map[string]struct{}),
		levelUpSeen: make(map[string]struct{}),
	}
}

// Observe applies the transition rule to (oldValue, newValue). It returns at
// most one celebration: a tier crossing supersedes and suppresses the
// finer-grained level notification for the same target value. Equal values
// are a no-op; a decreasing value is an anomaly and never celebrated.
func (d *Detector) Observe(table TierTable, scope Scope, oldValue, newValue int) (*Celebration, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if newValue == oldValue {
		return nil, nil
	}
	if newValue < oldValue {
		return nil, apperrors.WithMetadata(apperrors.CodeCounterRegressed, "counter decreased", map[string]string{
			"scope": scope.Key(),
			"old":   strconv.Itoa(oldValue),
			"new":   strconv.Itoa(newValue),
		})
	}

	previous, err := ResolveTier(table, oldValue)
	if err != nil {
		return nil, err
	}
	current, err := ResolveTier(table, newValue)
	if err != nil {
		return nil, err
	}

	key := scope.Key() + "#" + strconv.Itoa(newValue)
	d.mu.Lock()
	defer d.mu.Unlock()

	if current.Tier.Index > previous.Tier.Index {
		if _, seen := d.tierUpSeen[key]; !seen {
			d.tierUpSeen[key] = struct{}{}
			d.levelUpSeen[key] = struct{}{}
			return &Celebration{
				Kind:         CelebrationTierUp,
				Scope:        scope,
				OldValue:     oldValue,
				NewValue:     newValue,
				PreviousTier: previous.Tier,
				CurrentTier:  current.Tier,
			}, nil
		}
	}
	if _, seen := d.levelUpSeen[key]; !seen {
		d.levelUpSeen[key] = struct{}{}
		return &Celebration{
			Kind:         CelebrationLevelUp,
			Scope:        scope,
			OldValue:     oldValue,
			NewValue:     newValue,
			PreviousTier: previous.Tier,
			CurrentTier:  current.Tier,
		}, nil
	}
	return nil, nil
}
