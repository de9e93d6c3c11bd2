package domain

import (
	"errors"
	"sync"
	"testing"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

func groupScope() Scope {
	return Scope{Kind: ScopeKindGroup, ID: "group-1"}
}

func TestObserveEmitsTierUpOnBoundaryCrossing(t *testing.T) {
	t.Parallel()

	detector := NewDetector()
	celebration, err := detector.Observe(GroupLevelTiers, groupScope(), 9, 10)
	if err != nil {
		t.Fatalf("Observe error: %v", err)
	}
	if celebration == nil {
		t.Fatal("celebration = nil, want tier-up")
	}
	if celebration.Kind != CelebrationTierUp {
		t.Fatalf("kind = %q, want %q", celebration.Kind, CelebrationTierUp)
	}
	if celebration.PreviousTier.Name != "Spark" || celebration.CurrentTier.Name != "Bonfire" {
		t.Fatalf("tiers = %q -> %q, want Spark -> Bonfire", celebration.PreviousTier.Name, celebration.CurrentTier.Name)
	}
	if celebration.NewValue != 10 {
		t.Fatalf("new value = %d, want 10", celebration.NewValue)
	}
}

func TestObserveEmitsLevelUpWithinTier(t *testing.T) {
	t.Parallel()

	detector := NewDetector()
	celebration, err := detector.Observe(GroupLevelTiers, groupScope(), 3, 4)
	if err != nil {
		t.Fatalf("Observe error: %v", err)
	}
	if celebration == nil {
		t.Fatal("celebration = nil, want level-up")
	}
	if celebration.Kind != CelebrationLevelUp {
		t.Fatalf("kind = %q, want %q", celebration.Kind, CelebrationLevelUp)
	}
	if celebration.OldValue != 3 || celebration.NewValue != 4 {
		t.Fatalf("values = %d -> %d, want 3 -> 4", celebration.OldValue, celebration.NewValue)
	}
	if celebration.CurrentTier.Name != "Spark" {
		t.Fatalf("current tier = %q, want Spark", celebration.CurrentTier.Name)
	}
}

func TestObserveCollapsesOfflineJumpIntoOneTierUp(t *testing.T) {
	t.Parallel()

	// Boundaries at 10 and 20: a jump from 8 to 15 crossed exactly one.
	detector := NewDetector()
	celebration, err := detector.Observe(GroupLevelTiers, groupScope(), 8, 15)
	if err != nil {
		t.Fatalf("Observe error: %v", err)
	}
	if celebration == nil || celebration.Kind != CelebrationTierUp {
		t.Fatalf("celebration = %+v, want one tier-up", celebration)
	}
	if celebration.PreviousTier.Name != "Spark" {
		t.Fatalf("previous tier = %q, want Spark (from level 8)", celebration.PreviousTier.Name)
	}
	if celebration.CurrentTier.Name != "Bonfire" {
		t.Fatalf("current tier = %q, want Bonfire (from level 15)", celebration.CurrentTier.Name)
	}

	// The collapsed value must not celebrate again, as tier-up or level-up.
	repeat, err := detector.Observe(GroupLevelTiers, groupScope(), 8, 15)
	if err != nil {
		t.Fatalf("repeat Observe error: %v", err)
	}
	if repeat != nil {
		t.Fatalf("repeat celebration = %+v, want nil", repeat)
	}
}

func TestObserveTierUpSuppressesLevelUpForSameValue(t *testing.T) {
	t.Parallel()

	detector := NewDetector()
	first, err := detector.Observe(GroupLevelTiers, groupScope(), 9, 10)
	if err != nil {
		t.Fatalf("Observe error: %v", err)
	}
	if first == nil || first.Kind != CelebrationTierUp {
		t.Fatalf("first = %+v, want tier-up", first)
	}

	// A re-render observing the same target value from inside the new tier
	// must not downgrade to a level-up notification.
	second, err := detector.Observe(GroupLevelTiers, groupScope(), 9, 10)
	if err != nil {
		t.Fatalf("second Observe error: %v", err)
	}
	if second != nil {
		t.Fatalf("second = %+v, want nil", second)
	}
}

func TestObserveIgnoresEqualValues(t *testing.T) {
	t.Parallel()

	detector := NewDetector()
	celebration, err := detector.Observe(GroupLevelTiers, groupScope(), 5, 5)
	if err != nil {
		t.Fatalf("Observe error: %v", err)
	}
	if celebration != nil {
		t.Fatalf("celebration = %+v, want nil", celebration)
	}
}

func TestObserveRejectsDecreasingValues(t *testing.T) {
	t.Parallel()

	detector := NewDetector()
	celebration, err := detector.Observe(GroupLevelTiers, groupScope(), 40, 38)
	if !errors.Is(err, apperrors.New(apperrors.CodeCounterRegressed, "")) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeCounterRegressed)
	}
	if celebration != nil {
		t.Fatalf("celebration = %+v, want nil", celebration)
	}
}

func TestObserveDeduplicatesPerScopeAndValue(t *testing.T) {
	t.Parallel()

	detector := NewDetector()
	var wg sync.WaitGroup
	celebrations := make([]*Celebration, 8)
	for i := range celebrations {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			celebration, err := detector.Observe(GroupLevelTiers, groupScope(), 3, 4)
			if err != nil {
				t.Errorf("Observe error: %v", err)
			}
			celebrations[i] = celebration
		}(i)
	}
	wg.Wait()

	emitted := 0
	for _, celebration := range celebrations {
		if celebration != nil {
			emitted++
		}
	}
	if emitted != 1 {
		t.Fatalf("emitted = %d celebrations for one (scope, value) pair, want 1", emitted)
	}

	// A different scope with the same value is independent.
	other, err := detector.Observe(GroupLevelTiers, Scope{Kind: ScopeKindGroup, ID: "group-2"}, 3, 4)
	if err != nil {
		t.Fatalf("other scope Observe error: %v", err)
	}
	if other == nil {
		t.Fatal("other scope celebration = nil, want level-up")
	}
}
