package domain

import (
	"errors"
	"math"
	"testing"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

func TestResolveTierMatchesExactlyOneTier(t *testing.T) {
	t.Parallel()

	for counter := 0; counter <= 400; counter++ {
		progress, err := ResolveTier(HabitStreakTiers, counter)
		if err != nil {
			t.Fatalf("ResolveTier(%d) error: %v", counter, err)
		}
		matches := 0
		for _, tier := range HabitStreakTiers.Tiers {
			if counter >= tier.LowerBound && (tier.UpperBound == nil || counter <= *tier.UpperBound) {
				matches++
			}
		}
		if matches != 1 {
			t.Fatalf("counter %d matches %d tiers, want 1", counter, matches)
		}
		if progress.Percent < 0 || progress.Percent > 100 {
			t.Fatalf("counter %d percent = %v, want within [0,100]", counter, progress.Percent)
		}
	}
}

func TestResolveTierIsMonotonic(t *testing.T) {
	t.Parallel()

	previous := 0
	for counter := 0; counter <= 400; counter++ {
		progress, err := ResolveTier(HabitStreakTiers, counter)
		if err != nil {
			t.Fatalf("ResolveTier(%d) error: %v", counter, err)
		}
		if progress.Tier.Index < previous {
			t.Fatalf("tier index decreased at counter %d: %d < %d", counter, progress.Tier.Index, previous)
		}
		previous = progress.Tier.Index
	}
}

func TestResolveTierProgressPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		counter int
		tier    string
		percent float64
	}{
		{name: "tier start", counter: 0, tier: "Ember", percent: 0},
		{name: "mid tier", counter: 7, tier: "Kindled", percent: 0},
		{name: "near tier end", counter: 20, tier: "Kindled", percent: float64(20-7) / float64(20-7+1) * 100},
		{name: "topmost always full", counter: 120, tier: "Eternal", percent: 100},
		{name: "topmost deep", counter: 9999, tier: "Eternal", percent: 100},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			progress, err := ResolveTier(HabitStreakTiers, tc.counter)
			if err != nil {
				t.Fatalf("ResolveTier(%d) error: %v", tc.counter, err)
			}
			if progress.Tier.Name != tc.tier {
				t.Fatalf("tier = %q, want %q", progress.Tier.Name, tc.tier)
			}
			if math.Abs(progress.Percent-tc.percent) > 1e-9 {
				t.Fatalf("percent = %v, want %v", progress.Percent, tc.percent)
			}
		})
	}
}

func TestResolveTierRejectsNegativeCounter(t *testing.T) {
	t.Parallel()

	_, err := ResolveTier(GroupLevelTiers, -1)
	if !errors.Is(err, apperrors.New(apperrors.CodeCounterNegative, "")) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeCounterNegative)
	}
}

func TestTierTableValidateRejectsGapsAndOverlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		table TierTable
	}{
		{
			name:  "empty table",
			table: TierTable{Axis: "test"},
		},
		{
			name: "gap between tiers",
			table: TierTable{Axis: "test", Tiers: []TierDefinition{
				{Index: 1, Name: "a", LowerBound: 0, UpperBound: boundedAt(5), Multiplier: 1},
				{Index: 2, Name: "b", LowerBound: 7, Multiplier: 2},
			}},
		},
		{
			name: "overlap between tiers",
			table: TierTable{Axis: "test", Tiers: []TierDefinition{
				{Index: 1, Name: "a", LowerBound: 0, UpperBound: boundedAt(5), Multiplier: 1},
				{Index: 2, Name: "b", LowerBound: 4, Multiplier: 2},
			}},
		},
		{
			name: "bounded topmost tier",
			table: TierTable{Axis: "test", Tiers: []TierDefinition{
				{Index: 1, Name: "a", LowerBound: 0, UpperBound: boundedAt(5), Multiplier: 1},
			}},
		},
		{
			name: "unbounded middle tier",
			table: TierTable{Axis: "test", Tiers: []TierDefinition{
				{Index: 1, Name: "a", LowerBound: 0, Multiplier: 1},
				{Index: 2, Name: "b", LowerBound: 6, Multiplier: 2},
			}},
		},
		{
			name: "index not increasing from 1",
			table: TierTable{Axis: "test", Tiers: []TierDefinition{
				{Index: 2, Name: "a", LowerBound: 0, Multiplier: 1},
			}},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.table.Validate()
			if !errors.Is(err, apperrors.New(apperrors.CodeTierTableInvalid, "")) {
				t.Fatalf("error = %v, want code %s", err, apperrors.CodeTierTableInvalid)
			}
		})
	}
}

func TestShippedTablesAreValid(t *testing.T) {
	t.Parallel()

	if err := HabitStreakTiers.Validate(); err != nil {
		t.Fatalf("habit table invalid: %v", err)
	}
	if err := GroupLevelTiers.Validate(); err != nil {
		t.Fatalf("group table invalid: %v", err)
	}
}
