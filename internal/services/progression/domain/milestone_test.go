package domain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

func TestElapsedDaysNormalizesToLocalMidnight(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("test", -5*60*60)
	tests := []struct {
		name  string
		start time.Time
		now   time.Time
		want  int
	}{
		{
			name:  "same day",
			start: time.Date(2026, time.March, 1, 9, 0, 0, 0, loc),
			now:   time.Date(2026, time.March, 1, 23, 59, 0, 0, loc),
			want:  0,
		},
		{
			name:  "one hour across midnight is one day",
			start: time.Date(2026, time.March, 1, 23, 30, 0, 0, loc),
			now:   time.Date(2026, time.March, 2, 0, 30, 0, 0, loc),
			want:  1,
		},
		{
			name:  "full week",
			start: time.Date(2026, time.March, 1, 12, 0, 0, 0, loc),
			now:   time.Date(2026, time.March, 8, 6, 0, 0, 0, loc),
			want:  7,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ElapsedDays(tc.start, tc.now, loc)
			if got != tc.want {
				t.Fatalf("ElapsedDays = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestElapsedDaysCountsCalendarDaysAcrossDST(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}

	tests := []struct {
		name  string
		start time.Time
		now   time.Time
		want  int
	}{
		{
			name:  "span containing spring forward",
			start: time.Date(2026, time.March, 1, 9, 0, 0, 0, loc),
			now:   time.Date(2026, time.March, 15, 9, 0, 0, 0, loc),
			want:  14,
		},
		{
			name:  "span containing fall back",
			start: time.Date(2026, time.October, 25, 9, 0, 0, 0, loc),
			now:   time.Date(2026, time.November, 8, 9, 0, 0, 0, loc),
			want:  14,
		},
		{
			name:  "one day over the transition itself",
			start: time.Date(2026, time.March, 7, 22, 0, 0, 0, loc),
			now:   time.Date(2026, time.March, 8, 22, 0, 0, 0, loc),
			want:  1,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ElapsedDays(tc.start, tc.now, loc)
			if got != tc.want {
				t.Fatalf("ElapsedDays = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReachedMilestonesIsMonotonicAndIdempotent(t *testing.T) {
	t.Parallel()

	previous := 0
	for days := -1; days <= 400; days++ {
		first, err := ReachedMilestones(DefaultMilestones, days)
		if err != nil {
			t.Fatalf("ReachedMilestones(%d) error: %v", days, err)
		}
		second, err := ReachedMilestones(DefaultMilestones, days)
		if err != nil {
			t.Fatalf("ReachedMilestones(%d) second call error: %v", days, err)
		}
		if len(first) != len(second) {
			t.Fatalf("day %d: repeated call differs: %d vs %d", days, len(first), len(second))
		}
		if len(first) < previous {
			t.Fatalf("day %d: reached set shrank from %d to %d", days, previous, len(first))
		}
		previous = len(first)
	}
}

func TestReachedMilestonesOrderedSubset(t *testing.T) {
	t.Parallel()

	reached, err := ReachedMilestones(DefaultMilestones, 25)
	if err != nil {
		t.Fatalf("ReachedMilestones error: %v", err)
	}
	want := []string{"streak-3", "streak-7", "streak-14", "streak-21"}
	if len(reached) != len(want) {
		t.Fatalf("reached = %d milestones, want %d", len(reached), len(want))
	}
	for i, id := range want {
		if reached[i].ID != id {
			t.Fatalf("reached[%d] = %q, want %q", i, reached[i].ID, id)
		}
	}
}

func TestReachedMilestonesRejectsUnorderedThresholds(t *testing.T) {
	t.Parallel()

	unordered := []Milestone{
		{ID: "a", DayThreshold: 7, XP: 10},
		{ID: "b", DayThreshold: 3, XP: 10},
	}
	_, err := ReachedMilestones(unordered, 10)
	if !errors.Is(err, apperrors.New(apperrors.CodeMilestonesUnordered, "")) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeMilestonesUnordered)
	}

	duplicate := []Milestone{
		{ID: "a", DayThreshold: 3, XP: 10},
		{ID: "b", DayThreshold: 3, XP: 10},
	}
	_, err = ReachedMilestones(duplicate, 10)
	if !errors.Is(err, apperrors.New(apperrors.CodeMilestonesUnordered, "")) {
		t.Fatalf("duplicate threshold error = %v, want code %s", err, apperrors.CodeMilestonesUnordered)
	}
}

func TestDefaultMilestonesAreValid(t *testing.T) {
	t.Parallel()

	if err := ValidateMilestones(DefaultMilestones); err != nil {
		t.Fatalf("default milestones invalid: %v", err)
	}
}
