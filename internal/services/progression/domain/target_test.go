package domain

import (
	"errors"
	"testing"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

func TestNormalizeQuestTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    int
		habits  int
		percent float64
		want    int
	}{
		{name: "small habit count keeps base", base: 10, habits: 3, percent: 0.6, want: 10},
		{name: "large habit count scales", base: 10, habits: 30, percent: 0.6, want: 18},
		{name: "equal habit count keeps base", base: 10, habits: 10, percent: 0.6, want: 10},
		{name: "scaled below base keeps base", base: 10, habits: 12, percent: 0.6, want: 10},
		{name: "rounds to nearest", base: 2, habits: 9, percent: 0.6, want: 5},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeQuestTarget(tc.base, tc.habits, tc.percent)
			if err != nil {
				t.Fatalf("NormalizeQuestTarget error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("NormalizeQuestTarget(%d, %d, %v) = %d, want %d", tc.base, tc.habits, tc.percent, got, tc.want)
			}
		})
	}
}

func TestNormalizeQuestTargetIsMonotonicAndNeverBelowBase(t *testing.T) {
	t.Parallel()

	previous := 0
	for habits := 0; habits <= 200; habits++ {
		got, err := NormalizeQuestTarget(10, habits, 0.6)
		if err != nil {
			t.Fatalf("NormalizeQuestTarget(10, %d) error: %v", habits, err)
		}
		if got < 10 {
			t.Fatalf("habits %d: target %d fell below base", habits, got)
		}
		if got < previous {
			t.Fatalf("habits %d: target decreased from %d to %d", habits, previous, got)
		}
		previous = got
	}
}

func TestNormalizeQuestTargetRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    int
		habits  int
		percent float64
	}{
		{name: "zero base", base: 0, habits: 5, percent: 0.6},
		{name: "negative habits", base: 10, habits: -1, percent: 0.6},
		{name: "zero percent", base: 10, habits: 5, percent: 0},
		{name: "percent above one", base: 10, habits: 5, percent: 1.5},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NormalizeQuestTarget(tc.base, tc.habits, tc.percent)
			if !errors.Is(err, apperrors.New(apperrors.CodeQuestTargetInvalid, "")) {
				t.Fatalf("error = %v, want code %s", err, apperrors.CodeQuestTargetInvalid)
			}
		})
	}
}
