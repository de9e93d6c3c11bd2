package domain

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

// Milestone is a one-time-rewardable day-count threshold.
type Milestone struct {
	ID           string
	DayThreshold int
	XP           int
	Badge        string
}

// DefaultMilestones is the shipped habit milestone ladder.
var DefaultMilestones = []Milestone{
	{ID: "streak-3", DayThreshold: 3, XP: 30},
	{ID: "streak-7", DayThreshold: 7, XP: 70, Badge: "week-one"},
	{ID: "streak-14", DayThreshold: 14, XP: 150},
	{ID: "streak-21", DayThreshold: 21, XP: 250, Badge: "habit-formed"},
	{ID: "streak-30", DayThreshold: 30, XP: 400, Badge: "month-one"},
	{ID: "streak-60", DayThreshold: 60, XP: 800},
	{ID: "streak-90", DayThreshold: 90, XP: 1200, Badge: "quarter"},
	{ID: "streak-180", DayThreshold: 180, XP: 2500},
	{ID: "streak-365", DayThreshold: 365, XP: 6000, Badge: "year-one"},
}

// ValidateMilestones checks that thresholds are unique, sorted ascending, and
// rewards are non-negative. Unordered thresholds indicate a data bug upstream.
func ValidateMilestones(milestones []Milestone) error {
	previous := -1
	for _, milestone := range milestones {
		if strings.TrimSpace(milestone.ID) == "" {
			return apperrors.New(apperrors.CodeMilestonesUnordered, "milestone id is required")
		}
		if milestone.DayThreshold <= previous {
			return apperrors.WithMetadata(apperrors.CodeMilestonesUnordered, "milestone thresholds must be unique and ascending", map[string]string{
				"milestone": milestone.ID,
				"threshold": strconv.Itoa(milestone.DayThreshold),
			})
		}
		if milestone.XP < 0 {
			return apperrors.WithMetadata(apperrors.CodeMilestonesUnordered, "milestone reward must be non-negative", map[string]string{
				"milestone": milestone.ID,
			})
		}
		previous = milestone.DayThreshold
	}
	return nil
}

// ElapsedDays returns the calendar-day difference between start and now with
// both timestamps normalized to midnight in loc. Day 1 begins at creation,
// not 24 elapsed hours later, matching the day-boundary semantics used for
// streak accounting.
func ElapsedDays(start, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	from := dayOrdinal(start.In(loc))
	to := dayOrdinal(now.In(loc))
	return to - from
}

// dayOrdinal maps a local timestamp to a whole-day count in a fixed-offset
// calendar. DST shifts the length of a local day, so dividing a midnight
// difference by 24h would miscount across transitions.
func dayOrdinal(t time.Time) int {
	year, month, day := t.Date()
	utcDay := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return int(utcDay.Unix() / (24 * 60 * 60))
}

// ReachedMilestones returns the ordered subset of milestones whose threshold
// is at most elapsedDays. Pure and idempotent: identical input always yields
// an identical result, which is what makes award reconciliation safe.
func ReachedMilestones(milestones []Milestone, elapsedDays int) ([]Milestone, error) {
	if err := ValidateMilestones(milestones); err != nil {
		return nil, err
	}
	reached := make([]Milestone, 0, len(milestones))
	for _, milestone := range milestones {
		if milestone.DayThreshold > elapsedDays {
			break
		}
		reached = append(reached, milestone)
	}
	return reached, nil
}
