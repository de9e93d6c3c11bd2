package domain

import (
	"math"
	"strconv"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

// DefaultQuestTargetPercent scales quest targets against a user's habit count.
const DefaultQuestTargetPercent = 0.6

// NormalizeQuestTarget adjusts a quest's base target to the user's habit
// count so quest difficulty stays proportionate. The result is monotonically
// non-decreasing in habit count and never falls below the base target.
func NormalizeQuestTarget(baseTarget, habitsCount int, percent float64) (int, error) {
	if baseTarget <= 0 {
		return 0, apperrors.WithMetadata(apperrors.CodeQuestTargetInvalid, "base target must be positive", map[string]string{
			"base": strconv.Itoa(baseTarget),
		})
	}
	if habitsCount < 0 {
		return 0, apperrors.WithMetadata(apperrors.CodeQuestTargetInvalid, "habit count must be non-negative", map[string]string{
			"habits": strconv.Itoa(habitsCount),
		})
	}
	if percent <= 0 || percent > 1 {
		return 0, apperrors.WithMetadata(apperrors.CodeQuestTargetInvalid, "percent must be in (0, 1]", map[string]string{
			"percent": strconv.FormatFloat(percent, 'f', -1, 64),
		})
	}
	if habitsCount <= baseTarget {
		return baseTarget, nil
	}
	scaled := int(math.Round(float64(habitsCount) * percent))
	if scaled < baseTarget {
		return baseTarget, nil
	}
	return scaled, nil
}
