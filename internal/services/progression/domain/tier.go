package domain

import (
	"strconv"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

// TierDefinition is one band of a counter's range with a reward multiplier.
// UpperBound is nil only for the topmost tier of a table.
type TierDefinition struct {
	Index      int
	Name       string
	LowerBound int
	UpperBound *int
	Multiplier float64
}

// contains reports whether counter falls inside the tier's bounds.
func (t TierDefinition) contains(counter int) bool {
	if counter < t.LowerBound {
		return false
	}
	return t.UpperBound == nil || counter <= *t.UpperBound
}

// TierTable is the ordered list of tier definitions for one progression axis.
type TierTable struct {
	Axis  string
	Tiers []TierDefinition
}

// Validate checks that the table partitions the non-negative integers with no
// gaps and no overlaps: indexes strictly increase from 1, the first tier
// starts at 0, each tier begins where the previous one ended, and only the
// topmost tier has an open upper bound.
func (t TierTable) Validate() error {
	if len(t.Tiers) == 0 {
		return apperrors.WithMetadata(apperrors.CodeTierTableInvalid, "tier table has no tiers", map[string]string{
			"axis": t.Axis,
		})
	}
	expectedLower := 0
	for i, tier := range t.Tiers {
		if tier.Index != i+1 {
			return t.invalid("tier indexes must increase from 1", tier)
		}
		if tier.LowerBound != expectedLower {
			return t.invalid("tier bounds must partition the counter domain", tier)
		}
		last := i == len(t.Tiers)-1
		if last {
			if tier.UpperBound != nil {
				return t.invalid("topmost tier must have an open upper bound", tier)
			}
			continue
		}
		if tier.UpperBound == nil {
			return t.invalid("only the topmost tier may omit an upper bound", tier)
		}
		if *tier.UpperBound < tier.LowerBound {
			return t.invalid("tier upper bound precedes its lower bound", tier)
		}
		expectedLower = *tier.UpperBound + 1
	}
	return nil
}

func (t TierTable) invalid(message string, tier TierDefinition) error {
	return apperrors.WithMetadata(apperrors.CodeTierTableInvalid, message, map[string]string{
		"axis":  t.Axis,
		"tier":  tier.Name,
		"index": strconv.Itoa(tier.Index),
	})
}

// TierProgress pairs a resolved tier with the progress percentage inside it.
type TierProgress struct {
	Tier    TierDefinition
	Percent float64
}

// ResolveTier maps a counter to its tier and progress-within-tier. It is pure
// and synchronous so callers can render a correct tier before any fetch
// completes. An unmatched counter is a programming error and fails loudly
// instead of defaulting.
func ResolveTier(table TierTable, counter int) (TierProgress, error) {
	if err := table.Validate(); err != nil {
		return TierProgress{}, err
	}
	if counter < 0 {
		return TierProgress{}, apperrors.WithMetadata(apperrors.CodeCounterNegative, "counter must be non-negative", map[string]string{
			"axis":    table.Axis,
			"counter": strconv.Itoa(counter),
		})
	}
	for _, tier := range table.Tiers {
		if !tier.contains(counter) {
			continue
		}
		if tier.UpperBound == nil {
			return TierProgress{Tier: tier, Percent: 100}, nil
		}
		span := float64(*tier.UpperBound - tier.LowerBound + 1)
		percent := float64(counter-tier.LowerBound) / span * 100
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		return TierProgress{Tier: tier, Percent: percent}, nil
	}
	return TierProgress{}, apperrors.WithMetadata(apperrors.CodeTierUnresolved, "no tier matches counter", map[string]string{
		"axis":    table.Axis,
		"counter": strconv.Itoa(counter),
	})
}
