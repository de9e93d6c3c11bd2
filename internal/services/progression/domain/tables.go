package domain

// Static tier tables for the two shipped progression axes. The bounds are
// immutable for the lifetime of the app version; changing them requires a
// coordinated backend release.

func boundedAt(value int) *int {
	return &value
}

// HabitStreakTiers maps a habit's streak length to its tier.
var HabitStreakTiers = TierTable{
	Axis: "habit-streak",
	Tiers: []TierDefinition{
		{Index: 1, Name: "Ember", LowerBound: 0, UpperBound: boundedAt(6), Multiplier: 1.0},
		{Index: 2, Name: "Kindled", LowerBound: 7, UpperBound: boundedAt(20), Multiplier: 1.25},
		{Index: 3, Name: "Blazing", LowerBound: 21, UpperBound: boundedAt(59), Multiplier: 1.5},
		{Index: 4, Name: "Inferno", LowerBound: 60, UpperBound: boundedAt(119), Multiplier: 2.0},
		{Index: 5, Name: "Eternal", LowerBound: 120, Multiplier: 3.0},
	},
}

// GroupLevelTiers maps a group's level to its tier.
var GroupLevelTiers = TierTable{
	Axis: "group-level",
	Tiers: []TierDefinition{
		{Index: 1, Name: "Spark", LowerBound: 0, UpperBound: boundedAt(9), Multiplier: 1.0},
		{Index: 2, Name: "Bonfire", LowerBound: 10, UpperBound: boundedAt(19), Multiplier: 1.5},
		{Index: 3, Name: "Beacon", LowerBound: 20, Multiplier: 2.0},
	},
}

// TableForScopeKind selects the tier table for a progression axis.
func TableForScopeKind(kind ScopeKind) (TierTable, error) {
	switch kind {
	case ScopeKindHabit:
		return HabitStreakTiers, nil
	case ScopeKindGroup:
		return GroupLevelTiers, nil
	default:
		_, err := ParseScopeKind(string(kind))
		return TierTable{}, err
	}
}
