package domain

import (
	"strings"

	apperrors "github.com/emberhabit/ember/internal/platform/errors"
)

// ScopeKind identifies which progression axis a scope belongs to.
type ScopeKind string

const (
	// ScopeKindHabit tracks an individual habit's streak length.
	ScopeKindHabit ScopeKind = "habit"
	// ScopeKindGroup tracks a group's level.
	ScopeKindGroup ScopeKind = "group"
)

// ParseScopeKind normalizes a scope kind label.
func ParseScopeKind(value string) (ScopeKind, error) {
	switch ScopeKind(strings.ToLower(strings.TrimSpace(value))) {
	case ScopeKindHabit:
		return ScopeKindHabit, nil
	case ScopeKindGroup:
		return ScopeKindGroup, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeScopeKindInvalid, "scope kind must be habit or group", map[string]string{
			"kind": value,
		})
	}
}

// Scope is the identity under which a progression record and cursor are
// tracked: one habit or one group.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// Validate checks the scope identity.
func (s Scope) Validate() error {
	if s.Kind != ScopeKindHabit && s.Kind != ScopeKindGroup {
		return apperrors.WithMetadata(apperrors.CodeScopeKindInvalid, "scope kind must be habit or group", map[string]string{
			"kind": string(s.Kind),
		})
	}
	if strings.TrimSpace(s.ID) == "" {
		return apperrors.New(apperrors.CodeScopeIDEmpty, "scope id is required")
	}
	return nil
}

// Key returns a stable map key for the scope.
func (s Scope) Key() string {
	return string(s.Kind) + "/" + s.ID
}
