// Package errors provides structured error handling for progression flows.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Scope errors
	CodeScopeKindInvalid Code = "SCOPE_KIND_INVALID"
	CodeScopeIDEmpty     Code = "SCOPE_ID_EMPTY"

	// Tier errors
	CodeTierTableInvalid Code = "TIER_TABLE_INVALID"
	CodeTierUnresolved   Code = "TIER_UNRESOLVED"
	CodeCounterNegative  Code = "COUNTER_NEGATIVE"

	// Milestone errors
	CodeMilestonesUnordered Code = "MILESTONES_UNORDERED"
	CodeMilestoneUnknown    Code = "MILESTONE_UNKNOWN"

	// Quest errors
	CodeQuestTargetInvalid Code = "QUEST_TARGET_INVALID"

	// Reconciliation errors
	CodeCounterRegressed Code = "COUNTER_REGRESSED"
	CodeAwardRejected    Code = "AWARD_REJECTED"

	// Backend errors
	CodeBackendUnavailable  Code = "BACKEND_UNAVAILABLE"
	CodeBackendUnauthorized Code = "BACKEND_UNAUTHORIZED"
	CodeBackendBadResponse  Code = "BACKEND_BAD_RESPONSE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeScopeKindInvalid,
		CodeScopeIDEmpty,
		CodeCounterNegative,
		CodeQuestTargetInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeCounterRegressed,
		CodeAwardRejected:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeConflict:
		return codes.AlreadyExists

	// Unavailable - transient backend failures, retried on the next trigger
	case CodeBackendUnavailable:
		return codes.Unavailable

	// Unauthenticated - backend rejected the installation token
	case CodeBackendUnauthorized:
		return codes.Unauthenticated

	// Internal - invariant violations that indicate upstream data or logic bugs
	case CodeTierTableInvalid,
		CodeTierUnresolved,
		CodeMilestonesUnordered,
		CodeMilestoneUnknown,
		CodeBackendBadResponse:
		return codes.Internal

	default:
		return codes.Internal
	}
}
