package errors

import (
	stderrors "errors"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorMatchesByCode(t *testing.T) {
	t.Parallel()

	base := New(CodeCounterRegressed, "counter moved backwards")
	other := New(CodeCounterRegressed, "different message, same code")

	if !stderrors.Is(base, other) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(base, New(CodeNotFound, "missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("connection refused")
	wrapped := Wrap(CodeBackendUnavailable, "award submission failed", cause)

	if !stderrors.Is(wrapped, cause) {
		t.Fatal("expected wrapped error to unwrap to the cause")
	}
	if wrapped.Error() != "award submission failed" {
		t.Fatalf("unexpected message: %q", wrapped.Error())
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want codes.Code
	}{
		{CodeScopeIDEmpty, codes.InvalidArgument},
		{CodeCounterNegative, codes.InvalidArgument},
		{CodeQuestTargetInvalid, codes.InvalidArgument},
		{CodeCounterRegressed, codes.FailedPrecondition},
		{CodeNotFound, codes.NotFound},
		{CodeConflict, codes.AlreadyExists},
		{CodeBackendUnavailable, codes.Unavailable},
		{CodeBackendUnauthorized, codes.Unauthenticated},
		{CodeTierUnresolved, codes.Internal},
		{CodeTierTableInvalid, codes.Internal},
		{CodeMilestonesUnordered, codes.Internal},
		{Code("SOMETHING_NEW"), codes.Internal},
	}
	for _, tc := range cases {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("code %s mapped to %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestToGRPCStatusCarriesErrorInfo(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodeTierUnresolved, "no tier matched counter", map[string]string{
		"counter": "-3",
		"axis":    "habit-streak",
	}).ToGRPCStatus()

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected a gRPC status, got %v", err)
	}
	if st.Code() != codes.Internal {
		t.Fatalf("status code = %s, want %s", st.Code(), codes.Internal)
	}

	var info *errdetails.ErrorInfo
	for _, detail := range st.Details() {
		if d, ok := detail.(*errdetails.ErrorInfo); ok {
			info = d
		}
	}
	if info == nil {
		t.Fatal("expected ErrorInfo detail")
	}
	if info.GetReason() != string(CodeTierUnresolved) {
		t.Fatalf("reason = %q, want %q", info.GetReason(), CodeTierUnresolved)
	}
	if info.GetDomain() != Domain {
		t.Fatalf("domain = %q, want %q", info.GetDomain(), Domain)
	}
	if info.GetMetadata()["counter"] != "-3" {
		t.Fatalf("metadata counter = %q, want %q", info.GetMetadata()["counter"], "-3")
	}
}
