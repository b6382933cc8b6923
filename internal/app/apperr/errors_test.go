package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Message(t *testing.T) {
	t.Parallel()

	if got := (&Error{Code: "X"}).Error(); got != "X" {
		t.Fatalf("got %q, want code fallback", got)
	}
	if got := (&Error{Code: "X", Message: "boom"}).Error(); got != "boom" {
		t.Fatalf("got %q, want message", got)
	}
	var nilErr *Error
	if got := nilErr.Error(); got != "" {
		t.Fatalf("nil error = %q", got)
	}
}

func TestError_As(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrap: %w", Validation("invalid q", "q", "too short"))
	ae := (*Error)(nil)
	if !errors.As(err, &ae) {
		t.Fatalf("errors.As failed for %T", err)
	}
	if ae.Status != 422 || ae.Code != "VALIDATION_ERROR" || ae.Details["q"] != "too short" {
		t.Fatalf("got %+v", ae)
	}
	if nf := MemberNotProvisioned(); nf.Status != 404 || nf.Code != "MEMBER_NOT_PROVISIONED" {
		t.Fatalf("got %+v", nf)
	}
}
