package apperr

import (
	"errors"
	"testing"
)

func TestNewAndIs(t *testing.T) {
	err := New(KindForbidden, "nope")
	if !Is(err, KindForbidden) {
		t.Fatalf("expected Is to match KindForbidden")
	}
	if Is(err, KindNotFound) {
		t.Fatalf("expected Is to not match KindNotFound")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("db exploded")
	err := Wrap(KindInternal, "create message", cause)

	if !Is(err, KindInternal) {
		t.Fatalf("expected Is to match KindInternal")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to unwrap to the cause")
	}
}

func TestIsFalseForPlainError(t *testing.T) {
	if Is(errors.New("plain"), KindForbidden) {
		t.Fatalf("expected a plain error to never match a Kind")
	}
}

func TestErrorMessageFallsBackToKind(t *testing.T) {
	err := &Error{Kind: KindRateLimited}
	if err.Error() != string(KindRateLimited) {
		t.Fatalf("expected Error() to fall back to the kind, got %q", err.Error())
	}
}
