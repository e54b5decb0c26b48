package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_IsMatchesClass(t *testing.T) {
	err := Input("mapper.build", "billing.cpf", "11 digits", "123")
	wrapped := fmt.Errorf("emit order 42: %w", err)

	if !errors.Is(wrapped, ErrInput) {
		t.Error("expected wrapped error to match ErrInput")
	}
	if errors.Is(wrapped, ErrCrypto) {
		t.Error("did not expect ErrCrypto")
	}
	if ClassOf(wrapped) != ErrInput {
		t.Errorf("expected class ErrInput, got %v", ClassOf(wrapped))
	}

	var e *Error
	if !errors.As(wrapped, &e) || e.Field != "billing.cpf" {
		t.Fatalf("expected *Error with field, got %v", e)
	}
	msg := err.Error()
	for _, part := range []string{"mapper.build", "billing.cpf", "11 digits", `"123"`} {
		if !strings.Contains(msg, part) {
			t.Errorf("expected %q in %q", part, msg)
		}
	}
}

func TestWrap_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrSerialization, "xmldps.serialize", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable")
	}
	if !errors.Is(err, ErrSerialization) {
		t.Error("expected class to match")
	}
	if ClassOf(errors.New("plain")) != nil {
		t.Error("expected nil class for plain errors")
	}
}

func TestSentinelWrapping(t *testing.T) {
	errTooLarge := fmt.Errorf("payload too large: %w", ErrSizeLimit)
	if ClassOf(fmt.Errorf("compress: %w", errTooLarge)) != ErrSizeLimit {
		t.Error("expected size class through sentinel chain")
	}
}
