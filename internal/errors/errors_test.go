package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindConfig, "configuration"},
		{KindValidation, "validation"},
		{KindState, "state"},
		{KindNotFound, "not_found"},
		{KindConflict, "conflict"},
		{KindIO, "io"},
		{KindNetwork, "network"},
		{KindInternal, "internal"},
		{Kind(200), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("Kind.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with op and message only",
			err:  &Error{Op: "ledger.Register", Message: "artifact name is required"},
			want: "ledger.Register: artifact name is required",
		},
		{
			name: "with op, message, and underlying error",
			err: &Error{
				Op:      "ledger.Save",
				Message: "snapshot write failed",
				Err:     errors.New("disk full"),
			},
			want: "ledger.Save: snapshot write failed: disk full",
		},
		{
			name: "message only",
			err:  &Error{Message: "plain"},
			want: "plain",
		},
		{
			name: "message with underlying error",
			err:  &Error{Message: "plain", Err: errors.New("cause")},
			want: "plain: cause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		target error
		want   bool
	}{
		{
			name:   "match by kind only",
			err:    Config("op", "msg"),
			target: &Error{Kind: KindConfig},
			want:   true,
		},
		{
			name:   "match by kind and op",
			err:    Config("op", "msg"),
			target: Config("op", "different msg"),
			want:   true,
		},
		{
			name:   "different kind",
			err:    Config("op", "msg"),
			target: &Error{Kind: KindState},
			want:   false,
		},
		{
			name:   "same kind different op",
			err:    Config("op1", "msg"),
			target: Config("op2", "msg"),
			want:   false,
		},
		{
			name:   "non-Error target",
			err:    Config("op", "msg"),
			target: errors.New("standard error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Is(tt.target); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	sentinel := errors.New("no such artifact")
	err := NotFoundWrap(sentinel, "ledger.StoreVersion", "api/deb")

	if !errors.Is(err, sentinel) {
		t.Fatal("errors.Is() should find the wrapped sentinel")
	}
	if !IsKind(err, KindNotFound) {
		t.Errorf("GetKind() = %v, want %v", GetKind(err), KindNotFound)
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if GetKind(wrapped) != KindNotFound {
		t.Errorf("GetKind() through fmt wrap = %v, want %v", GetKind(wrapped), KindNotFound)
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Error("GetKind() of a plain error should be KindUnknown")
	}
}

func TestWrapFunctions(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"ConfigWrap", ConfigWrap(cause, "op", "msg"), KindConfig},
		{"StateWrap", StateWrap(cause, "op", "msg"), KindState},
		{"IOWrap", IOWrap(cause, "op", "msg"), KindIO},
		{"NetworkWrap", NetworkWrap(cause, "op", "msg"), KindNetwork},
		{"NotFoundWrap", NotFoundWrap(cause, "op", "msg"), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Unwrap() != cause {
				t.Errorf("Unwrap() = %v, want %v", tt.err.Unwrap(), cause)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	if e := New(KindInternal, "boom"); e.Kind != KindInternal || e.Message != "boom" {
		t.Errorf("New() = %+v", e)
	}
	if e := Newf(KindValidation, "bad %s", "input"); e.Message != "bad input" {
		t.Errorf("Newf() message = %q", e.Message)
	}
	if e := Validation("op", "msg"); e.Kind != KindValidation {
		t.Errorf("Validation() kind = %v", e.Kind)
	}
	if e := Conflict("op", "msg"); e.Kind != KindConflict {
		t.Errorf("Conflict() kind = %v", e.Kind)
	}

	e := Config("op", "msg").WithDetail("key", "value")
	if e.Details["key"] != "value" {
		t.Errorf("WithDetail() details = %v", e.Details)
	}
}
