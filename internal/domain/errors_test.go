package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "version conflict error",
			err:  ErrProductVersionConflict,
			want: true,
		},
		{
			name: "wrapped version conflict error",
			err:  fmt.Errorf("save product 7: %w", ErrProductVersionConflict),
			want: true,
		},
		{
			name: "joined version conflict error",
			err:  errors.Join(ErrProductVersionConflict, errors.New("additional context")),
			want: true,
		},
		{
			name: "other error",
			err:  ErrProductNotFound,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsVersionConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrProductNotFound) {
		t.Fatal("product not found must be reported as not found")
	}
	if !IsNotFound(fmt.Errorf("get order: %w", ErrOrderNotFound)) {
		t.Fatal("wrapped order not found must be reported as not found")
	}
	if IsNotFound(ErrProductVersionConflict) {
		t.Fatal("version conflict is not a not-found error")
	}
}

func TestBusinessError_UnwrapsCause(t *testing.T) {
	err := fmt.Errorf("place order: %w",
		NewBusinessError(CodeConcurrentUpdate, "concurrent stock update, please retry", ErrProductVersionConflict))

	be, ok := AsBusinessError(err)
	if !ok {
		t.Fatal("expected business error in chain")
	}
	if be.Code != CodeConcurrentUpdate {
		t.Fatalf("unexpected code: %s", be.Code)
	}
	if !IsVersionConflict(err) {
		t.Fatal("business error must keep the version conflict cause")
	}
	if !IsBusinessCode(err, CodeConcurrentUpdate) || IsBusinessCode(err, CodeInsufficientStock) {
		t.Fatal("IsBusinessCode must match the exact code")
	}
}

func TestValidationError(t *testing.T) {
	verr := NewValidationError()
	if verr.OrNil() != nil {
		t.Fatal("empty validation error must collapse to nil")
	}

	verr.Add("name", "name is required")
	verr.Add("name", "second message is ignored")
	verr.Add("price", "price must be greater than 0")

	err := verr.OrNil()
	if err == nil {
		t.Fatal("expected validation error")
	}
	got, ok := AsValidationError(fmt.Errorf("create: %w", err))
	if !ok {
		t.Fatal("expected validation error in chain")
	}
	if got.Fields["name"] != "name is required" {
		t.Fatalf("unexpected name message: %q", got.Fields["name"])
	}
	if err.Error() != "invalid data: name: name is required; price: price must be greater than 0" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
