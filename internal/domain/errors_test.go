package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	base := errors.New("connection reset")

	tests := []struct {
		name       string
		err        error
		validation bool
		notFound   bool
		storage    bool
		completion bool
	}{
		{
			name:       "validation",
			err:        NewValidationError("amount", "must be positive"),
			validation: true,
		},
		{
			name:     "wrapped not found",
			err:      fmt.Errorf("Deposit: %w", NewNotFoundError("goal", "g1")),
			notFound: true,
		},
		{
			name:    "storage",
			err:     NewStorageError("insert conversation", base),
			storage: true,
		},
		{
			name:       "completion",
			err:        &CompletionError{Transient: true, Err: base},
			completion: true,
		},
		{
			name: "plain",
			err:  base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.validation {
				t.Errorf("IsValidation() = %v, want %v", got, tt.validation)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsStorage(tt.err); got != tt.storage {
				t.Errorf("IsStorage() = %v, want %v", got, tt.storage)
			}
			if got := IsCompletion(tt.err); got != tt.completion {
				t.Errorf("IsCompletion() = %v, want %v", got, tt.completion)
			}
		})
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	base := errors.New("timeout")
	err := NewStorageError("list goals", base)

	if !errors.Is(err, base) {
		t.Error("expected StorageError to unwrap to its cause")
	}
	if err.Error() != "storage: list goals: timeout" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestCompletionErrorMessage(t *testing.T) {
	err := &CompletionError{Err: errors.New("quota exceeded")}
	if err.Error() != "completion (permanent): quota exceeded" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestValidationErrorMessage(t *testing.T) {
	if got := NewValidationError("", "empty input").Error(); got != "validation failed: empty input" {
		t.Errorf("unexpected message: %s", got)
	}
	if got := NewValidationError("type", "unknown").Error(); got != "validation failed: type: unknown" {
		t.Errorf("unexpected message: %s", got)
	}
}
