package errors

import (
	"fmt"
	"testing"
)

func TestConstructorsKeepSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"not found", NewNotFound("ticks"), ErrSeriesNotFound},
		{"metadata", NewMetadataUnavailable("ticks", nil), ErrMetadataUnavailable},
		{"metadata with cause", NewMetadataUnavailable("ticks", fmt.Errorf("boom")), ErrMetadataUnavailable},
		{"exhausted", NewStreamExhausted("blocks", 10, 20), ErrStreamExhausted},
		{"out of order", NewOutOfOrder("blocks", 20, 10), ErrOutOfOrder},
		{"validation", NewValidation("period", "unknown"), ErrInvalidConfig},
		{"missing", NewMissingField("series"), ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.sentinel) {
				t.Errorf("%v does not match %v", tt.err, tt.sentinel)
			}
		})
	}
}

func TestNewPersistenceKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewPersistence("gasPrice", cause)

	if !Is(err, ErrPersistence) {
		t.Error("expected ErrPersistence")
	}
	if !Is(err, cause) {
		t.Error("expected cause to be preserved")
	}
	if IsFatal(err) {
		t.Error("persistence errors must not be fatal")
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(nil) {
		t.Error("nil is not fatal")
	}
	if !IsFatal(NewStreamExhausted("k", 1, 2)) {
		t.Error("stream exhaustion is fatal")
	}
	if !IsFatal(ErrEmptyIntersection) {
		t.Error("empty intersection is fatal")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NewNotFound("x")) {
		t.Error("expected not found")
	}
	if !IsNotFound(NewMetadataUnavailable("x", nil)) {
		t.Error("metadata unavailable counts as not found")
	}
	if IsNotFound(ErrOutOfOrder) {
		t.Error("out of order is not a not-found error")
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.Err() != nil {
		t.Fatal("empty collector should return nil")
	}

	v.AddField("period", "unknown")
	v.AddMissing("driving_series")
	v.Add(nil)

	if len(v.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(v.Errors))
	}

	err := v.Err()
	if !Is(err, ErrMissingField) {
		t.Error("expected ErrMissingField through Unwrap")
	}
	if !IsValidation(err) {
		t.Error("expected validation category")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	err := Wrapf(ErrOutOfOrder, "chunk %d", 3)
	if err.Error() != "chunk 3: rows out of order" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
