package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/geocoder89/coursehub/internal/apperr"
)

func TestResponseFor(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "not_found",
			err:         apperr.NotFound("Chapter not found with id: %d", 7),
			wantStatus:  http.StatusNotFound,
			wantMessage: "Chapter not found with id: 7",
		},
		{
			name:        "wrapped_forbidden",
			err:         fmt.Errorf("update course: %w", apperr.Forbidden("You don't have permission to modify this course")),
			wantStatus:  http.StatusForbidden,
			wantMessage: "You don't have permission to modify this course",
		},
		{
			name:        "conflict",
			err:         apperr.Conflict("Email already exists"),
			wantStatus:  http.StatusConflict,
			wantMessage: "Email already exists",
		},
		{
			name:        "unclassified_error_is_hidden",
			err:         errors.New("pq: relation \"users\" does not exist"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: apperr.InternalMessage,
		},
		{
			name:        "explicit_internal_is_hidden",
			err:         apperr.Wrap(apperr.KindInternal, errors.New("boom"), "load user"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: apperr.InternalMessage,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp := apperr.ResponseFor(tt.err)

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status: got %d want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.Message != tt.wantMessage {
				t.Fatalf("message: got %q want %q", resp.Message, tt.wantMessage)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := apperr.Wrap(apperr.KindConflict, cause, "Email already in use")

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict kind, got %v", apperr.KindOf(err))
	}
	if got := apperr.ResponseFor(err).StatusCode; got != http.StatusConflict {
		t.Fatalf("got status %d want 409", got)
	}
}

func TestDetailsAreExposed(t *testing.T) {
	err := apperr.Invalid("Validation failed").WithDetails([]string{"title: is required"})

	resp := apperr.ResponseFor(err)
	if len(resp.Errors) != 1 || resp.Errors[0] != "title: is required" {
		t.Fatalf("unexpected errors: %v", resp.Errors)
	}
}
