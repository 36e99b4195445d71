package validation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/validation"
)

type fakeOrderChecker struct {
	takenFn func(ctx context.Context, parentID int64, order int, excludeID int64) (bool, error)
	calls   int
}

func (f *fakeOrderChecker) OrderTaken(ctx context.Context, parentID int64, order int, excludeID int64) (bool, error) {
	f.calls++
	if f.takenFn != nil {
		return f.takenFn(ctx, parentID, order, excludeID)
	}
	return false, nil
}

func TestChapterOrder(t *testing.T) {
	dbErr := errors.New("db down")

	tests := []struct {
		name      string
		order     int
		setup     func(*fakeOrderChecker)
		wantMsg   string
		wantKind  apperr.Kind
		wantErr   error
		wantCalls int
	}{
		{name: "free", order: 3, wantCalls: 1},
		{
			name:  "taken_returns_message",
			order: 2,
			setup: func(f *fakeOrderChecker) {
				f.takenFn = func(ctx context.Context, parentID int64, order int, excludeID int64) (bool, error) {
					return true, nil
				}
			},
			wantMsg:   "Order number 2 is already taken in this course",
			wantCalls: 1,
		},
		{name: "zero_fails_without_lookup", order: 0, wantKind: apperr.KindInvalid},
		{name: "negative_fails_without_lookup", order: -4, wantKind: apperr.KindInvalid},
		{
			name:  "lookup_error",
			order: 1,
			setup: func(f *fakeOrderChecker) {
				f.takenFn = func(ctx context.Context, parentID int64, order int, excludeID int64) (bool, error) {
					return false, dbErr
				}
			},
			wantErr:   dbErr,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			checker := &fakeOrderChecker{}
			if tt.setup != nil {
				tt.setup(checker)
			}

			msg, err := validation.ChapterOrder(context.Background(), checker, 10, tt.order, 0)

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v want %v", err, tt.wantErr)
				}
			case tt.wantKind != apperr.KindInternal:
				if !apperr.Is(err, tt.wantKind) {
					t.Fatalf("got %v want kind %v", err, tt.wantKind)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}

			if msg != tt.wantMsg {
				t.Fatalf("message: got %q want %q", msg, tt.wantMsg)
			}
			if checker.calls != tt.wantCalls {
				t.Fatalf("lookups: got %d want %d", checker.calls, tt.wantCalls)
			}
		})
	}
}

func TestChapterOrderPassesExclusion(t *testing.T) {
	var gotExclude int64
	checker := &fakeOrderChecker{
		takenFn: func(ctx context.Context, parentID int64, order int, excludeID int64) (bool, error) {
			gotExclude = excludeID
			return false, nil
		},
	}

	if _, err := validation.ChapterOrder(context.Background(), checker, 1, 1, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotExclude != 42 {
		t.Fatalf("exclude id not forwarded: %d", gotExclude)
	}
}

func TestUniqueOrders(t *testing.T) {
	v := validation.UniqueOrders("lesson", []int{1, 2, 2, 0, 3, 3})

	if len(v) != 3 {
		t.Fatalf("expected 3 violations, got %v", v)
	}

	err := v.Err()
	if !apperr.Is(err, apperr.KindInvalid) {
		t.Fatalf("got %v want invalid", err)
	}
	for _, want := range []string{"Duplicate lesson order found: 2", "Duplicate lesson order found: 3", "received: 0"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %q", want, err.Error())
		}
	}

	if validation.UniqueOrders("chapter", []int{1, 2, 3}).Err() != nil {
		t.Fatalf("expected no violations for distinct positive orders")
	}
}
