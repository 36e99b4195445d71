package validation

import (
	"context"
	"fmt"
	"sort"

	"github.com/geocoder89/coursehub/internal/apperr"
)

const MsgOrderPositive = "Order must be greater than 0"

// OrderChecker reports whether a position is already used by a live sibling.
// excludeID skips the entity being updated; zero excludes nothing.
type OrderChecker interface {
	OrderTaken(ctx context.Context, parentID int64, order int, excludeID int64) (bool, error)
}

// ChapterOrder fails immediately on a non-positive order. A taken order is
// not an error: the conflict message is returned so bulk callers can
// aggregate every conflict before rejecting.
func ChapterOrder(ctx context.Context, checker OrderChecker, courseID int64, order int, excludeID int64) (string, error) {
	if order < 1 {
		return "", apperr.Invalid(MsgOrderPositive)
	}

	taken, err := checker.OrderTaken(ctx, courseID, order, excludeID)
	if err != nil {
		return "", err
	}
	if taken {
		return fmt.Sprintf("Order number %d is already taken in this course", order), nil
	}

	return "", nil
}

// LessonOrderTaken applies the chapter rule inside a chapter: a
// non-positive order fails at once, a taken one comes back as a message.
func LessonOrderTaken(ctx context.Context, checker OrderChecker, chapterID int64, order int, excludeID int64) (string, error) {
	if order < 1 {
		return "", apperr.Invalid("Lesson order must be greater than 0")
	}

	taken, err := checker.OrderTaken(ctx, chapterID, order, excludeID)
	if err != nil {
		return "", err
	}
	if taken {
		return fmt.Sprintf("Lesson order %d is already taken in this chapter", order), nil
	}
	return "", nil
}

// LessonOrder is LessonOrderTaken for a single write.
func LessonOrder(ctx context.Context, checker OrderChecker, chapterID int64, order int, excludeID int64) error {
	msg, err := LessonOrderTaken(ctx, checker, chapterID, order, excludeID)
	if err != nil {
		return err
	}
	if msg != "" {
		return apperr.Invalid("%s", msg)
	}
	return nil
}

// UniqueOrders checks a batch of positions: every one positive, none repeated.
// label prefixes each message, e.g. "chapter" or "lesson".
func UniqueOrders(label string, orders []int) Violations {
	var v Violations

	seen := make(map[int]int, len(orders))
	for _, o := range orders {
		if o < 1 {
			v.Add("%s order must be greater than 0, received: %d", label, o)
			continue
		}
		seen[o]++
	}

	dups := make([]int, 0)
	for o, n := range seen {
		if n > 1 {
			dups = append(dups, o)
		}
	}
	sort.Ints(dups)

	for _, o := range dups {
		v.Add("Duplicate %s order found: %d", label, o)
	}

	return v
}
