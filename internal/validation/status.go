package validation

import (
	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/domain/course"
)

var transitions = map[course.Status][]course.Status{
	course.StatusDraft:     {course.StatusPublished, course.StatusArchived},
	course.StatusPublished: {course.StatusDraft, course.StatusArchived},
	course.StatusArchived:  {course.StatusDraft},
}

// AllowedTransitions lists the statuses reachable from current. A status is
// never reachable from itself.
func AllowedTransitions(current course.Status) []course.Status {
	return transitions[current]
}

// StatusTransition validates a lifecycle change. An empty current status
// means the entity is being created, in which case only DRAFT is accepted.
func StatusTransition(current, next course.Status) error {
	if next == "" {
		return apperr.Invalid("Status cannot be null")
	}
	if _, ok := transitions[next]; !ok {
		return apperr.Invalid("Invalid status: %s", next)
	}

	if current == "" {
		if next != course.StatusDraft {
			return apperr.Invalid("New entities must be created with status DRAFT, received: %s", next)
		}
		return nil
	}

	if _, ok := transitions[current]; !ok {
		return apperr.Invalid("Invalid status: %s", current)
	}

	allowed := AllowedTransitions(current)

	for _, s := range allowed {
		if s == next {
			return nil
		}
	}

	return apperr.Invalid("Invalid status transition from %s to %s. Allowed transitions: %s",
		current, next, joinStatuses(allowed))
}

func joinStatuses(list []course.Status) string {
	out := ""
	for i, s := range list {
		if i > 0 {
			out += ", "
		}
		out += string(s)
	}
	return out
}
