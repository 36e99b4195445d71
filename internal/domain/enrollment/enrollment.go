package enrollment

import (
	"errors"
	"strings"
	"time"
)

type Status string

const (
	StatusEnrolled   Status = "ENROLLED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusDropped    Status = "DROPPED"
)

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusEnrolled, StatusInProgress, StatusCompleted, StatusDropped:
		return s, true
	}
	return "", false
}

var (
	ErrNotFound        = errors.New("enrollment not found")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
)

type Enrollment struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"userId"`
	CourseID       int64      `json:"courseId"`
	CourseTitle    string     `json:"courseTitle,omitempty"`
	Status         Status     `json:"status"`
	EnrollmentDate time.Time  `json:"enrollmentDate"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
}

type EnrollRequest struct {
	CourseID int64 `json:"courseId" binding:"required,min=1"`
}

type ListFilter struct {
	UserID  int64
	Status  *Status
	OrderBy string
	Limit   int
	Offset  int
}
