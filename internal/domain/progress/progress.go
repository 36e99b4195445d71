package progress

import (
	"errors"
	"time"
)

type Status string

// A lesson without a row has not been started.
const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusDropped    Status = "DROPPED"
)

var (
	ErrNotFound       = errors.New("lesson progress not found")
	ErrAlreadyStarted = errors.New("lesson already started")
)

type Progress struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"userId"`
	CourseID       int64      `json:"courseId"`
	ChapterID      int64      `json:"chapterId"`
	LessonID       int64      `json:"lessonId"`
	Status         Status     `json:"status"`
	LastAccessedAt time.Time  `json:"lastAccessedAt"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
	// CourseCompleted is set when this completion finished the course.
	CourseCompleted bool `json:"courseCompleted,omitempty"`
}

// UpdateRequest starts or completes a lesson. UserID lets an administrator
// act for another learner; zero means the caller.
type UpdateRequest struct {
	LessonID int64 `json:"lessonId" binding:"required,min=1"`
	UserID   int64 `json:"userId" binding:"omitempty,min=1"`
}

// Key locates the lesson a learner works on.
type Key struct {
	UserID    int64
	CourseID  int64
	ChapterID int64
	LessonID  int64
}
