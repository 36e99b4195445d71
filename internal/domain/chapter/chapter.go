package chapter

import (
	"errors"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/lesson"
)

var (
	ErrNotFound   = errors.New("chapter not found")
	ErrOrderTaken = errors.New("chapter order already taken")
)

type Chapter struct {
	ID          int64           `json:"id"`
	CourseID    int64           `json:"courseId"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Order       int             `json:"order"`
	Status      course.Status   `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   *time.Time      `json:"deletedAt,omitempty"`
	Lessons     []lesson.Lesson `json:"lessons,omitempty"`
}

type CreateChapterRequest struct {
	CourseID    int64  `json:"courseId" binding:"required,min=1"`
	Title       string `json:"title" binding:"required,min=3,max=200"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	// Order is validated by the service so the message matches the ordering rules.
	Order int `json:"order"`
}

// BulkChapter is one item of a bulk create, with its lessons.
type BulkChapter struct {
	Title       string                   `json:"title" binding:"required,min=3,max=200"`
	Description string                   `json:"description" binding:"omitempty,max=2000"`
	Order       int                      `json:"order"`
	Lessons     []lesson.BulkLessonInput `json:"lessons" binding:"omitempty,dive"`
}

type BulkCreateRequest struct {
	CourseID int64         `json:"courseId" binding:"required,min=1"`
	Chapters []BulkChapter `json:"chapters" binding:"dive"`
}

type UpdateChapterRequest struct {
	Title       *string        `json:"title" binding:"omitempty,min=3,max=200"`
	Description *string        `json:"description" binding:"omitempty,max=2000"`
	Order       *int           `json:"order"`
	Status      *course.Status `json:"status" binding:"omitempty,coursestatus"`
}

type ReorderRequest struct {
	Order int `json:"order"`
}

type BulkIDsRequest struct {
	IDs []int64 `json:"ids"`
}

type ListFilter struct {
	CourseID       int64
	IncludeDeleted bool
	OrderBy        string
	Limit          int
	Offset         int
}

// NewChapter is the persistence input for one chapter and its lessons.
type NewChapter struct {
	CourseID    int64
	Title       string
	Description string
	Order       int
	Lessons     []lesson.NewLesson
}

// Changes is applied by the repository in one transaction. A status change
// to or from ARCHIVED cascades to the chapter's lessons.
type Changes struct {
	Title       *string
	Description *string
	Order       *int
	Status      *course.Status
	// Archive sets deleted_at; Restore clears it.
	Archive bool
	Restore bool
}
