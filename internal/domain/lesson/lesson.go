package lesson

import (
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/course"
)

type Type string

const (
	TypeText  Type = "TEXT"
	TypeVideo Type = "VIDEO"
)

var (
	ErrNotFound   = errors.New("lesson not found")
	ErrOrderTaken = errors.New("lesson order already taken")
)

type Lesson struct {
	ID        int64         `json:"id"`
	ChapterID int64         `json:"chapterId"`
	Title     string        `json:"title"`
	Content   string        `json:"content,omitempty"`
	Order     int           `json:"order"`
	Type      Type          `json:"type"`
	Status    course.Status `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	DeletedAt *time.Time    `json:"deletedAt,omitempty"`
}

type CreateLessonRequest struct {
	ChapterID int64  `json:"chapterId" binding:"required,min=1"`
	Title     string `json:"title" binding:"required,min=3,max=200"`
	Content   string `json:"content" binding:"omitempty,max=100000"`
	Order     int    `json:"order"`
	Type      Type   `json:"type" binding:"required,oneof=TEXT VIDEO"`
}

type BulkLessonInput struct {
	Title   string `json:"title" binding:"required,min=3,max=200"`
	Content string `json:"content" binding:"omitempty,max=100000"`
	Order   int    `json:"order"`
	Type    Type   `json:"type" binding:"required,oneof=TEXT VIDEO"`
}

type UpdateLessonRequest struct {
	Title   *string        `json:"title" binding:"omitempty,min=3,max=200"`
	Content *string        `json:"content" binding:"omitempty,max=100000"`
	Order   *int           `json:"order"`
	Type    *Type          `json:"type" binding:"omitempty,oneof=TEXT VIDEO"`
	Status  *course.Status `json:"status" binding:"omitempty,coursestatus"`
}

type BulkCreateRequest struct {
	ChapterID int64             `json:"chapterId" binding:"required,min=1"`
	Lessons   []BulkLessonInput `json:"lessons" binding:"dive"`
}

// BulkUpdateItem is one entry of a bulk update: the lesson id plus the same
// optional fields as a single update.
type BulkUpdateItem struct {
	ID int64 `json:"id" binding:"required,min=1"`
	UpdateLessonRequest
}

type BulkUpdateRequest struct {
	Lessons []BulkUpdateItem `json:"lessons" binding:"dive"`
}

type BulkIDsRequest struct {
	IDs []int64 `json:"ids"`
}

// SearchFilter narrows a lesson search. Nil fields are not applied.
type SearchFilter struct {
	ChapterID *int64
	CourseID  *int64
	Title     string
	Type      *Type
	Status    *course.Status
	OrderBy   string
	Limit     int
	Offset    int
}

type NewLesson struct {
	ChapterID int64
	Title     string
	Content   string
	Order     int
	Type      Type
}

type Changes struct {
	Title   *string
	Content *string
	Order   *int
	Type    *Type
	Status  *course.Status
}

// Update pairs a lesson with its changes for a bulk write.
type Update struct {
	ID      int64
	Changes Changes
}

func ParseType(raw string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case TypeText, TypeVideo:
		return t, true
	}
	return "", false
}
