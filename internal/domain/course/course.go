package course

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle shared by courses, chapters and lessons.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return s, true
	}
	return "", false
}

var (
	ErrNotFound        = errors.New("course not found")
	ErrCategoryMissing = errors.New("category not found")
)

type Course struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	InstructorID       int64      `json:"instructorId"`
	InstructorUsername string     `json:"instructorUsername,omitempty"`
	Status             Status     `json:"status"`
	CategoryIDs        []int64    `json:"categoryIds"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	DeletedAt          *time.Time `json:"deletedAt,omitempty"`
}

func (c Course) Archived() bool {
	return c.Status == StatusArchived || c.DeletedAt != nil
}

type CreateCourseRequest struct {
	Title        string  `json:"title" binding:"required,min=3,max=200"`
	Description  string  `json:"description" binding:"omitempty,max=5000"`
	InstructorID *int64  `json:"instructorId" binding:"omitempty,min=1"`
	CategoryIDs  []int64 `json:"categoryIds" binding:"required,min=1,max=10,dive,min=1"`
}

// Nil fields are left untouched.
type UpdateCourseRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=3,max=200"`
	Description *string `json:"description" binding:"omitempty,max=5000"`
	Status      *Status `json:"status" binding:"omitempty,coursestatus"`
	CategoryIDs []int64 `json:"categoryIds" binding:"omitempty,max=10,dive,min=1"`
}

type SearchFilter struct {
	Title        *string
	Status       *Status
	InstructorID *int64
	CategoryID   *int64
	OrderBy      string
	Limit        int
	Offset       int
}
