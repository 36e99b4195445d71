package rating

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("rating not found")
	ErrAlreadyRated = errors.New("course already rated by user")
)

type Rating struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Username  string     `json:"username,omitempty"`
	CourseID  int64      `json:"courseId"`
	Rating    int        `json:"rating"`
	Review    string     `json:"review,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type CreateRatingRequest struct {
	CourseID int64  `json:"courseId" binding:"required,min=1"`
	Rating   int    `json:"rating" binding:"required,min=1,max=5"`
	Review   string `json:"review" binding:"omitempty,max=2000"`
}

type UpdateRatingRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Review string `json:"review" binding:"omitempty,max=2000"`
}

type ListFilter struct {
	CourseID int64
	OrderBy  string
	Limit    int
	Offset   int
}

// Distribution holds counts per star value 1..5.
type Distribution struct {
	CourseID    int64           `json:"courseId"`
	Total       int             `json:"total"`
	Average     float64         `json:"average"`
	Counts      map[int]int     `json:"counts"`
	Percentages map[int]float64 `json:"percentages"`
}

// NewDistribution fills the derived fields from raw counts.
func NewDistribution(courseID int64, counts map[int]int) Distribution {
	d := Distribution{
		CourseID:    courseID,
		Counts:      make(map[int]int, 5),
		Percentages: make(map[int]float64, 5),
	}

	sum := 0
	for star := 1; star <= 5; star++ {
		n := counts[star]
		d.Counts[star] = n
		d.Total += n
		sum += star * n
	}

	if d.Total == 0 {
		for star := 1; star <= 5; star++ {
			d.Percentages[star] = 0
		}
		return d
	}

	d.Average = float64(sum) / float64(d.Total)
	for star := 1; star <= 5; star++ {
		d.Percentages[star] = float64(d.Counts[star]) * 100 / float64(d.Total)
	}

	return d
}
