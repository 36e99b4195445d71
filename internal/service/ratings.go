package service

import (
	"context"
	"errors"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/rating"
	"github.com/geocoder89/coursehub/internal/validation"
)

type RatingStore interface {
	Create(ctx context.Context, userID int64, req rating.CreateRatingRequest) (rating.Rating, error)
	GetByID(ctx context.Context, id int64) (rating.Rating, error)
	Update(ctx context.Context, id int64, req rating.UpdateRatingRequest) (rating.Rating, error)
	SoftDelete(ctx context.Context, id int64) error
	ListByCourse(ctx context.Context, filter rating.ListFilter) ([]rating.Rating, int, error)
	Counts(ctx context.Context, courseID int64) (map[int]int, error)
}

type RatingUpdate struct {
	ID  int64
	Req rating.UpdateRatingRequest
}

type RatingListQuery struct {
	ListQuery
	CourseID int64
}

var ratingSortColumns = map[string]string{
	"rating":     "cr.rating",
	"created_at": "cr.created_at",
}

type RatingService struct {
	ratings RatingStore
	courses CourseReader

	rate   func(context.Context, rating.CreateRatingRequest) (rating.Rating, error)
	update func(context.Context, RatingUpdate) (rating.Rating, error)
	remove func(context.Context, int64) error
}

func NewRatingService(ratings RatingStore, courses CourseReader) *RatingService {
	s := &RatingService{ratings: ratings, courses: courses}

	s.rate = authz.Guard(members, s.doRate)
	s.update = authz.Guard(members, s.doUpdate)
	s.remove = authz.GuardErr(members, s.doDelete)

	return s
}

func mapRatingErr(err error) error {
	switch {
	case errors.Is(err, rating.ErrNotFound):
		return apperr.NotFound("Course rating not found")
	case errors.Is(err, rating.ErrAlreadyRated):
		return apperr.Conflict("User already rated this course")
	}
	return err
}

func (s *RatingService) liveCourse(ctx context.Context, id int64) (course.Course, error) {
	c, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return course.Course{}, mapCourseErr(err)
	}
	if c.DeletedAt != nil {
		return course.Course{}, apperr.NotFound("Course not found")
	}
	return c, nil
}

func (s *RatingService) Rate(ctx context.Context, req rating.CreateRatingRequest) (rating.Rating, error) {
	return s.rate(ctx, req)
}

func (s *RatingService) doRate(ctx context.Context, req rating.CreateRatingRequest) (rating.Rating, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return rating.Rating{}, err
	}
	if _, err := s.liveCourse(ctx, req.CourseID); err != nil {
		return rating.Rating{}, err
	}

	rt, err := s.ratings.Create(ctx, caller.UserID, req)
	return rt, mapRatingErr(err)
}

// owned loads a rating and checks it belongs to the caller.
func (s *RatingService) owned(ctx context.Context, id int64) (rating.Rating, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return rating.Rating{}, err
	}

	rt, err := s.ratings.GetByID(ctx, id)
	if err != nil {
		return rating.Rating{}, mapRatingErr(err)
	}
	if rt.UserID != caller.UserID {
		return rating.Rating{}, apperr.Forbidden("User is not the owner of this rating")
	}
	return rt, nil
}

func (s *RatingService) Update(ctx context.Context, u RatingUpdate) (rating.Rating, error) {
	return s.update(ctx, u)
}

func (s *RatingService) doUpdate(ctx context.Context, u RatingUpdate) (rating.Rating, error) {
	if _, err := s.owned(ctx, u.ID); err != nil {
		return rating.Rating{}, err
	}
	rt, err := s.ratings.Update(ctx, u.ID, u.Req)
	return rt, mapRatingErr(err)
}

func (s *RatingService) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id)
}

func (s *RatingService) doDelete(ctx context.Context, id int64) error {
	if _, err := s.owned(ctx, id); err != nil {
		return err
	}
	return mapRatingErr(s.ratings.SoftDelete(ctx, id))
}

func (s *RatingService) ListByCourse(ctx context.Context, q RatingListQuery) (Page[rating.Rating], error) {
	p, orderBy, err := q.resolve(validation.RatingSortFields, ratingSortColumns, "cr.created_at DESC", "cr.id DESC")
	if err != nil {
		return Page[rating.Rating]{}, err
	}
	if _, err := s.liveCourse(ctx, q.CourseID); err != nil {
		return Page[rating.Rating]{}, err
	}

	items, total, err := s.ratings.ListByCourse(ctx, rating.ListFilter{
		CourseID: q.CourseID,
		OrderBy:  orderBy,
		Limit:    p.Limit,
		Offset:   p.Offset(),
	})
	if err != nil {
		return Page[rating.Rating]{}, err
	}
	return newPage(items, p, total), nil
}

func (s *RatingService) Distribution(ctx context.Context, courseID int64) (rating.Distribution, error) {
	if _, err := s.liveCourse(ctx, courseID); err != nil {
		return rating.Distribution{}, err
	}

	counts, err := s.ratings.Counts(ctx, courseID)
	if err != nil {
		return rating.Distribution{}, err
	}
	return rating.NewDistribution(courseID, counts), nil
}
