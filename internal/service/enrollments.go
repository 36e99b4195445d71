package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/enrollment"
	"github.com/geocoder89/coursehub/internal/validation"
)

type EnrollmentStore interface {
	Create(ctx context.Context, userID, courseID int64) (enrollment.Enrollment, error)
	Get(ctx context.Context, userID, courseID int64) (enrollment.Enrollment, error)
	List(ctx context.Context, filter enrollment.ListFilter) ([]enrollment.Enrollment, int, error)
	UpdateStatus(ctx context.Context, id int64, status enrollment.Status, completedAt *time.Time) error
}

type EnrollableCourses interface {
	GetByID(ctx context.Context, id int64) (course.Course, error)
	CountLessons(ctx context.Context, courseID int64) (int, error)
}

type EnrollmentListQuery struct {
	ListQuery
	Status string
}

var enrollmentSortColumns = map[string]string{
	"enrollment_date": "e.enrollment_date",
	"status":          "e.status",
}

type EnrollmentService struct {
	enrollments EnrollmentStore
	courses     EnrollableCourses

	enroll func(context.Context, int64) (enrollment.Enrollment, error)
	get    func(context.Context, int64) (enrollment.Enrollment, error)
	list   func(context.Context, EnrollmentListQuery) (Page[enrollment.Enrollment], error)
	drop   func(context.Context, int64) (enrollment.Enrollment, error)
	resume func(context.Context, int64) (enrollment.Enrollment, error)
}

func NewEnrollmentService(enrollments EnrollmentStore, courses EnrollableCourses) *EnrollmentService {
	s := &EnrollmentService{enrollments: enrollments, courses: courses}

	s.enroll = authz.Guard(members, s.doEnroll)
	s.get = authz.Guard(members, s.doGet)
	s.list = authz.Guard(members, s.doList)
	s.drop = authz.Guard(members, s.doDrop)
	s.resume = authz.Guard(members, s.doResume)

	return s
}

func mapEnrollmentErr(err error) error {
	switch {
	case errors.Is(err, enrollment.ErrNotFound):
		return apperr.NotFound("Enrollment not found")
	case errors.Is(err, enrollment.ErrAlreadyEnrolled):
		return apperr.Conflict("User is already enrolled in this course")
	}
	return err
}

func (s *EnrollmentService) Enroll(ctx context.Context, courseID int64) (enrollment.Enrollment, error) {
	return s.enroll(ctx, courseID)
}

func (s *EnrollmentService) doEnroll(ctx context.Context, courseID int64) (enrollment.Enrollment, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return enrollment.Enrollment{}, err
	}

	c, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return enrollment.Enrollment{}, apperr.NotFound("Course not found or is not available")
		}
		return enrollment.Enrollment{}, err
	}
	if c.Archived() {
		return enrollment.Enrollment{}, apperr.NotFound("Course not found or is not available")
	}
	if c.Status == course.StatusDraft {
		return enrollment.Enrollment{}, apperr.Invalid("Could not enroll in a draft course")
	}

	lessons, err := s.courses.CountLessons(ctx, courseID)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	if lessons == 0 {
		return enrollment.Enrollment{}, apperr.Invalid("Course has no lessons")
	}

	e, err := s.enrollments.Create(ctx, caller.UserID, courseID)
	if err != nil {
		return enrollment.Enrollment{}, mapEnrollmentErr(err)
	}

	slog.Default().InfoContext(ctx, "user enrolled", "user_id", caller.UserID, "course_id", courseID)
	return e, nil
}

func (s *EnrollmentService) Get(ctx context.Context, courseID int64) (enrollment.Enrollment, error) {
	return s.get(ctx, courseID)
}

func (s *EnrollmentService) doGet(ctx context.Context, courseID int64) (enrollment.Enrollment, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	e, err := s.enrollments.Get(ctx, caller.UserID, courseID)
	return e, mapEnrollmentErr(err)
}

func (s *EnrollmentService) List(ctx context.Context, q EnrollmentListQuery) (Page[enrollment.Enrollment], error) {
	return s.list(ctx, q)
}

func (s *EnrollmentService) doList(ctx context.Context, q EnrollmentListQuery) (Page[enrollment.Enrollment], error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return Page[enrollment.Enrollment]{}, err
	}

	p, orderBy, err := q.resolve(validation.EnrollmentSortFields, enrollmentSortColumns, "e.enrollment_date DESC", "e.id DESC")
	if err != nil {
		return Page[enrollment.Enrollment]{}, err
	}

	filter := enrollment.ListFilter{
		UserID:  caller.UserID,
		OrderBy: orderBy,
		Limit:   p.Limit,
		Offset:  p.Offset(),
	}
	if q.Status != "" {
		st, ok := enrollment.ParseStatus(q.Status)
		if !ok {
			return Page[enrollment.Enrollment]{}, apperr.Invalid("Invalid enrollment status: %s", q.Status)
		}
		filter.Status = &st
	}

	items, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return Page[enrollment.Enrollment]{}, err
	}
	return newPage(items, p, total), nil
}

func (s *EnrollmentService) Drop(ctx context.Context, courseID int64) (enrollment.Enrollment, error) {
	return s.drop(ctx, courseID)
}

func (s *EnrollmentService) doDrop(ctx context.Context, courseID int64) (enrollment.Enrollment, error) {
	e, err := s.doGet(ctx, courseID)
	if err != nil {
		return enrollment.Enrollment{}, err
	}

	switch e.Status {
	case enrollment.StatusCompleted:
		return enrollment.Enrollment{}, apperr.Invalid("Cannot drop completed course")
	case enrollment.StatusDropped:
		return enrollment.Enrollment{}, apperr.Invalid("Course is already dropped")
	}

	return s.setStatus(ctx, e, enrollment.StatusDropped)
}

func (s *EnrollmentService) Resume(ctx context.Context, courseID int64) (enrollment.Enrollment, error) {
	return s.resume(ctx, courseID)
}

func (s *EnrollmentService) doResume(ctx context.Context, courseID int64) (enrollment.Enrollment, error) {
	e, err := s.doGet(ctx, courseID)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	if e.Status != enrollment.StatusDropped {
		return enrollment.Enrollment{}, apperr.Invalid("Cannot resume course")
	}

	return s.setStatus(ctx, e, enrollment.StatusInProgress)
}

func (s *EnrollmentService) setStatus(ctx context.Context, e enrollment.Enrollment, status enrollment.Status) (enrollment.Enrollment, error) {
	if err := s.enrollments.UpdateStatus(ctx, e.ID, status, e.CompletionDate); err != nil {
		return enrollment.Enrollment{}, mapEnrollmentErr(err)
	}
	e.Status = status
	return e, nil
}
