package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/domain/enrollment"
	"github.com/geocoder89/coursehub/internal/domain/lesson"
	"github.com/geocoder89/coursehub/internal/domain/progress"
)

type ProgressStore interface {
	Get(ctx context.Context, userID, lessonID int64) (progress.Progress, error)
	Start(ctx context.Context, k progress.Key) (progress.Progress, error)
	Complete(ctx context.Context, id int64) (progress.Progress, error)
	ListByCourse(ctx context.Context, userID, courseID int64) ([]progress.Progress, error)
}

type LessonReader interface {
	GetByID(ctx context.Context, id int64) (lesson.Lesson, error)
}

type EnrollmentReader interface {
	Get(ctx context.Context, userID, courseID int64) (enrollment.Enrollment, error)
}

// ProgressService tracks which lessons a learner has started and finished.
type ProgressService struct {
	progress    ProgressStore
	lessons     LessonReader
	chapters    ChapterReader
	enrollments EnrollmentReader

	start    func(context.Context, progress.UpdateRequest) (progress.Progress, error)
	complete func(context.Context, progress.UpdateRequest) (progress.Progress, error)
	list     func(context.Context, int64) ([]progress.Progress, error)
}

func NewProgressService(store ProgressStore, lessons LessonReader, chapters ChapterReader, enrollments EnrollmentReader) *ProgressService {
	s := &ProgressService{progress: store, lessons: lessons, chapters: chapters, enrollments: enrollments}

	s.start = authz.Guard(members, s.doStart)
	s.complete = authz.Guard(members, s.doComplete)
	s.list = authz.Guard(members, s.doList)

	return s
}

func mapProgressErr(err error) error {
	switch {
	case errors.Is(err, progress.ErrNotFound):
		return apperr.NotFound("Lesson progress not found")
	case errors.Is(err, progress.ErrAlreadyStarted):
		return apperr.Invalid("Lesson is already started")
	}
	return err
}

// learner resolves whose progress is touched. Only administrators act for others.
func learner(ctx context.Context, requested int64, verb string) (int64, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return 0, err
	}
	if requested == 0 || requested == caller.UserID {
		return caller.UserID, nil
	}
	if !caller.IsAdmin() {
		return 0, apperr.Forbidden("You don't have permission to %s this lesson", verb)
	}
	return requested, nil
}

// locate finds a live lesson and checks the learner is actively enrolled in its course.
func (s *ProgressService) locate(ctx context.Context, userID, lessonID int64) (progress.Key, error) {
	l, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return progress.Key{}, mapLessonErr(err)
	}
	if l.DeletedAt != nil {
		return progress.Key{}, apperr.NotFound("Lesson not found")
	}

	ch, err := s.chapters.GetByID(ctx, l.ChapterID)
	if err != nil {
		return progress.Key{}, mapChapterErr(err)
	}
	if ch.DeletedAt != nil {
		return progress.Key{}, apperr.NotFound("Lesson not found")
	}

	e, err := s.enrollments.Get(ctx, userID, ch.CourseID)
	if err != nil {
		if errors.Is(err, enrollment.ErrNotFound) {
			return progress.Key{}, apperr.Invalid("User is not enrolled in this course")
		}
		return progress.Key{}, err
	}
	if e.Status == enrollment.StatusDropped {
		return progress.Key{}, apperr.Invalid("Course is dropped; resume it to continue")
	}

	return progress.Key{UserID: userID, CourseID: ch.CourseID, ChapterID: ch.ID, LessonID: l.ID}, nil
}

func (s *ProgressService) Start(ctx context.Context, req progress.UpdateRequest) (progress.Progress, error) {
	return s.start(ctx, req)
}

func (s *ProgressService) doStart(ctx context.Context, req progress.UpdateRequest) (progress.Progress, error) {
	userID, err := learner(ctx, req.UserID, "start")
	if err != nil {
		return progress.Progress{}, err
	}
	key, err := s.locate(ctx, userID, req.LessonID)
	if err != nil {
		return progress.Progress{}, err
	}

	existing, err := s.progress.Get(ctx, userID, req.LessonID)
	switch {
	case err == nil:
		if existing.Status == progress.StatusCompleted {
			return progress.Progress{}, apperr.Invalid("Lesson is already completed")
		}
		return progress.Progress{}, apperr.Invalid("Lesson is already started")
	case !errors.Is(err, progress.ErrNotFound):
		return progress.Progress{}, err
	}

	p, err := s.progress.Start(ctx, key)
	if err != nil {
		return progress.Progress{}, mapProgressErr(err)
	}

	slog.Default().InfoContext(ctx, "lesson started", "user_id", userID, "lesson_id", req.LessonID)
	return p, nil
}

func (s *ProgressService) Complete(ctx context.Context, req progress.UpdateRequest) (progress.Progress, error) {
	return s.complete(ctx, req)
}

func (s *ProgressService) doComplete(ctx context.Context, req progress.UpdateRequest) (progress.Progress, error) {
	userID, err := learner(ctx, req.UserID, "complete")
	if err != nil {
		return progress.Progress{}, err
	}
	if _, err := s.locate(ctx, userID, req.LessonID); err != nil {
		return progress.Progress{}, err
	}

	existing, err := s.progress.Get(ctx, userID, req.LessonID)
	if err != nil {
		if errors.Is(err, progress.ErrNotFound) {
			return progress.Progress{}, apperr.Invalid("You must start the lesson before completing it")
		}
		return progress.Progress{}, err
	}
	switch existing.Status {
	case progress.StatusCompleted:
		return progress.Progress{}, apperr.Invalid("Lesson is already completed")
	case progress.StatusDropped:
		return progress.Progress{}, apperr.Invalid("You must start the lesson before completing it")
	}

	p, err := s.progress.Complete(ctx, existing.ID)
	if err != nil {
		return progress.Progress{}, mapProgressErr(err)
	}

	log := slog.Default()
	log.InfoContext(ctx, "lesson completed", "user_id", userID, "lesson_id", req.LessonID)
	if p.CourseCompleted {
		log.InfoContext(ctx, "course completed", "user_id", userID, "course_id", p.CourseID)
	}
	return p, nil
}

// List returns the caller's progress in a course they are enrolled in.
func (s *ProgressService) List(ctx context.Context, courseID int64) ([]progress.Progress, error) {
	return s.list(ctx, courseID)
}

func (s *ProgressService) doList(ctx context.Context, courseID int64) ([]progress.Progress, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.enrollments.Get(ctx, caller.UserID, courseID); err != nil {
		return nil, mapEnrollmentErr(err)
	}
	return s.progress.ListByCourse(ctx, caller.UserID, courseID)
}
