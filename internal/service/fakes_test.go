package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/domain/chapter"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/lesson"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/identity"
)

func as(t *testing.T, userID int64, roles ...user.Role) context.Context {
	t.Helper()

	ctx, err := identity.With(context.Background(), identity.Identity{
		UserID:   userID,
		Username: "user",
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("identity.With: %v", err)
	}
	return ctx
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func wantMessage(t *testing.T, err error, msg string) {
	t.Helper()

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apperr.Error, got %T (%v)", err, err)
	}
	if ae.Message != msg {
		t.Fatalf("expected message %q, got %q", msg, ae.Message)
	}
}

type fakeCourses struct {
	getFn          func(ctx context.Context, id int64) (course.Course, error)
	createFn       func(ctx context.Context, c course.Course) (course.Course, error)
	updateFn       func(ctx context.Context, c course.Course) (course.Course, error)
	searchFn       func(ctx context.Context, filter course.SearchFilter) ([]course.Course, int, error)
	latestFn       func(ctx context.Context, limit int) ([]course.Course, error)
	countLessonsFn func(ctx context.Context, courseID int64) (int, error)
}

func (f *fakeCourses) GetByID(ctx context.Context, id int64) (course.Course, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return course.Course{ID: id, InstructorID: 7, Status: course.StatusPublished}, nil
}

func (f *fakeCourses) Create(ctx context.Context, c course.Course) (course.Course, error) {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	c.ID = 1
	return c, nil
}

func (f *fakeCourses) Update(ctx context.Context, c course.Course) (course.Course, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, c)
	}
	return c, nil
}

func (f *fakeCourses) Search(ctx context.Context, filter course.SearchFilter) ([]course.Course, int, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, filter)
	}
	return nil, 0, nil
}

func (f *fakeCourses) Latest(ctx context.Context, limit int) ([]course.Course, error) {
	if f.latestFn != nil {
		return f.latestFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeCourses) CountLessons(ctx context.Context, courseID int64) (int, error) {
	if f.countLessonsFn != nil {
		return f.countLessonsFn(ctx, courseID)
	}
	return 1, nil
}

type fakeChapters struct {
	orderTakenFn func(ctx context.Context, courseID int64, order int, excludeID int64) (bool, error)
	createFn     func(ctx context.Context, nc chapter.NewChapter) (chapter.Chapter, error)
	bulkCreateFn func(ctx context.Context, items []chapter.NewChapter) ([]chapter.Chapter, error)
	getFn        func(ctx context.Context, id int64) (chapter.Chapter, error)
	getManyFn    func(ctx context.Context, ids []int64) ([]chapter.Chapter, error)
	listFn       func(ctx context.Context, filter chapter.ListFilter) ([]chapter.Chapter, int, error)
	updateFn     func(ctx context.Context, id int64, changes chapter.Changes) (chapter.Chapter, error)
	setDeletedFn func(ctx context.Context, ids []int64, deleted bool) ([]chapter.Chapter, error)
	lessonsFn    func(ctx context.Context, chapterID int64) ([]lesson.Lesson, error)
	renumberFn   func(ctx context.Context, courseID int64) ([]chapter.Chapter, error)
}

func (f *fakeChapters) OrderTaken(ctx context.Context, courseID int64, order int, excludeID int64) (bool, error) {
	if f.orderTakenFn != nil {
		return f.orderTakenFn(ctx, courseID, order, excludeID)
	}
	return false, nil
}

func (f *fakeChapters) Create(ctx context.Context, nc chapter.NewChapter) (chapter.Chapter, error) {
	if f.createFn != nil {
		return f.createFn(ctx, nc)
	}
	return chapter.Chapter{ID: 1, CourseID: nc.CourseID, Title: nc.Title, Order: nc.Order, Status: course.StatusDraft}, nil
}

func (f *fakeChapters) BulkCreate(ctx context.Context, items []chapter.NewChapter) ([]chapter.Chapter, error) {
	if f.bulkCreateFn != nil {
		return f.bulkCreateFn(ctx, items)
	}
	out := make([]chapter.Chapter, 0, len(items))
	for i, nc := range items {
		out = append(out, chapter.Chapter{ID: int64(i + 1), CourseID: nc.CourseID, Order: nc.Order})
	}
	return out, nil
}

func (f *fakeChapters) GetByID(ctx context.Context, id int64) (chapter.Chapter, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return chapter.Chapter{}, chapter.ErrNotFound
}

func (f *fakeChapters) GetMany(ctx context.Context, ids []int64) ([]chapter.Chapter, error) {
	if f.getManyFn != nil {
		return f.getManyFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeChapters) ListByCourse(ctx context.Context, filter chapter.ListFilter) ([]chapter.Chapter, int, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (f *fakeChapters) Update(ctx context.Context, id int64, changes chapter.Changes) (chapter.Chapter, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, changes)
	}
	return chapter.Chapter{ID: id}, nil
}

func (f *fakeChapters) SetDeleted(ctx context.Context, ids []int64, deleted bool) ([]chapter.Chapter, error) {
	if f.setDeletedFn != nil {
		return f.setDeletedFn(ctx, ids, deleted)
	}
	out := make([]chapter.Chapter, 0, len(ids))
	for _, id := range ids {
		c := chapter.Chapter{ID: id}
		if deleted {
			now := time.Now()
			c.DeletedAt = &now
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeChapters) Lessons(ctx context.Context, chapterID int64) ([]lesson.Lesson, error) {
	if f.lessonsFn != nil {
		return f.lessonsFn(ctx, chapterID)
	}
	return nil, nil
}

func (f *fakeChapters) Renumber(ctx context.Context, courseID int64) ([]chapter.Chapter, error) {
	if f.renumberFn != nil {
		return f.renumberFn(ctx, courseID)
	}
	return nil, nil
}

type fakeLessons struct {
	orderTakenFn func(ctx context.Context, chapterID int64, order int, excludeID int64) (bool, error)
	createFn     func(ctx context.Context, nl lesson.NewLesson) (lesson.Lesson, error)
	bulkCreateFn func(ctx context.Context, items []lesson.NewLesson) ([]lesson.Lesson, error)
	getFn        func(ctx context.Context, id int64) (lesson.Lesson, error)
	getManyFn    func(ctx context.Context, ids []int64) ([]lesson.Lesson, error)
	listFn       func(ctx context.Context, chapterID int64) ([]lesson.Lesson, error)
	searchFn     func(ctx context.Context, filter lesson.SearchFilter) ([]lesson.Lesson, int, error)
	updateFn     func(ctx context.Context, id int64, changes lesson.Changes) (lesson.Lesson, error)
	bulkUpdateFn func(ctx context.Context, updates []lesson.Update) ([]lesson.Lesson, error)
	softDeleteFn func(ctx context.Context, id int64) error
	setDeletedFn func(ctx context.Context, ids []int64, deleted bool) ([]lesson.Lesson, error)
	renumberFn   func(ctx context.Context, chapterID int64) ([]lesson.Lesson, error)
}

func (f *fakeLessons) OrderTaken(ctx context.Context, chapterID int64, order int, excludeID int64) (bool, error) {
	if f.orderTakenFn != nil {
		return f.orderTakenFn(ctx, chapterID, order, excludeID)
	}
	return false, nil
}

func (f *fakeLessons) Create(ctx context.Context, nl lesson.NewLesson) (lesson.Lesson, error) {
	if f.createFn != nil {
		return f.createFn(ctx, nl)
	}
	return lesson.Lesson{ID: 1, ChapterID: nl.ChapterID, Title: nl.Title, Order: nl.Order, Type: nl.Type, Status: course.StatusDraft}, nil
}

func (f *fakeLessons) BulkCreate(ctx context.Context, items []lesson.NewLesson) ([]lesson.Lesson, error) {
	if f.bulkCreateFn != nil {
		return f.bulkCreateFn(ctx, items)
	}
	out := make([]lesson.Lesson, 0, len(items))
	for i, nl := range items {
		out = append(out, lesson.Lesson{ID: int64(i + 1), ChapterID: nl.ChapterID, Order: nl.Order})
	}
	return out, nil
}

func (f *fakeLessons) GetByID(ctx context.Context, id int64) (lesson.Lesson, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return lesson.Lesson{}, lesson.ErrNotFound
}

func (f *fakeLessons) GetMany(ctx context.Context, ids []int64) ([]lesson.Lesson, error) {
	if f.getManyFn != nil {
		return f.getManyFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeLessons) ListByChapter(ctx context.Context, chapterID int64) ([]lesson.Lesson, error) {
	if f.listFn != nil {
		return f.listFn(ctx, chapterID)
	}
	return nil, nil
}

func (f *fakeLessons) Search(ctx context.Context, filter lesson.SearchFilter) ([]lesson.Lesson, int, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, filter)
	}
	return nil, 0, nil
}

func (f *fakeLessons) Update(ctx context.Context, id int64, changes lesson.Changes) (lesson.Lesson, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, changes)
	}
	return lesson.Lesson{ID: id}, nil
}

func (f *fakeLessons) BulkUpdate(ctx context.Context, updates []lesson.Update) ([]lesson.Lesson, error) {
	if f.bulkUpdateFn != nil {
		return f.bulkUpdateFn(ctx, updates)
	}
	out := make([]lesson.Lesson, 0, len(updates))
	for _, u := range updates {
		out = append(out, lesson.Lesson{ID: u.ID})
	}
	return out, nil
}

func (f *fakeLessons) SoftDelete(ctx context.Context, id int64) error {
	if f.softDeleteFn != nil {
		return f.softDeleteFn(ctx, id)
	}
	return nil
}

func (f *fakeLessons) SetDeleted(ctx context.Context, ids []int64, deleted bool) ([]lesson.Lesson, error) {
	if f.setDeletedFn != nil {
		return f.setDeletedFn(ctx, ids, deleted)
	}
	out := make([]lesson.Lesson, 0, len(ids))
	for _, id := range ids {
		l := lesson.Lesson{ID: id}
		if deleted {
			now := time.Now()
			l.DeletedAt = &now
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeLessons) Renumber(ctx context.Context, chapterID int64) ([]lesson.Lesson, error) {
	if f.renumberFn != nil {
		return f.renumberFn(ctx, chapterID)
	}
	return nil, nil
}
