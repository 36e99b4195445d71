package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/domain/chapter"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/lesson"
	"github.com/geocoder89/coursehub/internal/domain/user"
)

const ownerID = 7

func deletedAt() *time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &t
}

func TestChapterCreate_AccessRules(t *testing.T) {
	tests := []struct {
		name     string
		ctx      func(t *testing.T) context.Context
		course   course.Course
		wantKind apperr.Kind
	}{
		{
			name:     "anonymous",
			ctx:      func(*testing.T) context.Context { return context.Background() },
			course:   course.Course{ID: 1, InstructorID: ownerID, Status: course.StatusDraft},
			wantKind: apperr.KindUnauthorized,
		},
		{
			name:     "plain user",
			ctx:      func(t *testing.T) context.Context { return as(t, 3, user.RoleUser) },
			course:   course.Course{ID: 1, InstructorID: ownerID, Status: course.StatusDraft},
			wantKind: apperr.KindForbidden,
		},
		{
			name:     "instructor of another course",
			ctx:      func(t *testing.T) context.Context { return as(t, 99, user.RoleInstructor) },
			course:   course.Course{ID: 1, InstructorID: ownerID, Status: course.StatusDraft},
			wantKind: apperr.KindForbidden,
		},
		{
			name:     "archived course",
			ctx:      func(t *testing.T) context.Context { return as(t, 1, user.RoleAdmin) },
			course:   course.Course{ID: 1, InstructorID: ownerID, Status: course.StatusArchived, DeletedAt: deletedAt()},
			wantKind: apperr.KindForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses := &fakeCourses{getFn: func(context.Context, int64) (course.Course, error) { return tt.course, nil }}
			chapters := &fakeChapters{createFn: func(context.Context, chapter.NewChapter) (chapter.Chapter, error) {
				t.Fatal("create must not be called")
				return chapter.Chapter{}, nil
			}}
			s := NewChapterService(chapters, courses)

			_, err := s.Create(tt.ctx(t), chapter.CreateChapterRequest{CourseID: 1, Title: "Intro", Order: 1})
			wantKind(t, err, tt.wantKind)
		})
	}
}

func TestChapterCreate_Order(t *testing.T) {
	courses := &fakeCourses{getFn: func(_ context.Context, id int64) (course.Course, error) {
		return course.Course{ID: id, InstructorID: ownerID, Status: course.StatusDraft}, nil
	}}
	chapters := &fakeChapters{orderTakenFn: func(_ context.Context, _ int64, order int, _ int64) (bool, error) {
		return order == 2, nil
	}}
	s := NewChapterService(chapters, courses)
	ctx := as(t, ownerID, user.RoleInstructor)

	_, err := s.Create(ctx, chapter.CreateChapterRequest{CourseID: 1, Title: "Intro", Order: 0})
	wantKind(t, err, apperr.KindInvalid)
	wantMessage(t, err, "Order must be greater than 0")

	_, err = s.Create(ctx, chapter.CreateChapterRequest{CourseID: 1, Title: "Intro", Order: 2})
	wantKind(t, err, apperr.KindInvalid)
	wantMessage(t, err, "Order number 2 is already taken in this course")

	c, err := s.Create(ctx, chapter.CreateChapterRequest{CourseID: 1, Title: "  Intro  ", Order: 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Title != "Intro" || c.Order != 3 || c.Status != course.StatusDraft {
		t.Fatalf("unexpected chapter %+v", c)
	}
}

func TestChapterBulkCreate(t *testing.T) {
	liveCourse := &fakeCourses{getFn: func(_ context.Context, id int64) (course.Course, error) {
		return course.Course{ID: id, InstructorID: ownerID, Status: course.StatusDraft}, nil
	}}

	items := func(orders ...int) []chapter.BulkChapter {
		out := make([]chapter.BulkChapter, 0, len(orders))
		for _, o := range orders {
			out = append(out, chapter.BulkChapter{Title: "Chapter", Order: o})
		}
		return out
	}

	t.Run("too many chapters", func(t *testing.T) {
		s := NewChapterService(&fakeChapters{}, liveCourse)
		_, err := s.BulkCreate(as(t, 1, user.RoleAdmin), chapter.BulkCreateRequest{CourseID: 1, Chapters: items(1, 2, 3, 4, 5, 6)})
		wantKind(t, err, apperr.KindInvalid)
		wantMessage(t, err, "Maximum of 5 chapters can be processed at once")
	})

	t.Run("duplicate orders in batch", func(t *testing.T) {
		s := NewChapterService(&fakeChapters{}, liveCourse)
		_, err := s.BulkCreate(as(t, 1, user.RoleAdmin), chapter.BulkCreateRequest{CourseID: 1, Chapters: items(1, 2, 2)})
		wantKind(t, err, apperr.KindInvalid)
		wantMessage(t, err, "Duplicate chapter order found: 2")
	})

	t.Run("duplicate lesson orders", func(t *testing.T) {
		s := NewChapterService(&fakeChapters{}, liveCourse)
		req := chapter.BulkCreateRequest{CourseID: 1, Chapters: items(1)}
		req.Chapters[0].Lessons = []lesson.BulkLessonInput{
			{Title: "a", Order: 1, Type: lesson.TypeText},
			{Title: "b", Order: 1, Type: lesson.TypeText},
		}
		_, err := s.BulkCreate(as(t, 1, user.RoleAdmin), req)
		wantKind(t, err, apperr.KindInvalid)
		wantMessage(t, err, "Duplicate lesson order found: 1")
	})

	t.Run("every taken order is reported", func(t *testing.T) {
		chapters := &fakeChapters{
			orderTakenFn: func(_ context.Context, _ int64, order int, _ int64) (bool, error) {
				return order == 1 || order == 3, nil
			},
			bulkCreateFn: func(context.Context, []chapter.NewChapter) ([]chapter.Chapter, error) {
				t.Fatal("bulk create must not be called")
				return nil, nil
			},
		}
		s := NewChapterService(chapters, liveCourse)

		_, err := s.BulkCreate(as(t, 1, user.RoleAdmin), chapter.BulkCreateRequest{CourseID: 1, Chapters: items(1, 2, 3)})
		wantKind(t, err, apperr.KindInvalid)

		var ae *apperr.Error
		if !errors.As(err, &ae) {
			t.Fatalf("expected *apperr.Error, got %T", err)
		}
		if !strings.HasPrefix(ae.Message, "Order conflicts found: ") {
			t.Fatalf("unexpected message %q", ae.Message)
		}
		if len(ae.Details) != 2 {
			t.Fatalf("expected 2 conflicts, got %v", ae.Details)
		}
	})

	t.Run("creates chapters with lessons", func(t *testing.T) {
		var got []chapter.NewChapter
		chapters := &fakeChapters{bulkCreateFn: func(_ context.Context, in []chapter.NewChapter) ([]chapter.Chapter, error) {
			got = in
			return make([]chapter.Chapter, len(in)), nil
		}}
		s := NewChapterService(chapters, liveCourse)

		req := chapter.BulkCreateRequest{CourseID: 1, Chapters: items(1, 2)}
		req.Chapters[1].Lessons = []lesson.BulkLessonInput{{Title: "Video", Order: 1, Type: lesson.TypeVideo}}

		out, err := s.BulkCreate(as(t, ownerID, user.RoleInstructor), req)
		if err != nil {
			t.Fatalf("BulkCreate: %v", err)
		}
		if len(out) != 2 || len(got) != 2 {
			t.Fatalf("expected 2 chapters, got %d/%d", len(out), len(got))
		}
		if len(got[1].Lessons) != 1 || got[1].Lessons[0].Type != lesson.TypeVideo {
			t.Fatalf("lessons not passed through: %+v", got[1])
		}
	})
}

func TestChapterUpdate_StatusTransitions(t *testing.T) {
	courses := &fakeCourses{getFn: func(_ context.Context, id int64) (course.Course, error) {
		return course.Course{ID: id, InstructorID: ownerID, Status: course.StatusPublished}, nil
	}}

	tests := []struct {
		name        string
		current     chapter.Chapter
		next        course.Status
		wantErr     bool
		wantArchive bool
		wantRestore bool
	}{
		{name: "draft to archived", current: chapter.Chapter{Status: course.StatusDraft}, next: course.StatusArchived, wantArchive: true},
		{name: "draft to published", current: chapter.Chapter{Status: course.StatusDraft}, next: course.StatusPublished},
		{name: "draft to draft", current: chapter.Chapter{Status: course.StatusDraft}, next: course.StatusDraft, wantErr: true},
		{name: "archived to published", current: chapter.Chapter{Status: course.StatusArchived, DeletedAt: deletedAt()}, next: course.StatusPublished, wantErr: true},
		{name: "archived to draft restores", current: chapter.Chapter{Status: course.StatusArchived, DeletedAt: deletedAt()}, next: course.StatusDraft, wantRestore: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := tt.current
			current.ID, current.CourseID, current.Order = 10, 1, 4

			var got *chapter.Changes
			chapters := &fakeChapters{
				getFn: func(context.Context, int64) (chapter.Chapter, error) { return current, nil },
				updateFn: func(_ context.Context, id int64, c chapter.Changes) (chapter.Chapter, error) {
					got = &c
					return chapter.Chapter{ID: id, Status: *c.Status}, nil
				},
			}
			s := NewChapterService(chapters, courses)

			next := tt.next
			_, err := s.Update(as(t, 1, user.RoleAdmin), ChapterUpdate{ID: 10, Req: chapter.UpdateChapterRequest{Status: &next}})
			if tt.wantErr {
				wantKind(t, err, apperr.KindInvalid)
				if got != nil {
					t.Fatal("update must not be called")
				}
				return
			}
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if got.Archive != tt.wantArchive || got.Restore != tt.wantRestore {
				t.Fatalf("archive/restore = %v/%v, want %v/%v", got.Archive, got.Restore, tt.wantArchive, tt.wantRestore)
			}
		})
	}
}

func TestChapterBulkDelete(t *testing.T) {
	courses := &fakeCourses{getFn: func(_ context.Context, id int64) (course.Course, error) {
		return course.Course{ID: id, InstructorID: ownerID, Status: course.StatusDraft}, nil
	}}

	t.Run("duplicates are rejected before lookup", func(t *testing.T) {
		chapters := &fakeChapters{getManyFn: func(context.Context, []int64) ([]chapter.Chapter, error) {
			t.Fatal("lookup must not run")
			return nil, nil
		}}
		s := NewChapterService(chapters, courses)

		_, err := s.BulkDelete(as(t, 1, user.RoleAdmin), []int64{1, 2, 1})
		wantKind(t, err, apperr.KindInvalid)
		wantMessage(t, err, "Duplicate chapter IDs found")
	})

	t.Run("missing chapter fails whole batch", func(t *testing.T) {
		chapters := &fakeChapters{
			getManyFn: func(context.Context, []int64) ([]chapter.Chapter, error) {
				return []chapter.Chapter{{ID: 1, CourseID: 1}}, nil
			},
			setDeletedFn: func(context.Context, []int64, bool) ([]chapter.Chapter, error) {
				t.Fatal("nothing may be deleted")
				return nil, nil
			},
		}
		s := NewChapterService(chapters, courses)

		_, err := s.BulkDelete(as(t, 1, user.RoleAdmin), []int64{1, 2})
		wantKind(t, err, apperr.KindNotFound)
		wantMessage(t, err, "One or more chapters not found")
	})

	t.Run("already deleted chapters are reported", func(t *testing.T) {
		chapters := &fakeChapters{getManyFn: func(context.Context, []int64) ([]chapter.Chapter, error) {
			return []chapter.Chapter{{ID: 1, CourseID: 1}, {ID: 2, CourseID: 1, DeletedAt: deletedAt()}}, nil
		}}
		s := NewChapterService(chapters, courses)

		_, err := s.BulkDelete(as(t, 1, user.RoleAdmin), []int64{1, 2})
		wantKind(t, err, apperr.KindInvalid)
		wantMessage(t, err, "Chapter 2 is already deleted")
	})

	t.Run("deletes all", func(t *testing.T) {
		var deletedIDs []int64
		chapters := &fakeChapters{
			getManyFn: func(context.Context, []int64) ([]chapter.Chapter, error) {
				return []chapter.Chapter{{ID: 1, CourseID: 1}, {ID: 2, CourseID: 1}}, nil
			},
			setDeletedFn: func(_ context.Context, ids []int64, deleted bool) ([]chapter.Chapter, error) {
				if !deleted {
					t.Fatal("expected delete")
				}
				deletedIDs = ids
				return []chapter.Chapter{{ID: 1}, {ID: 2}}, nil
			},
		}
		s := NewChapterService(chapters, courses)

		out, err := s.BulkDelete(as(t, ownerID, user.RoleInstructor), []int64{1, 2})
		if err != nil {
			t.Fatalf("BulkDelete: %v", err)
		}
		if len(out) != 2 || len(deletedIDs) != 2 {
			t.Fatalf("unexpected result %v / %v", out, deletedIDs)
		}
	})
}

func TestChapterBulkRestore_OrderConflicts(t *testing.T) {
	courses := &fakeCourses{getFn: func(_ context.Context, id int64) (course.Course, error) {
		return course.Course{ID: id, InstructorID: ownerID, Status: course.StatusDraft}, nil
	}}
	chapters := &fakeChapters{
		getManyFn: func(context.Context, []int64) ([]chapter.Chapter, error) {
			return []chapter.Chapter{
				{ID: 1, CourseID: 1, Order: 1, DeletedAt: deletedAt()},
				{ID: 2, CourseID: 1, Order: 1, DeletedAt: deletedAt()},
			}, nil
		},
	}
	s := NewChapterService(chapters, courses)

	_, err := s.BulkRestore(as(t, 1, user.RoleAdmin), []int64{1, 2})
	wantKind(t, err, apperr.KindInvalid)
	wantMessage(t, err, "Order conflicts found: Chapters 1 and 2 share order 1")
}

func TestChapterListByCourse_SortWhitelist(t *testing.T) {
	var gotOrder string
	chapters := &fakeChapters{listFn: func(_ context.Context, f chapter.ListFilter) ([]chapter.Chapter, int, error) {
		gotOrder = f.OrderBy
		return nil, 0, nil
	}}
	s := NewChapterService(chapters, &fakeCourses{})

	_, err := s.ListByCourse(as(t, 3, user.RoleUser), ChapterListQuery{CourseID: 1, ListQuery: ListQuery{Sort: "title:sideways,bogus"}})
	wantKind(t, err, apperr.KindInvalid)
	if !strings.Contains(err.Error(), "bogus") || !strings.Contains(err.Error(), "sideways") {
		t.Fatalf("expected every offender named, got %v", err)
	}

	page, err := s.ListByCourse(as(t, 3, user.RoleUser), ChapterListQuery{CourseID: 1})
	if err != nil {
		t.Fatalf("ListByCourse: %v", err)
	}
	if gotOrder != "ORDER BY ch.order_number ASC, ch.id ASC" {
		t.Fatalf("unexpected default order %q", gotOrder)
	}
	if page.Items == nil {
		t.Fatal("items must be an empty slice, not nil")
	}
}

func TestChapterRenumber(t *testing.T) {
	var renumbered int64
	chapters := &fakeChapters{renumberFn: func(_ context.Context, courseID int64) ([]chapter.Chapter, error) {
		renumbered = courseID
		return []chapter.Chapter{{ID: 4, Order: 1}, {ID: 2, Order: 2}}, nil
	}}
	s := NewChapterService(chapters, draftCourses())

	_, err := s.Renumber(as(t, 99, user.RoleInstructor), 1)
	wantKind(t, err, apperr.KindForbidden)
	if renumbered != 0 {
		t.Fatal("renumber must not run for another instructor")
	}

	out, err := s.Renumber(as(t, ownerID, user.RoleInstructor), 1)
	if err != nil {
		t.Fatalf("Renumber: %v", err)
	}
	if renumbered != 1 || len(out) != 2 || out[1].Order != 2 {
		t.Fatalf("renumbered course %d, got %+v", renumbered, out)
	}
}
