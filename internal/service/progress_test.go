package service

import (
	"context"
	"testing"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/domain/enrollment"
	"github.com/geocoder89/coursehub/internal/domain/lesson"
	"github.com/geocoder89/coursehub/internal/domain/progress"
	"github.com/geocoder89/coursehub/internal/domain/user"
)

const learnerID = 3

type fakeProgress struct {
	getFn      func(ctx context.Context, userID, lessonID int64) (progress.Progress, error)
	startFn    func(ctx context.Context, k progress.Key) (progress.Progress, error)
	completeFn func(ctx context.Context, id int64) (progress.Progress, error)
	listFn     func(ctx context.Context, userID, courseID int64) ([]progress.Progress, error)
}

func (f *fakeProgress) Get(ctx context.Context, userID, lessonID int64) (progress.Progress, error) {
	if f.getFn != nil {
		return f.getFn(ctx, userID, lessonID)
	}
	return progress.Progress{}, progress.ErrNotFound
}

func (f *fakeProgress) Start(ctx context.Context, k progress.Key) (progress.Progress, error) {
	if f.startFn != nil {
		return f.startFn(ctx, k)
	}
	return progress.Progress{ID: 1, UserID: k.UserID, CourseID: k.CourseID, LessonID: k.LessonID, Status: progress.StatusInProgress}, nil
}

func (f *fakeProgress) Complete(ctx context.Context, id int64) (progress.Progress, error) {
	if f.completeFn != nil {
		return f.completeFn(ctx, id)
	}
	return progress.Progress{ID: id, Status: progress.StatusCompleted}, nil
}

func (f *fakeProgress) ListByCourse(ctx context.Context, userID, courseID int64) ([]progress.Progress, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID, courseID)
	}
	return nil, nil
}

func liveLessons() *fakeLessons {
	return &fakeLessons{getFn: func(_ context.Context, id int64) (lesson.Lesson, error) {
		return lesson.Lesson{ID: id, ChapterID: liveChapterID}, nil
	}}
}

func activeEnrollment() *fakeEnrollments {
	return &fakeEnrollments{current: enrollment.Enrollment{ID: 1, UserID: learnerID, CourseID: 1, Status: enrollment.StatusInProgress}}
}

func TestProgressStart(t *testing.T) {
	tests := []struct {
		name       string
		caller     int64
		roles      []user.Role
		req        progress.UpdateRequest
		lesson     lesson.Lesson
		enrollment *fakeEnrollments
		existing   *progress.Progress
		wantKind   apperr.Kind
		wantMsg    string
		wantUser   int64
	}{
		{
			name:     "starts for the caller",
			caller:   learnerID,
			roles:    []user.Role{user.RoleUser},
			req:      progress.UpdateRequest{LessonID: 4},
			wantUser: learnerID,
		},
		{
			name:     "admin starts for someone else",
			caller:   1,
			roles:    []user.Role{user.RoleAdmin},
			req:      progress.UpdateRequest{LessonID: 4, UserID: learnerID},
			wantUser: learnerID,
		},
		{
			name:     "user cannot act for someone else",
			caller:   learnerID,
			roles:    []user.Role{user.RoleUser},
			req:      progress.UpdateRequest{LessonID: 4, UserID: 8},
			wantKind: apperr.KindForbidden,
			wantMsg:  "You don't have permission to start this lesson",
		},
		{
			name:     "deleted lesson",
			caller:   learnerID,
			roles:    []user.Role{user.RoleUser},
			req:      progress.UpdateRequest{LessonID: 4},
			lesson:   lesson.Lesson{ID: 4, ChapterID: liveChapterID, DeletedAt: deletedAt()},
			wantKind: apperr.KindNotFound,
			wantMsg:  "Lesson not found",
		},
		{
			name:       "not enrolled",
			caller:     learnerID,
			roles:      []user.Role{user.RoleUser},
			req:        progress.UpdateRequest{LessonID: 4},
			enrollment: &fakeEnrollments{getErr: enrollment.ErrNotFound},
			wantKind:   apperr.KindInvalid,
			wantMsg:    "User is not enrolled in this course",
		},
		{
			name:       "dropped enrollment",
			caller:     learnerID,
			roles:      []user.Role{user.RoleUser},
			req:        progress.UpdateRequest{LessonID: 4},
			enrollment: &fakeEnrollments{current: enrollment.Enrollment{Status: enrollment.StatusDropped}},
			wantKind:   apperr.KindInvalid,
			wantMsg:    "Course is dropped; resume it to continue",
		},
		{
			name:     "already started",
			caller:   learnerID,
			roles:    []user.Role{user.RoleUser},
			req:      progress.UpdateRequest{LessonID: 4},
			existing: &progress.Progress{ID: 2, Status: progress.StatusInProgress},
			wantKind: apperr.KindInvalid,
			wantMsg:  "Lesson is already started",
		},
		{
			name:     "already completed",
			caller:   learnerID,
			roles:    []user.Role{user.RoleUser},
			req:      progress.UpdateRequest{LessonID: 4},
			existing: &progress.Progress{ID: 2, Status: progress.StatusCompleted},
			wantKind: apperr.KindInvalid,
			wantMsg:  "Lesson is already completed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lessons := liveLessons()
			if tt.lesson.ID != 0 {
				l := tt.lesson
				lessons = &fakeLessons{getFn: func(context.Context, int64) (lesson.Lesson, error) { return l, nil }}
			}
			enrollments := tt.enrollment
			if enrollments == nil {
				enrollments = activeEnrollment()
			}

			var started *progress.Key
			store := &fakeProgress{
				getFn: func(context.Context, int64, int64) (progress.Progress, error) {
					if tt.existing != nil {
						return *tt.existing, nil
					}
					return progress.Progress{}, progress.ErrNotFound
				},
				startFn: func(_ context.Context, k progress.Key) (progress.Progress, error) {
					started = &k
					return progress.Progress{UserID: k.UserID, LessonID: k.LessonID, Status: progress.StatusInProgress}, nil
				},
			}
			s := NewProgressService(store, lessons, liveChapters(), enrollments)

			p, err := s.Start(as(t, tt.caller, tt.roles...), tt.req)
			if tt.wantMsg != "" {
				wantKind(t, err, tt.wantKind)
				wantMessage(t, err, tt.wantMsg)
				if started != nil {
					t.Fatal("start must not be called")
				}
				return
			}
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			if started == nil || started.UserID != tt.wantUser || started.ChapterID != liveChapterID || started.CourseID != 1 {
				t.Fatalf("unexpected key %+v", started)
			}
			if p.Status != progress.StatusInProgress {
				t.Fatalf("status = %s, want IN_PROGRESS", p.Status)
			}
		})
	}
}

func TestProgressStart_ConcurrentStartIsReported(t *testing.T) {
	store := &fakeProgress{startFn: func(context.Context, progress.Key) (progress.Progress, error) {
		return progress.Progress{}, progress.ErrAlreadyStarted
	}}
	s := NewProgressService(store, liveLessons(), liveChapters(), activeEnrollment())

	_, err := s.Start(as(t, learnerID, user.RoleUser), progress.UpdateRequest{LessonID: 4})
	wantKind(t, err, apperr.KindInvalid)
	wantMessage(t, err, "Lesson is already started")
}

func TestProgressComplete(t *testing.T) {
	tests := []struct {
		name     string
		existing *progress.Progress
		roles    []user.Role
		userID   int64
		wantKind apperr.Kind
		wantMsg  string
	}{
		{name: "not started", wantKind: apperr.KindInvalid, wantMsg: "You must start the lesson before completing it"},
		{name: "already completed", existing: &progress.Progress{ID: 2, Status: progress.StatusCompleted}, wantKind: apperr.KindInvalid, wantMsg: "Lesson is already completed"},
		{name: "someone else's lesson", existing: &progress.Progress{ID: 2, Status: progress.StatusInProgress}, userID: 8, wantKind: apperr.KindForbidden, wantMsg: "You don't have permission to complete this lesson"},
		{name: "completes", existing: &progress.Progress{ID: 2, Status: progress.StatusInProgress}},
		{name: "admin completes for the learner", existing: &progress.Progress{ID: 2, Status: progress.StatusInProgress}, roles: []user.Role{user.RoleAdmin}, userID: learnerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var completed int64
			store := &fakeProgress{
				getFn: func(_ context.Context, userID, _ int64) (progress.Progress, error) {
					if userID != learnerID {
						t.Fatalf("progress looked up for user %d", userID)
					}
					if tt.existing == nil {
						return progress.Progress{}, progress.ErrNotFound
					}
					return *tt.existing, nil
				},
				completeFn: func(_ context.Context, id int64) (progress.Progress, error) {
					completed = id
					return progress.Progress{ID: id, Status: progress.StatusCompleted}, nil
				},
			}
			s := NewProgressService(store, liveLessons(), liveChapters(), activeEnrollment())

			caller, roles := int64(learnerID), tt.roles
			if len(roles) == 0 {
				roles = []user.Role{user.RoleUser}
			} else {
				caller = 1
			}

			_, err := s.Complete(as(t, caller, roles...), progress.UpdateRequest{LessonID: 4, UserID: tt.userID})
			if tt.wantMsg != "" {
				wantKind(t, err, tt.wantKind)
				wantMessage(t, err, tt.wantMsg)
				if completed != 0 {
					t.Fatal("complete must not be called")
				}
				return
			}
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if completed != tt.existing.ID {
				t.Fatalf("completed %d, want %d", completed, tt.existing.ID)
			}
		})
	}
}

func TestProgressComplete_ReportsFinishedCourse(t *testing.T) {
	store := &fakeProgress{
		getFn: func(context.Context, int64, int64) (progress.Progress, error) {
			return progress.Progress{ID: 2, Status: progress.StatusInProgress}, nil
		},
		completeFn: func(_ context.Context, id int64) (progress.Progress, error) {
			return progress.Progress{ID: id, CourseID: 1, Status: progress.StatusCompleted, CourseCompleted: true}, nil
		},
	}
	s := NewProgressService(store, liveLessons(), liveChapters(), activeEnrollment())

	p, err := s.Complete(as(t, learnerID, user.RoleUser), progress.UpdateRequest{LessonID: 4})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !p.CourseCompleted {
		t.Fatal("course completion must be passed through")
	}
}

func TestProgressList(t *testing.T) {
	var gotUser, gotCourse int64
	store := &fakeProgress{listFn: func(_ context.Context, userID, courseID int64) ([]progress.Progress, error) {
		gotUser, gotCourse = userID, courseID
		return []progress.Progress{{ID: 1}}, nil
	}}

	s := NewProgressService(store, liveLessons(), liveChapters(), &fakeEnrollments{getErr: enrollment.ErrNotFound})
	_, err := s.List(as(t, learnerID, user.RoleUser), 1)
	wantKind(t, err, apperr.KindNotFound)
	wantMessage(t, err, "Enrollment not found")

	s = NewProgressService(store, liveLessons(), liveChapters(), activeEnrollment())
	items, err := s.List(as(t, learnerID, user.RoleUser), 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || gotUser != learnerID || gotCourse != 1 {
		t.Fatalf("listed %v for user %d course %d", items, gotUser, gotCourse)
	}

	_, err = s.List(context.Background(), 1)
	wantKind(t, err, apperr.KindUnauthorized)
}
