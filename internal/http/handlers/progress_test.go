package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/domain/lesson"
	"github.com/geocoder89/coursehub/internal/domain/progress"
	"github.com/geocoder89/coursehub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type fakeProgressService struct {
	handlers.ProgressService

	startFn func(ctx context.Context, req progress.UpdateRequest) (progress.Progress, error)
	listFn  func(ctx context.Context, courseID int64) ([]progress.Progress, error)
}

func (f *fakeProgressService) Start(ctx context.Context, req progress.UpdateRequest) (progress.Progress, error) {
	return f.startFn(ctx, req)
}

func (f *fakeProgressService) List(ctx context.Context, courseID int64) ([]progress.Progress, error) {
	return f.listFn(ctx, courseID)
}

func TestProgressHandler_Start(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got progress.UpdateRequest
	h := handlers.NewProgressHandler(&fakeProgressService{
		startFn: func(ctx context.Context, req progress.UpdateRequest) (progress.Progress, error) {
			got = req
			if req.LessonID == 9 {
				return progress.Progress{}, apperr.Invalid("Lesson is already started")
			}
			return progress.Progress{ID: 1, LessonID: req.LessonID, Status: progress.StatusInProgress}, nil
		},
	})

	r := gin.New()
	r.POST("/lesson-progress/start", h.Start)

	w := doJSON(t, r, http.MethodPost, "/lesson-progress/start", `{"lessonId":4}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if got.LessonID != 4 || got.UserID != 0 {
		t.Fatalf("service received %+v", got)
	}

	w = doJSON(t, r, http.MethodPost, "/lesson-progress/start", `{"userId":2}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing lessonId: got status %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, r, http.MethodPost, "/lesson-progress/start", `{"lessonId":9}`, nil)
	if resp := decodeError(t, w); resp.Message != "Lesson is already started" || w.Code != http.StatusBadRequest {
		t.Fatalf("unexpected response %d %+v", w.Code, resp)
	}
}

func TestProgressHandler_ListRequiresCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotCourse int64
	h := handlers.NewProgressHandler(&fakeProgressService{
		listFn: func(ctx context.Context, courseID int64) ([]progress.Progress, error) {
			gotCourse = courseID
			return []progress.Progress{{ID: 1}, {ID: 2}}, nil
		},
	})

	r := gin.New()
	r.GET("/lesson-progress", h.List)

	w := doJSON(t, r, http.MethodGet, "/lesson-progress", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, r, http.MethodGet, "/lesson-progress?courseId=abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, r, http.MethodGet, "/lesson-progress?courseId=5", "", nil)
	if w.Code != http.StatusOK || gotCourse != 5 {
		t.Fatalf("got status %d course %d, body=%s", w.Code, gotCourse, w.Body.String())
	}
}

type fakeLessonService struct {
	handlers.LessonService

	bulkRestoreFn func(ctx context.Context, ids []int64) ([]lesson.Lesson, error)
}

func (f *fakeLessonService) BulkRestore(ctx context.Context, ids []int64) ([]lesson.Lesson, error) {
	return f.bulkRestoreFn(ctx, ids)
}

func TestLessonsHandler_BulkRestore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got []int64
	h := handlers.NewLessonsHandler(&fakeLessonService{
		bulkRestoreFn: func(ctx context.Context, ids []int64) ([]lesson.Lesson, error) {
			got = ids
			return []lesson.Lesson{{ID: 1}, {ID: 2}}, nil
		},
	})

	r := gin.New()
	r.POST("/lessons/bulk-restore", h.BulkRestore)

	w := doJSON(t, r, http.MethodPost, "/lessons/bulk-restore", `{"ids":[1,2]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("service received %v", got)
	}
}
