package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/coursehub/internal/domain/lesson"
	"github.com/geocoder89/coursehub/internal/service"
	"github.com/gin-gonic/gin"
)

type LessonService interface {
	Create(ctx context.Context, req lesson.CreateLessonRequest) (lesson.Lesson, error)
	BulkCreate(ctx context.Context, req lesson.BulkCreateRequest) ([]lesson.Lesson, error)
	Update(ctx context.Context, u service.LessonUpdate) (lesson.Lesson, error)
	BulkUpdate(ctx context.Context, req lesson.BulkUpdateRequest) ([]lesson.Lesson, error)
	Delete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) (lesson.Lesson, error)
	BulkDelete(ctx context.Context, ids []int64) ([]lesson.Lesson, error)
	BulkRestore(ctx context.Context, ids []int64) ([]lesson.Lesson, error)
	Renumber(ctx context.Context, chapterID int64) ([]lesson.Lesson, error)
	Get(ctx context.Context, id int64) (lesson.Lesson, error)
	ListByChapter(ctx context.Context, chapterID int64) ([]lesson.Lesson, error)
	Search(ctx context.Context, q service.LessonSearchQuery) (service.Page[lesson.Lesson], error)
}

type LessonsHandler struct {
	lessons LessonService
}

func NewLessonsHandler(lessons LessonService) *LessonsHandler {
	return &LessonsHandler{lessons: lessons}
}

func (h *LessonsHandler) Create(ctx *gin.Context) {
	var req lesson.CreateLessonRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	l, err := h.lessons.Create(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, l)
}

func (h *LessonsHandler) BulkCreate(ctx *gin.Context) {
	var req lesson.BulkCreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.lessons.BulkCreate(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"items": items, "count": len(items)})
}

func (h *LessonsHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req lesson.UpdateLessonRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	l, err := h.lessons.Update(c, service.LessonUpdate{ID: id, Req: req})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, l)
}

func (h *LessonsHandler) BulkUpdate(ctx *gin.Context) {
	var req lesson.BulkUpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.lessons.BulkUpdate(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *LessonsHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	if err := h.lessons.Delete(c, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, MessageResponse{Message: "Lesson deleted successfully"})
}

func (h *LessonsHandler) Restore(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	l, err := h.lessons.Restore(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, l)
}

func (h *LessonsHandler) BulkDelete(ctx *gin.Context) {
	h.bulk(ctx, h.lessons.BulkDelete)
}

func (h *LessonsHandler) BulkRestore(ctx *gin.Context) {
	h.bulk(ctx, h.lessons.BulkRestore)
}

func (h *LessonsHandler) bulk(ctx *gin.Context, op func(context.Context, []int64) ([]lesson.Lesson, error)) {
	var req lesson.BulkIDsRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	items, err := op(c, req.IDs)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// Renumber serves POST /chapters/:id/lessons/reorder.
func (h *LessonsHandler) Renumber(ctx *gin.Context) {
	chapterID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.lessons.Renumber(c, chapterID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *LessonsHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	l, err := h.lessons.Get(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, l)
}

// ListByChapter serves GET /lessons?chapterId=.
func (h *LessonsHandler) ListByChapter(ctx *gin.Context) {
	chapterID, ok := optionalInt64Query(ctx, "chapterId")
	if !ok {
		return
	}
	if chapterID == nil {
		RespondBadRequest(ctx, "Query parameter chapterId is required", nil)
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.lessons.ListByChapter(c, *chapterID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// Search serves GET /lessons/search.
func (h *LessonsHandler) Search(ctx *gin.Context) {
	q, ok := listQuery(ctx)
	if !ok {
		return
	}
	chapterID, ok := optionalInt64Query(ctx, "chapterId")
	if !ok {
		return
	}
	courseID, ok := optionalInt64Query(ctx, "courseId")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	page, err := h.lessons.Search(c, service.LessonSearchQuery{
		ListQuery: q,
		ChapterID: chapterID,
		CourseID:  courseID,
		Title:     ctx.Query("title"),
		Type:      ctx.Query("type"),
		Status:    ctx.Query("status"),
	})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondRead(ctx, page)
}
