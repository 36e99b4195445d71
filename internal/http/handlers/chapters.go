package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/coursehub/internal/domain/chapter"
	"github.com/geocoder89/coursehub/internal/service"
	"github.com/gin-gonic/gin"
)

type ChapterService interface {
	Create(ctx context.Context, req chapter.CreateChapterRequest) (chapter.Chapter, error)
	BulkCreate(ctx context.Context, req chapter.BulkCreateRequest) ([]chapter.Chapter, error)
	Update(ctx context.Context, u service.ChapterUpdate) (chapter.Chapter, error)
	Reorder(ctx context.Context, r service.ChapterReorder) (chapter.Chapter, error)
	Renumber(ctx context.Context, courseID int64) ([]chapter.Chapter, error)
	Delete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) (chapter.Chapter, error)
	BulkDelete(ctx context.Context, ids []int64) ([]chapter.Chapter, error)
	BulkRestore(ctx context.Context, ids []int64) ([]chapter.Chapter, error)
	Get(ctx context.Context, id int64) (chapter.Chapter, error)
	GetWithLessons(ctx context.Context, id int64) (chapter.Chapter, error)
	ListByCourse(ctx context.Context, q service.ChapterListQuery) (service.Page[chapter.Chapter], error)
}

type ChaptersHandler struct {
	chapters ChapterService
}

func NewChaptersHandler(chapters ChapterService) *ChaptersHandler {
	return &ChaptersHandler{chapters: chapters}
}

func (h *ChaptersHandler) Create(ctx *gin.Context) {
	var req chapter.CreateChapterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	ch, err := h.chapters.Create(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, ch)
}

func (h *ChaptersHandler) BulkCreate(ctx *gin.Context) {
	var req chapter.BulkCreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	created, err := h.chapters.BulkCreate(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"items": created, "count": len(created)})
}

func (h *ChaptersHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req chapter.UpdateChapterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	ch, err := h.chapters.Update(c, service.ChapterUpdate{ID: id, Req: req})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ch)
}

func (h *ChaptersHandler) Reorder(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req chapter.ReorderRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	ch, err := h.chapters.Reorder(c, service.ChapterReorder{ID: id, Order: req.Order})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ch)
}

// Renumber serves POST /courses/:id/chapters/reorder.
func (h *ChaptersHandler) Renumber(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.chapters.Renumber(c, courseID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *ChaptersHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	if err := h.chapters.Delete(c, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, MessageResponse{Message: "Chapter deleted successfully"})
}

func (h *ChaptersHandler) Restore(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	ch, err := h.chapters.Restore(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ch)
}

func (h *ChaptersHandler) BulkDelete(ctx *gin.Context) {
	h.bulk(ctx, h.chapters.BulkDelete)
}

func (h *ChaptersHandler) BulkRestore(ctx *gin.Context) {
	h.bulk(ctx, h.chapters.BulkRestore)
}

func (h *ChaptersHandler) bulk(ctx *gin.Context, op func(context.Context, []int64) ([]chapter.Chapter, error)) {
	var req chapter.BulkIDsRequest
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

func (h *ChaptersHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	ch, err := h.chapters.Get(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ch)
}

func (h *ChaptersHandler) GetWithLessons(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	ch, err := h.chapters.GetWithLessons(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ch)
}

func (h *ChaptersHandler) ListByCourse(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	q, ok := listQuery(ctx)
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	page, err := h.chapters.ListByCourse(c, service.ChapterListQuery{
		ListQuery:      q,
		CourseID:       courseID,
		IncludeDeleted: boolQuery(ctx, "includeDeleted"),
	})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, page)
}
