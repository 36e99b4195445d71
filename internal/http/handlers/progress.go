package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/coursehub/internal/domain/progress"
	"github.com/gin-gonic/gin"
)

type ProgressService interface {
	Start(ctx context.Context, req progress.UpdateRequest) (progress.Progress, error)
	Complete(ctx context.Context, req progress.UpdateRequest) (progress.Progress, error)
	List(ctx context.Context, courseID int64) ([]progress.Progress, error)
}

type ProgressHandler struct {
	progress ProgressService
}

func NewProgressHandler(progress ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

func (h *ProgressHandler) Start(ctx *gin.Context) {
	h.update(ctx, h.progress.Start)
}

func (h *ProgressHandler) Complete(ctx *gin.Context) {
	h.update(ctx, h.progress.Complete)
}

func (h *ProgressHandler) update(ctx *gin.Context, op func(context.Context, progress.UpdateRequest) (progress.Progress, error)) {
	var req progress.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	p, err := op(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, p)
}

func (h *ProgressHandler) List(ctx *gin.Context) {
	courseID, ok := optionalInt64Query(ctx, "courseId")
	if !ok {
		return
	}
	if courseID == nil {
		RespondBadRequest(ctx, "Query parameter courseId is required", nil)
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.progress.List(c, *courseID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}
