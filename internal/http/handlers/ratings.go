package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/coursehub/internal/domain/rating"
	"github.com/geocoder89/coursehub/internal/service"
	"github.com/gin-gonic/gin"
)

type RatingService interface {
	Rate(ctx context.Context, req rating.CreateRatingRequest) (rating.Rating, error)
	Update(ctx context.Context, u service.RatingUpdate) (rating.Rating, error)
	Delete(ctx context.Context, id int64) error
	ListByCourse(ctx context.Context, q service.RatingListQuery) (service.Page[rating.Rating], error)
	Distribution(ctx context.Context, courseID int64) (rating.Distribution, error)
}

type RatingsHandler struct {
	ratings RatingService
}

func NewRatingsHandler(ratings RatingService) *RatingsHandler {
	return &RatingsHandler{ratings: ratings}
}

func (h *RatingsHandler) Rate(ctx *gin.Context) {
	var req rating.CreateRatingRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	r, err := h.ratings.Rate(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, r)
}

func (h *RatingsHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req rating.UpdateRatingRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	r, err := h.ratings.Update(c, service.RatingUpdate{ID: id, Req: req})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, r)
}

func (h *RatingsHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	if err := h.ratings.Delete(c, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, MessageResponse{Message: "Course rating deleted successfully"})
}

func (h *RatingsHandler) ListByCourse(ctx *gin.Context) {
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

	page, err := h.ratings.ListByCourse(c, service.RatingListQuery{ListQuery: q, CourseID: courseID})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondRead(ctx, page)
}

func (h *RatingsHandler) Distribution(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	d, err := h.ratings.Distribution(c, courseID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondRead(ctx, d)
}
