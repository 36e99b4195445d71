package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/coursehub/internal/domain/category"
	"github.com/geocoder89/coursehub/internal/service"
	"github.com/gin-gonic/gin"
)

type CategoryService interface {
	Create(ctx context.Context, req category.UpsertCategoryRequest) (category.Category, error)
	Update(ctx context.Context, u service.CategoryUpdate) (category.Category, error)
	Delete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) (category.Category, error)
	Get(ctx context.Context, id int64) (category.Category, error)
	List(ctx context.Context, q service.CategoryListQuery) (service.Page[category.Category], error)
}

type CategoriesHandler struct {
	categories CategoryService
}

func NewCategoriesHandler(categories CategoryService) *CategoriesHandler {
	return &CategoriesHandler{categories: categories}
}

func (h *CategoriesHandler) Create(ctx *gin.Context) {
	var req category.UpsertCategoryRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	cat, err := h.categories.Create(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, cat)
}

func (h *CategoriesHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req category.UpsertCategoryRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	cat, err := h.categories.Update(c, service.CategoryUpdate{ID: id, Req: req})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, cat)
}

func (h *CategoriesHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	if err := h.categories.Delete(c, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, MessageResponse{Message: "Category deleted successfully"})
}

func (h *CategoriesHandler) Restore(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	cat, err := h.categories.Restore(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, cat)
}

func (h *CategoriesHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	cat, err := h.categories.Get(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondRead(ctx, cat)
}

func (h *CategoriesHandler) List(ctx *gin.Context) {
	q, ok := listQuery(ctx)
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	page, err := h.categories.List(c, service.CategoryListQuery{
		ListQuery:      q,
		Name:           ctx.Query("name"),
		IncludeDeleted: boolQuery(ctx, "includeDeleted"),
	})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, page)
}
