package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/service"
	"github.com/gin-gonic/gin"
)

type CourseService interface {
	Create(ctx context.Context, req course.CreateCourseRequest) (course.Course, error)
	Update(ctx context.Context, u service.CourseUpdate) (course.Course, error)
	Archive(ctx context.Context, id int64) (course.Course, error)
	Unarchive(ctx context.Context, id int64) (course.Course, error)
	Get(ctx context.Context, id int64) (course.Course, error)
	Search(ctx context.Context, q service.CourseSearchQuery) (service.Page[course.Course], error)
	Latest(ctx context.Context, limit int) ([]course.Course, error)
}

type CoursesHandler struct {
	courses CourseService
}

func NewCoursesHandler(courses CourseService) *CoursesHandler {
	return &CoursesHandler{courses: courses}
}

func (h *CoursesHandler) Create(ctx *gin.Context) {
	var req course.CreateCourseRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	created, err := h.courses.Create(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *CoursesHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req course.UpdateCourseRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	updated, err := h.courses.Update(c, service.CourseUpdate{ID: id, Req: req})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (h *CoursesHandler) Archive(ctx *gin.Context) {
	h.transition(ctx, h.courses.Archive)
}

func (h *CoursesHandler) Unarchive(ctx *gin.Context) {
	h.transition(ctx, h.courses.Unarchive)
}

func (h *CoursesHandler) transition(ctx *gin.Context, op func(context.Context, int64) (course.Course, error)) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	updated, err := op(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (h *CoursesHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	found, err := h.courses.Get(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondRead(ctx, found)
}

func (h *CoursesHandler) Search(ctx *gin.Context) {
	q, ok := listQuery(ctx)
	if !ok {
		return
	}
	instructorID, ok := optionalInt64Query(ctx, "instructorId")
	if !ok {
		return
	}
	categoryID, ok := optionalInt64Query(ctx, "categoryId")
	if !ok {
		return
	}

	query := service.CourseSearchQuery{
		ListQuery: q,
		Title:     ctx.Query("title"),
		Status:    ctx.Query("status"),
	}
	if instructorID != nil {
		query.InstructorID = *instructorID
	}
	if categoryID != nil {
		query.CategoryID = *categoryID
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	page, err := h.courses.Search(c, query)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondRead(ctx, page)
}

func (h *CoursesHandler) Latest(ctx *gin.Context) {
	limit, ok := intQuery(ctx, "limit")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	items, err := h.courses.Latest(c, limit)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondRead(ctx, gin.H{"items": items, "count": len(items)})
}
