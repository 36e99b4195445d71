package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/coursehub/internal/domain/enrollment"
	"github.com/geocoder89/coursehub/internal/service"
	"github.com/gin-gonic/gin"
)

type EnrollmentService interface {
	Enroll(ctx context.Context, courseID int64) (enrollment.Enrollment, error)
	Get(ctx context.Context, courseID int64) (enrollment.Enrollment, error)
	List(ctx context.Context, q service.EnrollmentListQuery) (service.Page[enrollment.Enrollment], error)
	Drop(ctx context.Context, courseID int64) (enrollment.Enrollment, error)
	Resume(ctx context.Context, courseID int64) (enrollment.Enrollment, error)
}

type EnrollmentsHandler struct {
	enrollments EnrollmentService
}

func NewEnrollmentsHandler(enrollments EnrollmentService) *EnrollmentsHandler {
	return &EnrollmentsHandler{enrollments: enrollments}
}

func (h *EnrollmentsHandler) Enroll(ctx *gin.Context) {
	var req enrollment.EnrollRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	e, err := h.enrollments.Enroll(c, req.CourseID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, e)
}

func (h *EnrollmentsHandler) Get(ctx *gin.Context) {
	h.byCourse(ctx, h.enrollments.Get)
}

func (h *EnrollmentsHandler) Drop(ctx *gin.Context) {
	h.byCourse(ctx, h.enrollments.Drop)
}

func (h *EnrollmentsHandler) Resume(ctx *gin.Context) {
	h.byCourse(ctx, h.enrollments.Resume)
}

func (h *EnrollmentsHandler) byCourse(ctx *gin.Context, op func(context.Context, int64) (enrollment.Enrollment, error)) {
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	e, err := op(c, courseID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *EnrollmentsHandler) List(ctx *gin.Context) {
	q, ok := listQuery(ctx)
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	page, err := h.enrollments.List(c, service.EnrollmentListQuery{ListQuery: q, Status: ctx.Query("status")})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, page)
}
