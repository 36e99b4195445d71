package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/gin-gonic/gin"
)

type MessageResponse struct {
	Message string `json:"message"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// RespondErr writes err as {message, statusCode}. Unclassified errors are
// logged with the request id and answered with a generic message.
func RespondErr(ctx *gin.Context, err error) {
	resp := apperr.ResponseFor(err)

	if resp.StatusCode >= http.StatusInternalServerError {
		slog.Default().ErrorContext(ctx.Request.Context(), "request failed",
			"route", ctx.FullPath(),
			"request_id", requestIDFrom(ctx),
			"err", err,
		)
	}

	ctx.AbortWithStatusJSON(resp.StatusCode, resp)
}

func RespondBadRequest(ctx *gin.Context, message string, errs []string) {
	resp := apperr.NewResponse(http.StatusBadRequest, message)
	resp.Errors = errs
	ctx.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

func RespondNotFound(ctx *gin.Context, message string) {
	ctx.AbortWithStatusJSON(http.StatusNotFound, apperr.NewResponse(http.StatusNotFound, message))
}

func RespondMethodNotAllowed(ctx *gin.Context) {
	ctx.AbortWithStatusJSON(http.StatusMethodNotAllowed,
		apperr.NewResponse(http.StatusMethodNotAllowed, "Method not allowed"))
}
