package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/coursehub/internal/service"
	"github.com/gin-gonic/gin"
)

const requestTimeout = 3 * time.Second

// requestContext bounds store work while keeping the request identity.
func requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), requestTimeout)
}

// pathID reads a positive integer path parameter, answering 400 otherwise.
func pathID(ctx *gin.Context, name string) (int64, bool) {
	raw := ctx.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, fmt.Sprintf("Invalid %s: %q", name, raw), nil)
		return 0, false
	}
	return id, true
}

// listQuery reads page, limit and sort. Non-numeric paging answers 400;
// range checks happen in the service.
func listQuery(ctx *gin.Context) (service.ListQuery, bool) {
	page, ok := intQuery(ctx, "page")
	if !ok {
		return service.ListQuery{}, false
	}
	limit, ok := intQuery(ctx, "limit")
	if !ok {
		return service.ListQuery{}, false
	}
	return service.ListQuery{Page: page, Limit: limit, Sort: ctx.Query("sort")}, true
}

func intQuery(ctx *gin.Context, name string) (int, bool) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		RespondBadRequest(ctx, fmt.Sprintf("Query parameter %s must be an integer", name), nil)
		return 0, false
	}
	return n, true
}

func optionalInt64Query(ctx *gin.Context, name string) (*int64, bool) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		RespondBadRequest(ctx, fmt.Sprintf("Query parameter %s must be a positive integer", name), nil)
		return nil, false
	}
	return &n, true
}

func boolQuery(ctx *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(ctx.Query(name))
	return v
}
