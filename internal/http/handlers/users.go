package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/service"
	"github.com/gin-gonic/gin"
)

type UserService interface {
	Register(ctx context.Context, req user.RegisterRequest) (user.User, error)
	Login(ctx context.Context, req user.LoginRequest) (service.LoginResult, error)
	Me(ctx context.Context) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	UpdateProfile(ctx context.Context, req user.UpdateProfileRequest) (user.User, error)
	UpdateRoles(ctx context.Context, change service.RolesChange) (user.User, error)
	List(ctx context.Context, q service.UserListQuery) (service.Page[user.User], error)
	SoftDelete(ctx context.Context, id int64) error
}

type UsersHandler struct {
	users UserService
}

func NewUsersHandler(users UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.Register(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *UsersHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	res, err := h.users.Login(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	c, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.Me(c)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) GetByID(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.GetByID(c, id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) UpdateProfile(ctx *gin.Context) {
	var req user.UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.UpdateProfile(c, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) UpdateRoles(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req user.UpdateRolesRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.UpdateRoles(c, service.RolesChange{UserID: id, Roles: req.Roles})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) List(ctx *gin.Context) {
	q, ok := listQuery(ctx)
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	page, err := h.users.List(c, service.UserListQuery{ListQuery: q, Search: ctx.Query("search")})
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, page)
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	c, cancel := requestContext(ctx)
	defer cancel()

	if err := h.users.SoftDelete(c, id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
