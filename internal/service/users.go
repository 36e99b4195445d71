package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/identity"
	"github.com/geocoder89/coursehub/internal/security"
	"github.com/geocoder89/coursehub/internal/validation"
)

const msgBadCredentials = "Invalid username/email or password"

type UserStore interface {
	LoadByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (identity.Identity, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
	UpdateProfile(ctx context.Context, id int64, firstName, lastName, passwordHash *string) (user.User, error)
	SetRoles(ctx context.Context, id int64, roles []user.Role) (user.User, error)
	List(ctx context.Context, filter user.ListFilter, orderBy string) ([]user.User, int, error)
	SoftDelete(ctx context.Context, id int64) error
}

type TokenIssuer interface {
	Issue(subject string) (string, error)
	TTL() time.Duration
}

type LoginResult struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresIn int64  `json:"expiresIn"`
}

type RolesChange struct {
	UserID int64
	Roles  []string
}

type UserListQuery struct {
	ListQuery
	Search string
}

var userSortColumns = map[string]string{
	"username":   "u.username",
	"email":      "u.email",
	"created_at": "u.created_at",
}

type UserService struct {
	users  UserStore
	tokens TokenIssuer
	// rootAdminEmail is the bootstrap administrator that keeps ADMIN.
	rootAdminEmail string

	hashPassword  func(string) (string, error)
	checkPassword func(hash, plain string) error

	getByID     func(context.Context, int64) (user.User, error)
	list        func(context.Context, UserListQuery) (Page[user.User], error)
	updateRoles func(context.Context, RolesChange) (user.User, error)
	softDelete  func(context.Context, int64) error
}

func NewUserService(users UserStore, tokens TokenIssuer, rootAdminEmail string) *UserService {
	s := &UserService{
		users:          users,
		tokens:         tokens,
		rootAdminEmail: strings.ToLower(rootAdminEmail),
		hashPassword:   security.HashPassword,
		checkPassword:  security.CheckPassword,
	}

	s.getByID = authz.Guard(readers, s.doGetByID)
	s.list = authz.Guard(adminOnly, s.doList)
	s.updateRoles = authz.Guard(adminOnly, s.doUpdateRoles)
	s.softDelete = authz.GuardErr(adminOnly, s.doSoftDelete)

	return s
}

func mapUserErr(err error) error {
	switch {
	case errors.Is(err, user.ErrNotFound):
		return apperr.NotFound("User not found")
	case errors.Is(err, user.ErrEmailTaken):
		return apperr.Conflict("Email already exists")
	case errors.Is(err, user.ErrUsernameTaken):
		return apperr.Conflict("Username already exists")
	}
	return err
}

func (s *UserService) Register(ctx context.Context, req user.RegisterRequest) (user.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	taken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return user.User{}, err
	}
	if taken {
		return user.User{}, apperr.Conflict("Email already exists")
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username, err = s.usernameFromEmail(ctx, email)
		if err != nil {
			return user.User{}, err
		}
	} else {
		taken, err := s.users.ExistsByUsername(ctx, username)
		if err != nil {
			return user.User{}, err
		}
		if taken {
			return user.User{}, apperr.Conflict("Username already exists")
		}
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return user.User{}, err
	}

	u, err := s.users.Create(ctx, user.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Roles:        []user.Role{user.RoleUser},
	})
	if err != nil {
		return user.User{}, mapUserErr(err)
	}

	slog.Default().InfoContext(ctx, "user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// usernameFromEmail takes the local part and appends 1, 2, ... until free.
func (s *UserService) usernameFromEmail(ctx context.Context, email string) (string, error) {
	base, _, _ := strings.Cut(email, "@")
	candidate := base

	for suffix := 1; ; suffix++ {
		taken, err := s.users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(suffix)
	}
}

// Login checks the credentials and issues a token for the username. Unknown
// accounts, wrong passwords and disabled accounts look the same to callers.
func (s *UserService) Login(ctx context.Context, req user.LoginRequest) (LoginResult, error) {
	principal, err := s.users.LoadByUsernameOrEmail(ctx, loginName(req.UsernameOrEmail))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return LoginResult{}, apperr.Unauthorized(msgBadCredentials)
		}
		return LoginResult{}, err
	}

	if !principal.Enabled() {
		return LoginResult{}, apperr.Unauthorized(msgBadCredentials)
	}

	if err := s.checkPassword(principal.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			slog.Default().WarnContext(ctx, "password check failed", "user_id", principal.UserID, "err", err)
		}
		return LoginResult{}, apperr.Unauthorized(msgBadCredentials)
	}

	token, err := s.tokens.Issue(principal.Username)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
	}, nil
}

// loginName normalizes the login identifier. Emails are stored lower case.
func loginName(raw string) string {
	name := strings.TrimSpace(raw)
	if strings.Contains(name, "@") {
		return strings.ToLower(name)
	}
	return name
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context) (user.User, error) {
	id, err := currentIdentity(ctx)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.users.GetByID(ctx, id.UserID)
	return u, mapUserErr(err)
}

func (s *UserService) GetByID(ctx context.Context, id int64) (user.User, error) {
	return s.getByID(ctx, id)
}

func (s *UserService) doGetByID(ctx context.Context, id int64) (user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return user.User{}, mapUserErr(err)
	}
	if u.DeletedAt != nil {
		return user.User{}, apperr.NotFound("User not found")
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, req user.UpdateProfileRequest) (user.User, error) {
	id, err := currentIdentity(ctx)
	if err != nil {
		return user.User{}, err
	}

	var hash *string
	if req.Password != nil {
		if id.IsAdmin() {
			return user.User{}, apperr.Forbidden("Can not change password for admin user")
		}
		h, err := s.hashPassword(*req.Password)
		if err != nil {
			return user.User{}, err
		}
		hash = &h
	}

	u, err := s.users.UpdateProfile(ctx, id.UserID, req.FirstName, req.LastName, hash)
	if err != nil {
		return user.User{}, mapUserErr(err)
	}
	return u, nil
}

func (s *UserService) UpdateRoles(ctx context.Context, change RolesChange) (user.User, error) {
	return s.updateRoles(ctx, change)
}

func (s *UserService) doUpdateRoles(ctx context.Context, change RolesChange) (user.User, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return user.User{}, err
	}

	roles, err := parseRoles(change.Roles)
	if err != nil {
		return user.User{}, err
	}

	target, err := s.users.GetByID(ctx, change.UserID)
	if err != nil {
		return user.User{}, mapUserErr(err)
	}

	wantsAdmin := false
	for _, r := range roles {
		if r == user.RoleAdmin {
			wantsAdmin = true
		}
	}
	isAdmin := target.HasRole(user.RoleAdmin)
	removingAdmin := isAdmin && !wantsAdmin

	switch {
	case !isAdmin && wantsAdmin:
		return user.User{}, apperr.Forbidden("Cannot assign ADMIN role to a non-admin user")
	case removingAdmin && s.rootAdminEmail != "" && strings.EqualFold(target.Email, s.rootAdminEmail):
		return user.User{}, apperr.Forbidden("Cannot remove ADMIN role from the initial admin account")
	case removingAdmin && target.ID == caller.UserID:
		return user.User{}, apperr.Forbidden("You cannot remove your own ADMIN role")
	}

	u, err := s.users.SetRoles(ctx, change.UserID, roles)
	if err != nil {
		return user.User{}, mapUserErr(err)
	}

	slog.Default().InfoContext(ctx, "user roles updated", "user_id", u.ID, "by", caller.UserID)
	return u, nil
}

// parseRoles accepts role names case-insensitively and reports every unknown one.
func parseRoles(raw []string) ([]user.Role, error) {
	var invalid []string
	seen := make(map[user.Role]struct{}, len(raw))
	out := make([]user.Role, 0, len(raw))

	for _, name := range raw {
		r, ok := user.ParseRole(name)
		if !ok {
			invalid = append(invalid, name)
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}

	if len(invalid) > 0 {
		return nil, apperr.Invalid("Invalid role(s) provided: %s", strings.Join(invalid, ", "))
	}
	if len(out) == 0 {
		return nil, apperr.Invalid("At least one role is required")
	}
	return out, nil
}

func (s *UserService) List(ctx context.Context, q UserListQuery) (Page[user.User], error) {
	return s.list(ctx, q)
}

func (s *UserService) doList(ctx context.Context, q UserListQuery) (Page[user.User], error) {
	p, orderBy, err := q.resolve(validation.UserSortFields, userSortColumns, "u.created_at DESC", "u.id ASC")
	if err != nil {
		return Page[user.User]{}, err
	}

	items, total, err := s.users.List(ctx, user.ListFilter{
		Search: q.Search,
		Limit:  p.Limit,
		Offset: p.Offset(),
	}, orderBy)
	if err != nil {
		return Page[user.User]{}, err
	}
	return newPage(items, p, total), nil
}

func (s *UserService) SoftDelete(ctx context.Context, id int64) error {
	return s.softDelete(ctx, id)
}

func (s *UserService) doSoftDelete(ctx context.Context, id int64) error {
	target, err := s.users.GetByID(ctx, id)
	if err != nil {
		return mapUserErr(err)
	}
	if target.HasRole(user.RoleAdmin) {
		return apperr.Forbidden("Can not delete admin user")
	}
	if target.DeletedAt != nil {
		return apperr.Invalid("User is already deleted")
	}
	return mapUserErr(s.users.SoftDelete(ctx, id))
}
