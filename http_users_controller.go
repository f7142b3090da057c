package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
)

// RegisterUserRoutes mounts the account management endpoints. The caller is
// expected to guard them with ProtectedRoute/RequireRoles middleware.
func RegisterUserRoutes[T any](app router.Router[T], opts ...UserControllerOption) {
	controller := NewUserController(opts...)

	app.Get("/users", controller.Index).SetName("users.index")
	app.Get("/users/me", controller.Me).SetName("users.me")
	app.Put("/users/:id", controller.Update).SetName("users.update")
	app.Delete("/users/:id", controller.Delete).SetName("users.delete")
}

type UserController struct {
	Logger       Logger
	Repo         RepositoryManager
	ContextKey   string
	ErrorHandler router.ErrorHandler
}

type UserControllerOption func(*UserController) *UserController

func WithUserControllerLogger(logger Logger) UserControllerOption {
	return func(c *UserController) *UserController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithUserControllerRepo(repo RepositoryManager) UserControllerOption {
	return func(c *UserController) *UserController {
		c.Repo = repo
		return c
	}
}

func WithUserControllerContextKey(key string) UserControllerOption {
	return func(c *UserController) *UserController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func NewUserController(opts ...UserControllerOption) *UserController {
	c := &UserController{
		Logger:       defLogger{},
		ContextKey:   "user",
		ErrorHandler: RenderError,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in user controller...")
	}

	return c
}

// UserRecord is the serializable projection of a user account.
type UserRecord struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Enabled     bool     `json:"enabled"`
	Roles       []string `json:"roles"`
	LastLoginAt string   `json:"last_login_at,omitempty"`
}

func NewUserDTO(user *User) UserRecord {
	record := UserRecord{
		ID:       user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Enabled:  user.Enabled,
		Roles:    user.RoleNames(),
	}

	if user.LastLoginAt != nil {
		record.LastLoginAt = user.LastLoginAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	return record
}

func (a *UserController) Index(ctx router.Context) error {
	limit := ctx.QueryInt("limit", 25)
	offset := ctx.QueryInt("offset", 0)

	records, total, err := a.Repo.Users().ListPage(ctx.Context(), limit, offset)
	if err != nil {
		a.Logger.Error("users list error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	items := make([]UserRecord, 0, len(records))
	for _, record := range records {
		items = append(items, NewUserDTO(record))
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (a *UserController) Me(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.ContextKey)
	if !ok {
		return a.ErrorHandler(ctx, errors.New("no session claims available", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized))
	}

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), claims.UserID())
	if err != nil {
		a.Logger.Error("users me lookup error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, NewUserDTO(user))
}

// UpdateUserPayload carries the mutable account fields.
type UpdateUserPayload struct {
	Enabled *bool    `form:"enabled" json:"enabled"`
	Roles   []string `form:"roles" json:"roles"`
}

// Validate will validate the payload
func (r UpdateUserPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Roles, validation.Each(validation.In(rolesAsAny()...))),
	)
}

func rolesAsAny() []any {
	all := AllRoles()
	out := make([]any, 0, len(all))
	for _, r := range all {
		out = append(out, r)
	}
	return out
}

func (a *UserController) Update(ctx router.Context) error {
	identifier := ctx.Param("id")

	payload := new(UpdateUserPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Error parsing body"))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryValidation, "Error validating payload").
			WithMetadata(map[string]any{
				"fields": FormatValidationErrorToMap(err),
			}))
	}

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), identifier)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	err = a.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		if payload.Enabled != nil && *payload.Enabled != user.Enabled {
			user.Enabled = *payload.Enabled
			if _, err := a.Repo.Users().UpdateTx(c, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
				return err
			}
		}

		if payload.Roles != nil {
			roleNames, unknown := ResolveRoleNames(payload.Roles)
			if len(unknown) > 0 {
				a.Logger.Warn("unrecognized role names downgraded to standard", "roles", unknown)
			}

			roleRecords, err := a.Repo.Roles().GetByNamesTx(c, tx, roleNames)
			if err != nil {
				return err
			}

			if err := a.Repo.Users().ReplaceRolesTx(c, tx, user, roleRecords); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		a.Logger.Error("users update error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, NewUserDTO(user))
}

func (a *UserController) Delete(ctx router.Context) error {
	identifier := ctx.Param("id")

	if err := a.Repo.Users().DeleteByIdentifier(ctx.Context(), identifier); err != nil {
		a.Logger.Error("users delete error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.NoContent(router.StatusNoContent)
}
