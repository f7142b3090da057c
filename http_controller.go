package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the credential endpoints on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.SignIn, controller.SignIn).
		SetName("auth.signin")

	app.Post(controller.Routes.SignUp, controller.SignUp).
		SetName("auth.signup")

	app.Post(controller.Routes.Refresh, controller.Refresh).
		SetName("auth.refresh")
}

type AuthControllerRoutes struct {
	SignIn  string
	SignUp  string
	Refresh string
}

type AuthController struct {
	Logger       Logger
	Auther       Authenticator
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: RenderError,
		Routes: &AuthControllerRoutes{
			SignIn:  "/auth/signin",
			SignUp:  "/auth/signup",
			Refresh: "/auth/refresh",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	return c
}

// SignInRequest payload
type SignInRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r SignInRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r SignInRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) SignIn(ctx router.Context) error {
	payload := new(SignInRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Error parsing body"))
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	result, err := a.Auther.Login(withRequestOrigin(ctx), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, result)
}

// SignUpRequest is the registration payload
type SignUpRequest struct {
	Username string   `form:"username" json:"username"`
	Email    string   `form:"email" json:"email"`
	Password string   `form:"password" json:"password"`
	Roles    []string `form:"roles" json:"roles"`
}

// Validate will validate the payload
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AuthController) SignUp(ctx router.Context) error {
	payload := new(SignUpRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Error parsing body"))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload", "error", err)
		return a.validationError(ctx, err)
	}

	msg := RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Roles:    payload.Roles,
	}

	result, err := a.Auther.Register(ctx.Context(), msg)
	if err != nil {
		a.Logger.Error("register user error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, result)
}

// RefreshRequest carries the token to renew
type RefreshRequest struct {
	Token string `form:"token" json:"token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) Refresh(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "Error parsing body"))
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	result, err := a.Auther.Refresh(ctx.Context(), payload.Token)
	if err != nil {
		a.Logger.Error("Refresh error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, result)
}

func (a *AuthController) validationError(ctx router.Context, err error) error {
	return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryValidation, "Error validating payload").
		WithMetadata(map[string]any{
			"fields": FormatValidationErrorToMap(err),
		}))
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for the JSON error envelope.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	if err != nil {
		out["_"] = err.Error()
	}

	return out
}

// withRequestOrigin threads the caller address into the request context so
// successful logins can record where they came from.
func withRequestOrigin(ctx router.Context) context.Context {
	return WithRemoteAddr(ctx.Context(), ctx.IP())
}
