package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/secureplatform/platform-auth"
	"github.com/secureplatform/platform-auth/cmd/server/config"
)

type App struct {
	config *config.Config
	bunDB  *bun.DB
	repo   auth.RepositoryManager
	auth   auth.Authenticator
	auther *auth.RouteAuthenticator
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) SetRepository(repo auth.RepositoryManager) {
	a.repo = repo
}

func (a *App) SetDB(db *bun.DB) {
	a.bunDB = db
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) SetHTTPServer(srv router.Server[*fiber.App]) {
	a.srv = srv
}

func (a *App) SetAuthenticator(auther auth.Authenticator) {
	a.auth = auther
}

func (a *App) SetHTTPAuth(auther *auth.RouteAuthenticator) {
	a.auther = auther
}

func main() {
	configPath := flag.String("config", "config.yml", "path to the configuration file")
	flag.Parse()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("platform-auth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		lgr.Error("configuration error", "error", err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		lgr.Error("persistence bootstrap failed", "error", err)
		os.Exit(1)
	}

	if err := WithAuth(ctx, app); err != nil {
		lgr.Error("auth bootstrap failed", "error", err)
		os.Exit(1)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		lgr.Error("http bootstrap failed", "error", err)
		os.Exit(1)
	}

	lgr.Info("server listening", "address", cfg.Server.GetAddress())

	app.srv.Serve(cfg.Server.GetAddress())

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.Config().Persistence.GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*auth.User)(nil))
	persistence.RegisterModel((*auth.Role)(nil))
	persistence.RegisterModel((*auth.UserRole)(nil))

	dialect := sqlitedialect.New()
	client, err := persistence.New(app.Config().Persistence, db, dialect)
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.SetDB(client.DB())
	app.SetRepository(auth.NewRepositoryManager(client.DB()))

	// Role reference data is a hard runtime dependency: seed it when absent
	// and refuse to start if it still cannot be resolved.
	if err := auth.RequireSeededRoles(ctx, app.repo.Roles()); err != nil {
		client.RegisterFixtures(auth.GetFixturesFS())
		if err := client.Seed(ctx); err != nil {
			return err
		}
		if err := auth.RequireSeededRoles(ctx, app.repo.Roles()); err != nil {
			return err
		}
	}

	return nil
}

func WithAuth(ctx context.Context, app *App) error {
	cfg := app.Config().Auth

	provider := auth.NewUserProvider(userTrackerAdapter{users: app.repo.Users()}).
		WithLogger(app.GetLogger("auth:provider"))

	registrar := auth.NewRegisterUserHandler(app.repo).
		WithLogger(app.GetLogger("auth:register"))

	authenticator := auth.NewAuthenticator(provider, cfg).
		WithLogger(app.GetLogger("auth")).
		WithRegistrar(registrar)

	app.SetAuthenticator(authenticator)

	httpAuth, err := auth.NewHTTPAuthenticator(authenticator, authenticator.TokenService(), cfg)
	if err != nil {
		return err
	}

	httpAuth.Logger = app.GetLogger("auth:http")
	app.SetHTTPAuth(httpAuth)

	return bootstrapAdmin(ctx, app, registrar)
}

// bootstrapAdmin creates the configured administrator account on first start.
// An existing account for the email wins; the configured password is never
// applied to it.
func bootstrapAdmin(ctx context.Context, app *App, registrar auth.AccountRegisterer) error {
	admin := app.Config().Admin
	if !admin.Enabled() {
		return nil
	}

	exists, err := app.repo.Users().ExistsByEmail(ctx, admin.Email)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	user, err := registrar.RegisterUser(ctx, auth.RegisterUserMessage{
		Username: admin.Username,
		Email:    admin.Email,
		Password: admin.Password,
		Roles:    []string{auth.RoleAdministrator},
	})
	if err != nil {
		return err
	}

	app.GetLogger("auth").Info("bootstrap administrator created", "user_id", user.ID.String())
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
			AppName:       "platform-auth",
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	srv.Router().Get("/health", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]any{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	api := srv.Router().Group("/api")

	auth.RegisterAuthRoutes(api,
		auth.WithControllerAuthenticator(app.auth),
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
	)

	protected := app.auther.ProtectedRoute(app.auther.MakeRouteAuthErrorHandler(false))
	adminOnly := app.auther.RequireRoles(auth.RoleAdministrator)

	users := srv.Router().Group("/api")
	users.Use(protected)

	contextKey := app.Config().Auth.GetContextKey()

	userController := auth.NewUserController(
		auth.WithUserControllerRepo(app.repo),
		auth.WithUserControllerLogger(app.GetLogger("users:ctrl")),
		auth.WithUserControllerContextKey(contextKey),
	)

	users.Get("/users/me", userController.Me).SetName("users.me")
	users.Get("/users", userController.Index, adminOnly).SetName("users.index")
	users.Put("/users/:id", userController.Update, adminOnly).SetName("users.update")
	users.Delete("/users/:id", userController.Delete, adminOnly).SetName("users.delete")

	app.SetHTTPServer(srv)

	return nil
}

type userTrackerAdapter struct {
	users auth.Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userTrackerAdapter) TrackAttemptedLogin(ctx context.Context, user *auth.User, state auth.LockoutState) error {
	return a.users.TrackAttemptedLogin(ctx, user, state)
}

func (a userTrackerAdapter) TrackSuccessfulLogin(ctx context.Context, user *auth.User, origin string) error {
	return a.users.TrackSuccessfulLogin(ctx, user, origin)
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
