package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Roles     []string `json:"roles"`
	UseHashid bool     `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates accounts. The duplicate checks and the insert
// run inside one transaction; the unique indexes on username/email are the
// backstop for registrations racing past the check.
type RegisterUserHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *RegisterUserHandler) WithLogger(l Logger) *RegisterUserHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

// RegisterUser satisfies AccountRegisterer
func (h *RegisterUserHandler) RegisterUser(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		username := getUsername(msg.Username, msg.Email)

		if taken, err := h.repo.Users().ExistsByUsernameTx(ctx, tx, username); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		} else if taken {
			return decorate(ErrDuplicateIdentity, map[string]any{"field": "username"})
		}

		if taken, err := h.repo.Users().ExistsByEmailTx(ctx, tx, msg.Email); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		} else if taken {
			return decorate(ErrDuplicateIdentity, map[string]any{"field": "email"})
		}

		hash, err := HashPassword(msg.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		roleNames, unknown := ResolveRoleNames(msg.Roles)
		if len(unknown) > 0 {
			// Unknown names downgrade to the standard role rather than fail
			// the registration; strict callers can pre-validate with
			// ResolveRoleNames themselves.
			h.logger.Warn("unrecognized role names downgraded to standard", "roles", unknown)
		}

		roleRecords, err := h.repo.Roles().GetByNamesTx(ctx, tx, roleNames)
		if err != nil {
			return err
		}

		user.PasswordHash = hash
		user.Email = msg.Email
		user.Username = username
		user.Enabled = true
		if msg.UseHashid {
			if id, err := hashid.NewUUID(msg.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user").
				WithTextCode(TextCodeDuplicateIdentity)
		}

		if err := h.repo.Users().GrantRolesTx(ctx, tx, user, roleRecords); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not assign roles")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return user, nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}

var _ AccountRegisterer = (*RegisterUserHandler)(nil)
