package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]

	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)

	TrackAttemptedLogin(ctx context.Context, user *User, state LockoutState) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User, state LockoutState) error
	TrackSuccessfulLogin(ctx context.Context, user *User, origin string) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User, origin string) error

	ListPage(ctx context.Context, limit, offset int) ([]*User, int, error)
	ListPageTx(ctx context.Context, tx bun.IDB, limit, offset int) ([]*User, int, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	GrantRolesTx(ctx context.Context, tx bun.IDB, user *User, roles []*Role) error
	ReplaceRolesTx(ctx context.Context, tx bun.IDB, user *User, roles []*Role) error
	DeleteByIdentifier(ctx context.Context, identifier string) error
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx resolves an id, email, or username, in that order, and
// loads the role association the token issuance path needs.
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record).Relation("Roles")

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return a.ExistsByUsernameTx(ctx, a.db, username)
}

func (a *users) ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username = ?", username).
		Exists(ctx)
}

func (a *users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return a.ExistsByEmailTx(ctx, a.db, email)
}

func (a *users) ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", email).
		Exists(ctx)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

// GrantRolesTx writes the user<->role association rows inside the caller's
// transaction so registration stays a single atomic unit.
func (a *users) GrantRolesTx(ctx context.Context, tx bun.IDB, user *User, roles []*Role) error {
	if len(roles) == 0 {
		return nil
	}

	assignments := make([]*UserRole, 0, len(roles))
	for _, role := range roles {
		if role == nil {
			continue
		}
		assignments = append(assignments, &UserRole{
			UserID: user.ID,
			RoleID: role.ID,
		})
	}

	if _, err := tx.NewInsert().Model(&assignments).Exec(ctx); err != nil {
		return err
	}

	user.Roles = roles
	return nil
}

func (a *users) ListPage(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return a.ListPageTx(ctx, a.db, limit, offset)
}

func (a *users) ListPageTx(ctx context.Context, tx bun.IDB, limit, offset int) ([]*User, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	records := []*User{}
	total, err := tx.NewSelect().
		Model(&records).
		Relation("Roles").
		Order("usr.created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)

	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// ReplaceRolesTx swaps the user's role set: the old association rows go away
// and the new ones land in the same transaction.
func (a *users) ReplaceRolesTx(ctx context.Context, tx bun.IDB, user *User, roles []*Role) error {
	if _, err := tx.NewDelete().
		Model((*UserRole)(nil)).
		Where("user_id = ?", user.ID).
		Exec(ctx); err != nil {
		return err
	}

	user.Roles = nil
	return a.GrantRolesTx(ctx, tx, user, roles)
}

func (a *users) DeleteByIdentifier(ctx context.Context, identifier string) error {
	record, err := a.GetByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}

	_, err = a.db.NewDelete().
		Model(record).
		Where("?TableAlias.id = ?", record.ID).
		Exec(ctx)

	return err
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User, origin string) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user, origin)
}

// TrackSuccessfulLoginTx resets the failure counter, clears the lock expiry,
// and stamps the last-login timestamp and origin in one UPDATE so concurrent
// attempts cannot interleave partial state.
func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User, origin string) error {
	lastLoginAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"last_login_at" = ?,
			"last_login_ip" = ?,
			"locked_until" = NULL,
			"failed_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, lastLoginAt, origin, user.ID).Exec(ctx)

	if err == nil {
		user.ApplyLockoutState(LockoutState{})
		user.LastLoginAt = &lastLoginAt
		user.LastLoginIP = origin
	}

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User, state LockoutState) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user, state)
}

// TrackAttemptedLoginTx persists a lockout policy transition after a failed
// password check.
func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User, state LockoutState) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"failed_attempts" = ?,
			"locked_until" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, state.FailedAttempts, state.LockedUntil, user.ID).Exec(ctx)

	if err == nil {
		user.ApplyLockoutState(state)
	}

	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
