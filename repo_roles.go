package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles exposes the role reference data. Rows are created once at bootstrap
// (fixtures); user records only associate to them.
type Roles interface {
	repository.Repository[*Role]

	GetByName(ctx context.Context, name RoleName) (*Role, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name RoleName) (*Role, error)
	GetByNames(ctx context.Context, names []RoleName) ([]*Role, error)
	GetByNamesTx(ctx context.Context, tx bun.IDB, names []RoleName) ([]*Role, error)
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

func (r *roles) GetByName(ctx context.Context, name RoleName) (*Role, error) {
	return r.GetByNameTx(ctx, r.db, name)
}

func (r *roles) GetByNameTx(ctx context.Context, tx bun.IDB, name RoleName) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, decorate(ErrRoleNotFound, map[string]any{"role": name})
		}
		return nil, err
	}

	return record, nil
}

func (r *roles) GetByNames(ctx context.Context, names []RoleName) ([]*Role, error) {
	return r.GetByNamesTx(ctx, r.db, names)
}

// GetByNamesTx resolves every name or fails: callers are expected to have
// normalized unknown names through ResolveRoleNames first, so a miss here is
// missing reference data, not user input.
func (r *roles) GetByNamesTx(ctx context.Context, tx bun.IDB, names []RoleName) ([]*Role, error) {
	resolved := make([]*Role, 0, len(names))
	for _, name := range names {
		role, err := r.GetByNameTx(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, role)
	}
	return resolved, nil
}

// RequireSeededRoles verifies the whole closed set exists. Absence is a fatal
// startup condition, not a per-request error.
func RequireSeededRoles(ctx context.Context, repo Roles) error {
	for _, name := range AllRoles() {
		if _, err := repo.GetByName(ctx, name); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "role reference data not seeded")
		}
	}
	return nil
}
