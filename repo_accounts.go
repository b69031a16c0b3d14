package authgate

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PromoteAccountSQL is the confirmation write. The trust_state guard in
// the WHERE clause is what makes promotion atomic: a concurrent confirm
// for the same account matches zero rows instead of double-applying.
var PromoteAccountSQL = `UPDATE "accounts" AS "acc"
SET
	"username" = ?,
	"password_hash" = ?,
	"trust_state" = 'confirmed',
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"acc"."email" = ?
AND (
	"acc"."trust_state" = 'provisional'
) RETURNING *;`

var UpdateAvatarSQL = `UPDATE "accounts" AS "acc"
SET
	"avatar_link" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"acc"."email" = ?
RETURNING *;`

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

// NewAccountsRepository builds the bun-backed account store.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.findByColumn(ctx, "email", email)
}

func (a *accounts) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return a.findByColumn(ctx, "username", username)
}

func (a *accounts) findByColumn(ctx context.Context, column, value string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, goerrors.New("record not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithTextCode("RECORD_NOT_FOUND").
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
	}

	return record, nil
}

// Create inserts a new account, relying on the store's uniqueness
// constraints instead of a lookup-then-insert. A constraint violation
// surfaces as ErrDuplicateAccount.
func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	prepareAccountDefaults(record)

	created, err := a.Repository.CreateTx(ctx, a.db, record)
	if err != nil {
		if IsDuplicateConstraint(err) {
			return nil, ErrDuplicateAccount
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create account")
	}

	return created, nil
}

// PromoteToConfirmed applies the confirmation write. It fails with
// ErrAlreadyConfirmed when the account left the provisional state in
// the meantime, ErrAccountNotFound when the email has no account, and
// ErrDuplicateAccount when the chosen username is taken.
func (a *accounts) PromoteToConfirmed(ctx context.Context, email, username, passwordHash string) (*Account, error) {
	res, err := a.Repository.Raw(ctx, PromoteAccountSQL, username, passwordHash, email)
	if err != nil {
		if IsDuplicateConstraint(err) {
			return nil, ErrDuplicateAccount
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account promotion failed")
	}

	if len(res) == 0 {
		existing, ferr := a.FindByEmail(ctx, email)
		if ferr != nil {
			return nil, ErrAccountNotFound
		}
		if existing.Confirmed() {
			return nil, ErrAlreadyConfirmed
		}
		return nil, goerrors.New("account promotion matched no rows", goerrors.CategoryInternal)
	}

	return res[0], nil
}

func (a *accounts) UpdateAvatar(ctx context.Context, email, link string) (*Account, error) {
	res, err := a.Repository.Raw(ctx, UpdateAvatarSQL, link, email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "avatar update failed")
	}

	if len(res) == 0 {
		return nil, ErrAccountNotFound
	}

	return res[0], nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.EnsureTrustState()

	if record.ID == uuid.Nil {
		if id, err := hashid.NewUUID(record.Email); err == nil {
			record.ID = id
		} else {
			record.ID = uuid.New()
		}
	}
}
