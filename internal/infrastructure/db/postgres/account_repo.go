package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

const uniqueViolation = "23505"

type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

type accountRow struct {
	UserID         string
	Localpart      string
	RemoteUsername string
	CreatedAt      time.Time
}

func toDomainAccount(r accountRow) domain.Account {
	return domain.Account{
		UserID:         r.UserID,
		Localpart:      r.Localpart,
		RemoteUsername: r.RemoteUsername,
		CreatedAt:      r.CreatedAt,
	}
}

// ---------- provider.AccountHandler ----------

func (r *AccountRepo) CheckUserExists(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, domain.ErrMissingField("user_id")
	}

	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1);`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&exists); err != nil {
		return false, domain.ErrDBUnavailable(err)
	}
	return exists, nil
}

func (r *AccountRepo) Register(ctx context.Context, a domain.Account) (domain.Account, error) {
	if a.UserID == "" {
		return domain.Account{}, domain.ErrMissingField("user_id")
	}
	if a.Localpart == "" {
		return domain.Account{}, domain.ErrMissingField("localpart")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO accounts (user_id, localpart, remote_username, created_at)
VALUES ($1,$2,$3,$4)
RETURNING user_id, localpart, remote_username, created_at;
`
	var ar accountRow
	err := r.db.QueryRowContext(ctx, q,
		a.UserID, a.Localpart, a.RemoteUsername, a.CreatedAt,
	).Scan(
		&ar.UserID,
		&ar.Localpart,
		&ar.RemoteUsername,
		&ar.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, domain.ErrAccountExists()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return toDomainAccount(ar), nil
}

// GetByUserID is used by the operator tool and tests.
func (r *AccountRepo) GetByUserID(ctx context.Context, userID string) (domain.Account, error) {
	const q = `
SELECT user_id, localpart, remote_username, created_at
FROM accounts
WHERE user_id = $1
LIMIT 1;
`
	var ar accountRow
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&ar.UserID,
		&ar.Localpart,
		&ar.RemoteUsername,
		&ar.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return toDomainAccount(ar), nil
}

func (r *AccountRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
