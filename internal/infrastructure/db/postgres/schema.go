package postgres

import (
	"context"
	"database/sql"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

// schema is idempotent so every replica can run it at startup.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    user_id         TEXT PRIMARY KEY,
    localpart       TEXT NOT NULL,
    remote_username TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS accounts_remote_username_idx ON accounts (remote_username);
`

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
