package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

const dbApplicationName = "mwauth"

// NewDB opens a pgx-backed *sql.DB and pings it. The DSN is parsed up front
// so a malformed DB_ADDR fails before any dial.
func NewDB(dsn string, debug bool, lg zerolog.Logger) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty DB DSN")
	}
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DB DSN: %w", err)
	}
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = map[string]string{}
	}
	if _, ok := connCfg.RuntimeParams["application_name"]; !ok {
		connCfg.RuntimeParams["application_name"] = dbApplicationName
	}
	db := stdlib.OpenDB(*connCfg)

	// account lookups are short and bursty at login peaks
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if debug {
		var who, name, version string
		err := db.QueryRowContext(ctx,
			`SELECT current_user, current_database(), current_setting('server_version')`,
		).Scan(&who, &name, &version)
		if err != nil {
			lg.Debug().Err(err).Msg("db connected; identity query failed")
		} else {
			lg.Debug().Str("user", who).Str("db", name).Str("version", version).Msg("db connected")
		}
	}
	return db, nil
}
