package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// caseSensitiveLike makes LIKE behave as on PostgreSQL.
const caseSensitiveLike = "_pragma=case_sensitive_like(1)"

// SQLiteDB opens the embedded SQLite database at path through the pure Go modernc driver.
// SQLite allows one writer, so the pool is limited to a single connection.
func SQLiteDB(ctx context.Context, path string) (*sqlx.DB, error) {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	db, err := sqlx.Open("sqlite", path+separator+caseSensitiveLike)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}
