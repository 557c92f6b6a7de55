package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/ndtl/timereport/internal/config"
)

// OpenRedmine opens the Redmine database through database/sql using the pgx
// stdlib driver. The Redmine schema is owned by Redmine itself and is never
// migrated from here.
func OpenRedmine(cfg config.Database) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", keywordDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open redmine database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redmine database %s: %w", cfg.Name, err)
	}
	return db, nil
}
