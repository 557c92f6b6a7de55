package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ndtl/timereport/pkg/period"
)

// RunStore records which day each job last ran, shared by every process
// that schedules jobs against the same database.
type RunStore interface {
	// ClaimRun marks job as run on day. It returns false when the job was
	// already claimed for that day or a later one.
	ClaimRun(ctx context.Context, job string, day time.Time) (bool, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) RunStore {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) ClaimRun(ctx context.Context, job string, day time.Time) (bool, error) {
	query := `INSERT INTO scheduled_run (job, run_date) VALUES ($1, $2)
		ON CONFLICT (job) DO UPDATE SET run_date = EXCLUDED.run_date, claimed_at = now()
		WHERE scheduled_run.run_date < EXCLUDED.run_date
		RETURNING job`
	var claimed string
	err := r.db.QueryRow(ctx, query, job, day).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim %s for %s: %w", job, day.Format(period.DateLayout), err)
	}
	return true, nil
}
