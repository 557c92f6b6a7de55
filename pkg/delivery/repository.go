package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Store(ctx context.Context, record Record) (Record, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	ListByRun(ctx context.Context, runId uuid.UUID) ([]Record, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Store(ctx context.Context, record Record) (Record, error) {
	if record.Id == uuid.Nil {
		record.Id = uuid.New()
	}
	query := `INSERT INTO report_delivery (id, run_id, report, recipient, subject, status, attempts, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		record.Id,
		record.RunId,
		record.Report,
		record.Recipient,
		record.Subject,
		string(record.Status),
		record.Attempts,
		record.Error,
	).Scan(&record.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("failed to store delivery record: %w", err)
	}
	return record, nil
}

const recordSelect = `SELECT id, run_id, report, recipient, subject, status, attempts, error, created_at FROM report_delivery`

func (r *repositoryImpl) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.db.Query(ctx, recordSelect+` ORDER BY created_at DESC, recipient LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return scanRecords(rows)
}

func (r *repositoryImpl) ListByRun(ctx context.Context, runId uuid.UUID) ([]Record, error) {
	rows, err := r.db.Query(ctx, recordSelect+` WHERE run_id = $1 ORDER BY created_at, recipient`, runId)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries of run %s: %w", runId, err)
	}
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		var status string
		err := rows.Scan(&rec.Id, &rec.RunId, &rec.Report, &rec.Recipient, &rec.Subject, &status, &rec.Attempts, &rec.Error, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		rec.Status = Status(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
