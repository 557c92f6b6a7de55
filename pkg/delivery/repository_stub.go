package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type RepositoryStub struct {
	mu      sync.Mutex
	Records []Record
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{}
}

func (r *RepositoryStub) Store(ctx context.Context, record Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.Id == uuid.Nil {
		record.Id = uuid.New()
	}
	record.CreatedAt = time.Now()
	r.Records = append(r.Records, record)
	return record, nil
}

func (r *RepositoryStub) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Record
	for i := len(r.Records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, r.Records[i])
	}
	return result, nil
}

func (r *RepositoryStub) ListByRun(ctx context.Context, runId uuid.UUID) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Record
	for _, rec := range r.Records {
		if rec.RunId == runId {
			result = append(result, rec)
		}
	}
	return result, nil
}
