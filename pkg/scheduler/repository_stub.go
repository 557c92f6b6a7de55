package scheduler

import (
	"context"
	"sync"
	"time"
)

// RunStoreStub keeps claims in memory. Share one between schedulers to act
// like processes using the same database.
type RunStoreStub struct {
	mu   sync.Mutex
	runs map[string]time.Time
	// Err, when set, is returned by ClaimRun.
	Err error
}

func NewRunStoreStub() *RunStoreStub {
	return &RunStoreStub{runs: make(map[string]time.Time)}
}

func (s *RunStoreStub) ClaimRun(ctx context.Context, job string, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	if last, ok := s.runs[job]; ok && !last.Before(day) {
		return false, nil
	}
	s.runs[job] = day
	return true, nil
}
