package scanner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sandwichScope/internal/model"
)

// Jobs launches scan jobs in the background. A job runs on a context detached
// from the request that started it; only Stop cancels it.
type Jobs struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	wg     sync.WaitGroup
	active atomic.Int64
}

func NewJobs(logger *zap.Logger) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Jobs{ctx: ctx, cancel: cancel, logger: logger}
}

// Start runs the scanner over r in a new goroutine and returns the job id.
func (j *Jobs) Start(s *Scanner, target Target, r model.ScanRange) string {
	id := uuid.NewString()
	j.wg.Add(1)
	j.active.Add(1)
	go func() {
		defer j.wg.Done()
		defer j.active.Add(-1)
		if _, err := s.Run(j.ctx, target, r); err != nil {
			j.logger.Warn("scan job ended with error", zap.String("job_id", id), zap.Int64("range_id", r.ID), zap.Error(err))
			return
		}
		j.logger.Debug("scan job finished", zap.String("job_id", id), zap.Int64("range_id", r.ID))
	}()
	return id
}

// Active is the number of jobs still running.
func (j *Jobs) Active() int64 {
	return j.active.Load()
}

// Wait blocks until every started job has returned.
func (j *Jobs) Wait() {
	j.wg.Wait()
}

// Stop cancels running jobs and waits for them to finalize their ranges.
// Canceled jobs mark their range failed.
func (j *Jobs) Stop() {
	j.cancel()
	j.wg.Wait()
}
