package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ytqa/internal/session"
)

type SessionCleanupJob struct {
	pool *session.Pool
	ttl  time.Duration
}

func NewSessionCleanupJob(pool *session.Pool, ttl time.Duration) *SessionCleanupJob {
	return &SessionCleanupJob{pool: pool, ttl: ttl}
}

func (j *SessionCleanupJob) Name() string {
	return "session_cleanup"
}

func (j *SessionCleanupJob) Run(ctx context.Context) error {
	if j.pool == nil {
		return nil
	}
	removed := j.pool.CleanupIdle(j.ttl)
	if removed > 0 {
		logutil.GetLogger(ctx).Info("idle sessions evicted", zap.Int("count", removed))
	}
	return nil
}
