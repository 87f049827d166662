package cache

import (
	"context"
	"fmt"
	"time"
)

// JobLock is a named lock backed by Redis SET NX. It prevents two apply runs
// of the same scheduled job from overlapping even when the worker and the web
// server run in separate processes.
type JobLock struct {
	redis *RedisClient
}

// NewJobLock creates a new JobLock.
func NewJobLock(redis *RedisClient) *JobLock {
	return &JobLock{redis: redis}
}

func (l *JobLock) key(job string) string {
	return fmt.Sprintf("lock:job:%s", job)
}

// Acquire attempts to take the lock for job. It returns false when another
// holder already has it; contention is refused, never queued.
func (l *JobLock) Acquire(ctx context.Context, job string, ttl time.Duration) (bool, error) {
	return l.redis.client.SetNX(ctx, l.key(job), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release frees the lock for job. Releasing a lock that expired is a no-op.
func (l *JobLock) Release(ctx context.Context, job string) error {
	return l.redis.Delete(ctx, l.key(job))
}
