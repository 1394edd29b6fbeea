package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
)

// MergeLocker serializes summary merges for a single (user, date) slot.
// Acquire blocks until the lock is held or ctx is done, and returns a
// release func that must be called exactly once.
type MergeLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

const (
	mergeLockLease     = 15 * time.Second
	mergeLockRetryWait = 50 * time.Millisecond
)

type redisMergeLocker struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisMergeLocker(log *logger.Logger, rdb *goredis.Client) MergeLocker {
	return &redisMergeLocker{
		log: log.With("service", "RedisMergeLocker"),
		rdb: rdb,
	}
}

func (l *redisMergeLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "mergelock:" + key
	token := uuid.New().String()
	for {
		ok, err := l.rdb.SetNX(ctx, lockKey, token, mergeLockLease).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire merge lock %q: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(mergeLockRetryWait):
		}
	}
	release := func() {
		// Only delete the lock if we still own it. The lease expiring
		// underneath us means another holder may have the key now.
		current, err := l.rdb.Get(context.Background(), lockKey).Result()
		if err != nil {
			if err != goredis.Nil {
				l.log.Warn("merge lock release check failed", "key", key, "error", err)
			}
			return
		}
		if current != token {
			l.log.Warn("merge lock lease expired before release", "key", key)
			return
		}
		if delErr := l.rdb.Del(context.Background(), lockKey).Err(); delErr != nil {
			l.log.Warn("merge lock release failed", "key", key, "error", delErr)
		}
	}
	return release, nil
}

type localMergeLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocalMergeLocker is the single-process fallback when redis is not
// configured.
func NewLocalMergeLocker() MergeLocker {
	return &localMergeLocker{held: make(map[string]chan struct{})}
}

func (l *localMergeLocker) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		waitCh, busy := l.held[key]
		if !busy {
			ch := make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			release := func() {
				l.mu.Lock()
				delete(l.held, key)
				l.mu.Unlock()
				close(ch)
			}
			return release, nil
		}
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-waitCh:
		}
	}
}
