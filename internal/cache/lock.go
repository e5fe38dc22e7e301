package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// lockRetryInterval is how often a waiting process polls the index lock.
const lockRetryInterval = 20 * time.Millisecond

// indexLock is an exclusive flock(2) on the cache lock file. It serializes
// index updates between orgcmp processes; goroutines of one process are
// serialized by Store.mu before they get here.
type indexLock struct {
	f *os.File
}

// acquireIndexLock takes the lock at path, waiting until it is free or ctx
// is done. A refresh blocked behind another process can thus be cancelled.
func acquireIndexLock(ctx context.Context, path string) (*indexLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open cache lock: %w", err)
	}

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &indexLock{f: f}, nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("lock cache index: %w", err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("wait for cache lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// release unlocks and closes the lock file. Releasing twice is a no-op.
func (l *indexLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	return errors.Join(syscall.Flock(int(f.Fd()), syscall.LOCK_UN), f.Close())
}
