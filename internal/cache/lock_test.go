package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestIndexLock_ExcludesSecondHolder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), lockFileName)
	first, err := acquireIndexLock(context.Background(), path)
	if err != nil {
		t.Fatalf("acquireIndexLock() error = %v", err)
	}

	acquired := make(chan *indexLock)
	go func() {
		second, err := acquireIndexLock(context.Background(), path)
		if err != nil {
			t.Errorf("second acquireIndexLock() error = %v", err)
			close(acquired)
			return
		}
		acquired <- second
	}()

	select {
	case <-acquired:
		t.Fatal("second holder got the lock while the first still holds it")
	case <-time.After(5 * lockRetryInterval):
	}

	if err := first.release(); err != nil {
		t.Fatalf("release() error = %v", err)
	}

	select {
	case second := <-acquired:
		if second != nil {
			_ = second.release()
		}
	case <-time.After(time.Second):
		t.Fatal("second holder did not get the lock after release")
	}
}

func TestIndexLock_CancelWhileWaiting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), lockFileName)
	held, err := acquireIndexLock(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer held.release()

	ctx, cancel := context.WithTimeout(context.Background(), 3*lockRetryInterval)
	defer cancel()

	if _, err := acquireIndexLock(ctx, path); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("acquireIndexLock() error = %v, want DeadlineExceeded", err)
	}
}

func TestIndexLock_ReleaseTwice(t *testing.T) {
	t.Parallel()

	l, err := acquireIndexLock(context.Background(), filepath.Join(t.TempDir(), lockFileName))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.release(); err != nil {
		t.Fatalf("release() error = %v", err)
	}
	if err := l.release(); err != nil {
		t.Errorf("second release() error = %v", err)
	}

	var never *indexLock
	if err := never.release(); err != nil {
		t.Errorf("release() on nil lock error = %v", err)
	}
}

func TestIndexLock_MissingDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", lockFileName)
	if _, err := acquireIndexLock(context.Background(), path); err == nil {
		t.Error("acquireIndexLock() in missing dir succeeded")
	}
}
