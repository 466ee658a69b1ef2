package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	lockPollInterval = 50 * time.Millisecond
	// locks older than this are considered abandoned by a crashed process
	lockStaleAfter = 5 * time.Minute
)

// acquireLock takes an exclusive lock file at path, waiting at most timeout.
// The returned function releases the lock.
func acquireLock(ctx context.Context, path string, timeout time.Duration) (func(), error) {
	deadline := time.Now().Add(timeout)

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			_ = f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			_ = os.Remove(path)
			continue
		}

		if !time.Now().Before(deadline) {
			return nil, ErrLockTimeout
		}
		if err := sleep(ctx, lockPollInterval); err != nil {
			return nil, err
		}
	}
}
