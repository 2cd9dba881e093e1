package credstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nonfou/mpayctl/internal/tokenfile"
)

const (
	watchErrInitBackoff = 1 * time.Second
	watchErrMaxBackoff  = 30 * time.Second
	watchErrBackoffMult = 2
)

// Watch follows the token file at path and reloads the store whenever
// another process logs in, refreshes, or logs out. The watch is registered
// before Watch returns; events are processed in a goroutine until ctx is
// done. The returned channel is closed when that goroutine exits.
//
// The parent directory is watched rather than the file because token
// writes replace the file by rename.
func (s *Store) Watch(ctx context.Context, path string) (<-chan struct{}, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, tokenfile.DirPerms); err != nil {
		return nil, fmt.Errorf("credstore: creating token directory %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("credstore: creating watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("credstore: watching %s: %w", dir, err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		defer watcher.Close()

		s.watchLoop(ctx, watcher, filepath.Clean(path))
	}()

	return done, nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(ev.Name) != path {
				continue
			}

			// Mode changes do not alter the credential.
			if ev.Op == fsnotify.Chmod {
				continue
			}

			if _, err := s.Reload(ctx); err != nil {
				// A half-written file shows up as a decode error; the
				// rename that completes it fires another event.
				s.logger.Debug("reload after token file event failed",
					slog.String("op", ev.Op.String()),
					slog.String("error", err.Error()),
				)
			}

			errBackoff = watchErrInitBackoff

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return
			}

			s.logger.Warn("token file watcher error",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", errBackoff),
			)

			timer := time.NewTimer(errBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			errBackoff *= watchErrBackoffMult
			if errBackoff > watchErrMaxBackoff {
				errBackoff = watchErrMaxBackoff
			}
		}
	}
}
