package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce lets editors finish their write-rename dance before the
// catalog is reloaded.
const watchDebounce = 150 * time.Millisecond

// WatchFile emits the path every time the file is written, created or
// renamed into place. The parent directory is watched because editors
// often replace the file instead of writing it. The channel closes when
// ctx is done.
func WatchFile(ctx context.Context, path string, logger *slog.Logger) (<-chan string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		defer watcher.Close()

		var timer <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					logger.Debug("catalog changed", "path", event.Name, "op", event.Op.String())
					timer = time.After(watchDebounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error", "err", err)
			case <-timer:
				timer = nil
				select {
				case out <- path:
				default:
				}
			}
		}
	}()
	return out, nil
}
