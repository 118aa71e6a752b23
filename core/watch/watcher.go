package watch

import (
	"context"
	"fmt"
	"time"

	"MuseFM/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the playlists directory and triggers a rescan after
// changes settle. Bursts of filesystem events (a playlist being rewritten
// line by line, files copied in) collapse into a single rescan per
// debounce window.
type Watcher struct {
	root     string
	debounce time.Duration
	rescan   func(ctx context.Context)
}

// NewWatcher creates a watcher over the playlists root. rescan is invoked
// from the watcher's own goroutine.
func NewWatcher(root string, debounce time.Duration, rescan func(ctx context.Context)) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{root: root, debounce: debounce, rescan: rescan}
}

// Run blocks until ctx is cancelled, triggering rescans as the directory
// changes.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.root); err != nil {
		return fmt.Errorf("监听目录失败 %s: %w", w.root, err)
	}
	logger.Info("开始监听播放列表目录",
		logger.String("root", w.root),
		logger.Duration("debounce", w.debounce))

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("播放列表目录变更",
				logger.String("file", event.Name),
				logger.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件监听错误", logger.ErrorField(err))

		case <-timerC:
			timer = nil
			timerC = nil
			logger.Info("目录变更已稳定，触发自动扫描")
			w.rescan(ctx)
		}
	}
}
