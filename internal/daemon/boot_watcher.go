package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/careradius/internal/logfields"
)

const defaultBootDebounce = 500 * time.Millisecond

// BootWatcher signals device boot completion. Something outside the process
// (a boot script, a systemd unit) creates or touches the marker file; the
// watcher calls onBoot once per burst of events.
type BootWatcher struct {
	markerPath string
	onBoot     func()
	watcher    *fsnotify.Watcher
	debounce   time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	trigger  chan struct{}
	stopped  bool
}

// NewBootWatcher watches markerPath.
func NewBootWatcher(markerPath string, onBoot func()) (*BootWatcher, error) {
	absPath, err := filepath.Abs(markerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve boot marker path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &BootWatcher{
		markerPath: absPath,
		onBoot:     onBoot,
		watcher:    watcher,
		debounce:   defaultBootDebounce,
		stopChan:   make(chan struct{}),
		trigger:    make(chan struct{}, 1),
	}, nil
}

// Start watches the marker's directory; the marker itself may not exist yet.
func (bw *BootWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(bw.markerPath)
	if err := bw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch boot marker directory %s: %w", dir, err)
	}

	slog.Info("Starting boot marker watcher", logfields.Path(bw.markerPath))

	go bw.watchLoop(ctx)
	go bw.signalLoop(ctx)
	return nil
}

// Stop ends both loops and closes the fsnotify watcher. It is safe to call twice.
func (bw *BootWatcher) Stop() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.stopped {
		return nil
	}
	bw.stopped = true
	close(bw.stopChan)
	return bw.watcher.Close()
}

func (bw *BootWatcher) watchLoop(ctx context.Context) {
	marker := filepath.Base(bw.markerPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-bw.stopChan:
			return
		case event, ok := <-bw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != marker {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				slog.Debug("Boot marker changed", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				bw.signal()
			}
		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Boot marker watcher error", logfields.Error(err))
		}
	}
}

func (bw *BootWatcher) signalLoop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-bw.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-bw.trigger:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(bw.debounce, func() {
				slog.Info("Boot completed signal received", logfields.Path(bw.markerPath))
				bw.onBoot()
			})
		}
	}
}

func (bw *BootWatcher) signal() {
	select {
	case bw.trigger <- struct{}{}:
	default:
	}
}
