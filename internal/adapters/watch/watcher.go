// Package watch uploads documents dropped into a folder.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kirillkom/prashnly-client/internal/infrastructure/preflight"
)

// Uploader uploads one file and blocks until its processing settles.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

type UploaderFunc func(ctx context.Context, path string) error

func (f UploaderFunc) Upload(ctx context.Context, path string) error { return f(ctx, path) }

type Options struct {
	// Debounce is how long a file must stay quiet before it is uploaded.
	Debounce time.Duration
	// Extensions limits the files that are picked up. Empty means the
	// extensions the backend accepts.
	Extensions []string
}

// Watcher turns create and write events into uploads, one at a time.
type Watcher struct {
	fs       *fsnotify.Watcher
	dir      string
	uploader Uploader
	debounce time.Duration
	exts     map[string]struct{}

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending chan string
}

func New(dir string, uploader Uploader, opts Options) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 750 * time.Millisecond
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = preflight.Extensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	return &Watcher{
		fs:       fsw,
		dir:      dir,
		uploader: uploader,
		debounce: debounce,
		exts:     allowed,
		timers:   make(map[string]*time.Timer),
		pending:  make(chan string, 64),
	}, nil
}

// Run blocks until ctx ends or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.uploadLoop(ctx)
	}()

	slog.Info("watch_started", "dir", w.dir, "debounce", w.debounce.String())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			slog.Warn("watch_error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.wanted(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[event.Name]; ok {
		timer.Reset(w.debounce)
		return
	}
	path := event.Name
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.pending <- path:
		default:
			slog.Warn("watch_queue_full", "path", path)
		}
	})
}

func (w *Watcher) wanted(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	_, ok := w.exts[strings.ToLower(filepath.Ext(base))]
	return ok
}

func (w *Watcher) uploadLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.pending:
			if info, err := os.Stat(path); err != nil || info.IsDir() {
				continue
			}
			slog.Info("watch_upload", "path", path)
			if err := w.uploader.Upload(ctx, path); err != nil {
				slog.Warn("watch_upload_failed", "path", path, "error", err)
			}
		}
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	_ = w.fs.Close()
}
