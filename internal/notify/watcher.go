package notify

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Handler receives the current notice after every change, or nil when the
// notice was cleared or became unreadable.
type Handler func(*Notice)

// Watcher calls a Handler whenever the channel's file changes identity.
type Watcher struct {
	ch      *Channel
	handler Handler
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	lastID  string
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Watch starts watching the channel and immediately delivers the current
// notice, if any. Stop the watcher to release it.
func (c *Channel) Watch(ctx context.Context, h Handler) (*Watcher, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "notify: create state dir")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "notify: create watcher")
	}
	if err := fw.Add(c.dir); err != nil {
		fw.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "notify: watch %s", c.dir)
	}

	w := &Watcher{
		ch:      c,
		handler: h,
		watcher: fw,
		running: true,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	w.deliver()
	go w.run(ctx)
	return w, nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.ch.log().Warn("notify: close watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	target := filepath.Clean(w.ch.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.deliver()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.ch.log().Warn("notify: watcher error", zap.Error(err))
		}
	}
}

// deliver reads the channel and calls the handler when the identity
// differs from the last delivery.
func (w *Watcher) deliver() {
	n := w.ch.Read()
	id := ""
	if n != nil {
		id = n.ID
	}

	w.mu.Lock()
	if id == w.lastID {
		w.mu.Unlock()
		return
	}
	w.lastID = id
	w.mu.Unlock()

	w.handler(n)
}
