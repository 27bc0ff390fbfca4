// Package inbox turns PDFs dropped into a directory into ingestion triggers.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pdfrag/internal/contextutil"
	"pdfrag/internal/service"
)

// DefaultSettle is how long a file must stay unchanged before it is ingested.
const DefaultSettle = 2 * time.Second

// Trigger publishes an ingestion trigger.
type Trigger interface {
	TriggerIngest(ctx context.Context, req service.IngestRequest) (service.IngestAck, error)
}

// ScannedFile is a PDF found under the watch directory.
type ScannedFile struct {
	RelPath string // Relative path from the watch root with forward slashes; used as source id
	AbsPath string
}

// Watcher triggers ingestion for every PDF under a directory, first for the
// files already there and then for files created or rewritten while it runs.
type Watcher struct {
	root     string
	triggers Trigger
	settle   time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for root.
func NewWatcher(root string, triggers Trigger, settle time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch dir %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to access watch dir %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir %s is not a directory", abs)
	}
	if settle < 0 {
		settle = 0
	}
	return &Watcher{
		root:     abs,
		triggers: triggers,
		settle:   settle,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Scan walks the watch directory and returns every PDF in it.
func (w *Watcher) Scan(ctx context.Context) ([]ScannedFile, error) {
	var files []ScannedFile
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != w.root && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isPDF(path) {
			return nil
		}
		file, err := w.scanned(path)
		if err != nil {
			return err
		}
		files = append(files, file)
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to scan %s: %w", w.root, err)
	}
	return files, nil
}

// Run triggers the existing files, then watches for new ones until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx).With("watch_dir", w.root)
	ctx = contextutil.WithLogger(ctx, logger)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}

	files, err := w.Scan(ctx)
	if err != nil {
		logger.WarnContext(ctx, "initial scan incomplete", "error", err)
	}
	for _, f := range files {
		w.trigger(ctx, f)
	}
	logger.InfoContext(ctx, "watching for documents", "existing", len(files))

	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !hidden(info.Name()) {
			if err := w.addTree(fsw, event.Name); err != nil {
				contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to watch new directory", "path", event.Name, "error", err)
			}
		}
		return
	}
	if !isPDF(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule triggers path once it has not changed for the settle period.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()

		file, err := w.scanned(path)
		if err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "skipping file", "path", path, "error", err)
			return
		}
		w.trigger(ctx, file)
	})
	w.pending[path] = t
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) trigger(ctx context.Context, f ScannedFile) {
	logger := contextutil.LoggerFromContext(ctx)
	ack, err := w.triggers.TriggerIngest(ctx, service.IngestRequest{PDFPath: f.AbsPath, SourceID: f.RelPath})
	if err != nil {
		logger.ErrorContext(ctx, "failed to trigger ingestion", "path", f.AbsPath, "error", err)
		return
	}
	logger.InfoContext(ctx, "ingestion triggered", "source_id", ack.SourceID, "event_id", ack.EventID)
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) scanned(path string) (ScannedFile, error) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return ScannedFile{}, fmt.Errorf("failed to compute relative path for %s: %w", path, err)
	}
	return ScannedFile{RelPath: filepath.ToSlash(rel), AbsPath: path}, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
