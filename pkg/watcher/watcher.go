package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ritzau/mfa-dashboard/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	// ChangeTypeWritten means the file exists once a burst of events settles
	ChangeTypeWritten ChangeType = iota
	// ChangeTypeRemoved means the file is gone once the burst settles
	ChangeTypeRemoved
)

func (c ChangeType) String() string {
	switch c {
	case ChangeTypeWritten:
		return "written"
	case ChangeTypeRemoved:
		return "removed"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow groups bursts of raw fsnotify events into one ChangeEvent
const batchWindow = 100 * time.Millisecond

// FileWatcher watches a single workbook file.
// The parent directory is watched, since spreadsheet applications replace the file on save.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	events  chan ChangeEvent
	once    sync.Once
}

// NewFileWatcher creates a watcher for the file at path
func NewFileWatcher(path string) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		path:    abs,
		events:  make(chan ChangeEvent, 16),
	}, nil
}

// Path returns the absolute path being watched
func (fw *FileWatcher) Path() string {
	return fw.path
}

// Start begins watching; events stop when ctx is cancelled
func (fw *FileWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		fw.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logging.Info("watching workbook", "path", fw.path)

	go fw.processEvents(ctx)
	return nil
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	var paths []string

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	// Saves often rename the old file aside and create a new one, so the raw op order
	// says little. Whether the file exists once the burst settles decides the type.
	flush := func() {
		if len(paths) == 0 {
			return
		}
		fw.emit(ctx, ChangeEvent{Type: fw.settledType(), Paths: paths, Timestamp: time.Now()})
		paths = nil
	}

	defer close(fw.events)
	defer fw.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}

			logging.Trace("workbook event", "op", event.Op.String(), "path", event.Name)

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			paths = append(paths, event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// settledType reports whether the watched file is present now
func (fw *FileWatcher) settledType() ChangeType {
	if _, err := os.Stat(fw.path); err != nil {
		return ChangeTypeRemoved
	}
	return ChangeTypeWritten
}

func (fw *FileWatcher) emit(ctx context.Context, ev ChangeEvent) {
	select {
	case fw.events <- ev:
	case <-ctx.Done():
	}
}

// Events returns the channel of change events; it is closed when the watcher stops
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop releases the underlying watcher; a started watcher then closes Events
func (fw *FileWatcher) Stop() error {
	var err error
	fw.once.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}
