// Package watcher reports debounced batches of template file changes.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	weferrors "github.com/conneroisu/weft/pkg/errors"
	"github.com/conneroisu/weft/pkg/logging"
)

// FileWatcher watches directory trees and delivers debounced changes.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	dirs      []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
}

// ChangeEvent represents a file change.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Gone reports whether the file no longer exists at Path.
func (e ChangeEvent) Gone() bool {
	return e.Type == EventTypeDeleted || e.Type == EventTypeRenamed
}

// FileFilter reports whether changes to path are of interest.
type FileFilter func(path string) bool

// ChangeHandler receives a debounced batch, ordered by path.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// New creates a watcher that batches changes arriving within delay of each
// other.
func New(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, weferrors.NewIOError("creating file watcher", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &FileWatcher{
		watcher:   w,
		debouncer: NewDebouncer(delay),
		logger:    logger.WithComponent("watcher"),
		done:      make(chan struct{}),
	}, nil
}

// AddFilter adds a filter; a change is delivered only if every filter
// accepts its path.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddDirFilter adds a filter for directories; a rejected directory is not
// watched, and neither is anything below it.
func (fw *FileWatcher) AddDirFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.dirs = append(fw.dirs, filter)
}

// AddHandler adds a change handler.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath watches a single directory or file.
func (fw *FileWatcher) AddPath(path string) error {
	if err := fw.watcher.Add(filepath.Clean(path)); err != nil {
		return weferrors.NewIOError("watching "+path, err)
	}

	return nil
}

// AddRecursive watches root and every directory below it that the
// directory filters accept. Directories created later are added as they appear.
func (fw *FileWatcher) AddRecursive(root string) error {
	return filepath.WalkDir(filepath.Clean(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return weferrors.NewIOError("walking "+path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && !fw.acceptsDir(path) {
			return filepath.SkipDir
		}

		return fw.AddPath(path)
	})
}

// WatchList returns the watched paths.
func (fw *FileWatcher) WatchList() []string {
	list := fw.watcher.WatchList()
	sort.Strings(list)

	return list
}

// Start begins delivering events until ctx is cancelled or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.run(ctx, fw.done)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)

	return nil
}

// Stop releases the underlying watcher.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.debouncer.stop()
		err = fw.watcher.Close()
	})

	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if event.Has(fsnotify.Create) && fw.acceptsDir(event.Name) {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "Watching new directory failed", "path", event.Name)
			}
		}
		return
	}

	if !fw.accepts(event.Name) {
		return
	}

	change := ChangeEvent{Path: event.Name, Type: eventType(event.Op)}
	if statErr == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	} else if change.Type != EventTypeRenamed {
		change.Type = EventTypeDeleted
	}

	fw.debouncer.Add(change)
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func (fw *FileWatcher) accepts(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()

	return all(fw.filters, path)
}

func (fw *FileWatcher) acceptsDir(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()

	return all(fw.dirs, path)
}

func all(filters []FileFilter, path string) bool {
	for _, filter := range filters {
		if !filter(path) {
			return false
		}
	}

	return true
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case events := <-fw.debouncer.Output():
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler failed", "events", len(events))
				}
			}
		}
	}
}

// Debouncer groups rapid changes into one batch per quiet period. Within a
// batch only the last change to each path is kept.
type Debouncer struct {
	delay   time.Duration
	output  chan []ChangeEvent
	timer   *time.Timer
	pending map[string]ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		output:  make(chan []ChangeEvent, 10),
		pending: make(map[string]ChangeEvent),
	}
}

// Output delivers batches.
func (d *Debouncer) Output() <-chan []ChangeEvent { return d.output }

// Add records a change and restarts the quiet period.
func (d *Debouncer) Add(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if prev, ok := d.pending[event.Path]; ok && prev.Type == EventTypeCreated && event.Type == EventTypeModified {
		event.Type = EventTypeCreated
	}
	d.pending[event.Path] = event

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

// Flush delivers any pending changes immediately.
func (d *Debouncer) Flush() { d.flush() }

func (d *Debouncer) run(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-done:
	}
	d.stop()
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
	default:
		// Output full; the batch is dropped.
	}

	d.pending = make(map[string]ChangeEvent)
}

// TemplateFilter accepts files with one of exts, case-insensitively.
func TemplateFilter(exts ...string) FileFilter {
	return func(path string) bool {
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range exts {
			if ext == strings.ToLower(e) {
				return true
			}
		}
		return false
	}
}

// NoHiddenFilter rejects dotfiles and files in dot directories.
func NoHiddenFilter(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return false
		}
	}

	return true
}

// NoVendorFilter rejects vendor and node_modules trees.
func NoVendorFilter(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "vendor" || part == "node_modules" {
			return false
		}
	}

	return true
}

// ExcludeFilter rejects paths with an element matching any pattern.
func ExcludeFilter(patterns ...string) FileFilter {
	return func(path string) bool {
		for _, part := range strings.Split(filepath.ToSlash(path), "/") {
			for _, pattern := range patterns {
				if ok, _ := filepath.Match(pattern, part); ok {
					return false
				}
			}
		}
		return true
	}
}

// ForTemplates returns a watcher for the template tree under root. It
// reports files with one of exts, skips hidden and vendored directories
// and paths matching exclude, and tests every path relative to root.
func ForTemplates(root string, exts, exclude []string, delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	fw, err := New(delay, logger)
	if err != nil {
		return nil, err
	}

	excluded := ExcludeFilter(exclude...)
	fw.AddFilter(Relative(root, TemplateFilter(exts...)))
	fw.AddFilter(Relative(root, excluded))
	fw.AddFilter(Relative(root, NoHiddenFilter))
	fw.AddDirFilter(Relative(root, NoHiddenFilter))
	fw.AddDirFilter(Relative(root, NoVendorFilter))
	fw.AddDirFilter(Relative(root, excluded))

	return fw, nil
}

// Relative applies f to paths relative to root, so directories above root
// never trip a filter.
func Relative(root string, f FileFilter) FileFilter {
	return func(path string) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return f(path)
		}
		return f(rel)
	}
}
