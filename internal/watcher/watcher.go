// Package watcher turns filesystem notifications into debounced batches and
// routes each batch to the glob subscriptions it touches.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/weft/internal/logging"
)

// FileWatcher watches directories and batches rapid changes together.
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	debouncer     *Debouncer
	filters       []FileFilter
	handlers      []ChangeHandler
	subscriptions []subscription
	recursive     map[string]bool
	pending       map[string]bool
	logger        logging.Logger
	mutex         sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
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

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// ChangeHandler handles file change events
type ChangeHandler func(events []ChangeEvent) error

type subscription struct {
	pattern string
	handler ChangeHandler
}

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer that emits a batch once no event arrived
// for delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 256),
		output:  make(chan []ChangeEvent, 64),
		pending: make([]ChangeEvent, 0),
	}
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		recursive: make(map[string]bool),
		pending:   make(map[string]bool),
		logger:    logger.WithComponent("watcher"),
	}

	return fw, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a handler that receives every batch.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// Subscribe registers handler for changes whose path matches pattern. Each
// batch calls the handler at most once, with only the matching events.
func (fw *FileWatcher) Subscribe(pattern string, handler ChangeHandler) error {
	pattern = path.Clean(filepath.ToSlash(pattern))
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid watch pattern %q", pattern)
	}

	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.subscriptions = append(fw.subscriptions, subscription{pattern: pattern, handler: handler})
	return nil
}

// AddRecursive watches root and every directory beneath it. Directories
// created under root later are picked up as they appear.
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := fw.validatePath(root)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}

	if err := fw.addTree(cleanRoot); err != nil {
		return err
	}

	fw.mutex.Lock()
	fw.recursive[cleanRoot] = true
	fw.mutex.Unlock()
	return nil
}

func (fw *FileWatcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// WatchPattern watches the static base directory of a glob, recursively.
// A base that does not exist yet is remembered and its nearest existing
// ancestor is watched, so the base is picked up once it is created.
func (fw *FileWatcher) WatchPattern(pattern string) error {
	base := PatternBase(pattern)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		if _, err := fw.validatePath(base); err != nil {
			return fmt.Errorf("invalid root path: %w", err)
		}
		fw.logger.Debug(context.Background(), "Watch root does not exist yet", "pattern", pattern, "root", base)
		fw.mutex.Lock()
		fw.pending[base] = true
		fw.mutex.Unlock()
		return fw.watchAncestor(base)
	}
	return fw.AddRecursive(base)
}

// watchAncestor watches the closest existing parent of a missing directory.
func (fw *FileWatcher) watchAncestor(missing string) error {
	dir := filepath.Dir(missing)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return fw.watcher.Add(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

// resolvePending promotes pending roots that now exist to recursive watches
// and moves the rest down to their new closest ancestor.
func (fw *FileWatcher) resolvePending() {
	fw.mutex.Lock()
	roots := make([]string, 0, len(fw.pending))
	for root := range fw.pending {
		roots = append(roots, root)
	}
	fw.mutex.Unlock()

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			if err := fw.watchAncestor(root); err != nil {
				fw.logger.Warn(context.Background(), err, "Cannot watch parent directory", "path", root)
			}
			continue
		}
		if err := fw.addTree(root); err != nil {
			fw.logger.Warn(context.Background(), err, "Cannot watch new directory", "path", root)
			continue
		}
		fw.mutex.Lock()
		delete(fw.pending, root)
		fw.recursive[root] = true
		fw.mutex.Unlock()
		fw.logger.Debug(context.Background(), "Watch root appeared", "root", root)
	}
}

// PatternBase returns the directory part of a glob before its first
// wildcard.
func PatternBase(pattern string) string {
	base, _ := doublestar.SplitPattern(path.Clean(filepath.ToSlash(pattern)))
	return filepath.FromSlash(base)
}

// validatePath validates and cleans a file path to prevent directory traversal
func (fw *FileWatcher) validatePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}

	if absPath != cwd && !strings.HasPrefix(absPath, cwd+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside current working directory", path)
	}

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("path contains directory traversal: %s", path)
	}

	return cleanPath, nil
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)

	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		fw.followNewDirectory(event.Name)
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	info, err := os.Stat(event.Name)
	var modTime time.Time
	var size int64

	if err == nil {
		if info.IsDir() {
			return
		}
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	fw.debouncer.Add(ChangeEvent{
		Type:    eventType,
		Path:    event.Name,
		ModTime: modTime,
		Size:    size,
	})
}

// followNewDirectory adds a freshly created directory when it lives under a
// recursively watched root.
func (fw *FileWatcher) followNewDirectory(name string) {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return
	}

	name = filepath.Clean(name)
	fw.mutex.RLock()
	var covered, awaited bool
	for root := range fw.recursive {
		if within(root, name) {
			covered = true
			break
		}
	}
	for root := range fw.pending {
		if within(name, root) {
			awaited = true
			break
		}
	}
	fw.mutex.RUnlock()

	if covered {
		if err := fw.addTree(name); err != nil {
			fw.logger.Warn(context.Background(), err, "Cannot watch new directory", "path", name)
		}
	}
	if awaited {
		fw.resolvePending()
	}
}

func within(root, name string) bool {
	return name == root || strings.HasPrefix(name, root+string(filepath.Separator))
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.dispatch(ctx, events)
		}
	}
}

// dispatch hands one batch to every handler and to each subscription it
// matches. Batches are dispatched one at a time, in arrival order.
func (fw *FileWatcher) dispatch(ctx context.Context, events []ChangeEvent) {
	fw.mutex.RLock()
	handlers := fw.handlers
	subs := fw.subscriptions
	fw.mutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(events); err != nil {
			fw.logger.Warn(ctx, err, "File watcher handler error")
		}
	}

	for _, sub := range subs {
		matched := matching(sub.pattern, events)
		if len(matched) == 0 {
			continue
		}
		if err := sub.handler(matched); err != nil {
			fw.logger.Warn(ctx, err, "Subscription handler error", "pattern", sub.pattern)
		}
	}
}

func matching(pattern string, events []ChangeEvent) []ChangeEvent {
	var out []ChangeEvent
	for _, e := range events {
		p := path.Clean(filepath.ToSlash(e.Path))
		if ok, _ := doublestar.Match(pattern, p); ok {
			out = append(out, e)
		}
	}
	return out
}

// Add queues an event for the next batch.
func (d *Debouncer) Add(event ChangeEvent) {
	d.events <- event
}

// Output returns the channel batches are delivered on.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.flush()
	})
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.pending) == 0 {
		d.mutex.Unlock()
		return
	}

	// Last event per path wins.
	eventMap := make(map[string]ChangeEvent)
	for _, event := range d.pending {
		eventMap[event.Path] = event
	}
	d.pending = d.pending[:0]
	d.mutex.Unlock()

	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	d.output <- events
}

// NoHiddenFilter rejects paths with a dot-prefixed segment, such as editor
// swap files and .git.
func NoHiddenFilter(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}
	return true
}

// NoBackupFilter rejects editor backup and temp files.
func NoBackupFilter(p string) bool {
	base := filepath.Base(p)
	return !strings.HasSuffix(base, "~") &&
		!strings.HasSuffix(base, ".swp") &&
		!strings.HasSuffix(base, ".tmp")
}
