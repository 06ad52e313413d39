// Package registry tracks the templates a scan discovered, keyed by name.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/weft/pkg/weft"
)

// TemplateRegistry manages all discovered templates.
type TemplateRegistry struct {
	entries  map[string]*Entry
	mutex    sync.RWMutex
	watchers []chan Event
}

// Entry holds a discovered template. Template is nil when compilation
// failed, in which case Err says why.
type Entry struct {
	Name     string
	Path     string
	Hash     string
	Size     int64
	ModTime  time.Time
	Template *weft.Template
	Err      error
}

// OK reports whether the entry compiled.
func (e *Entry) OK() bool { return e.Err == nil && e.Template != nil }

// Event represents a change in the registry.
type Event struct {
	Type      EventType
	Entry     *Entry
	Timestamp time.Time
}

// EventType represents the type of registry event.
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
	EventTypeFailed
)

func (t EventType) String() string {
	switch t {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	case EventTypeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// watcherBuffer is the capacity of each Watch channel. Events are dropped
// for a watcher whose buffer is full.
const watcherBuffer = 100

// New creates an empty registry.
func New() *TemplateRegistry {
	return &TemplateRegistry{
		entries: make(map[string]*Entry),
	}
}

// Register adds or replaces the entry with e.Name. A failed entry produces
// EventTypeFailed.
func (r *TemplateRegistry) Register(e *Entry) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if _, exists := r.entries[e.Name]; exists {
		eventType = EventTypeUpdated
	}
	if e.Err != nil {
		eventType = EventTypeFailed
	}

	r.entries[e.Name] = e
	r.notify(Event{Type: eventType, Entry: e, Timestamp: time.Now()})
}

// Get retrieves an entry by name.
func (r *TemplateRegistry) Get(name string) (*Entry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, exists := r.entries[name]
	return e, exists
}

// GetByPath retrieves the entry for a file path.
func (r *TemplateRegistry) GetByPath(path string) (*Entry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, e := range r.entries {
		if e.Path == path {
			return e, true
		}
	}

	return nil, false
}

// GetAll returns every entry ordered by name.
func (r *TemplateRegistry) GetAll() []*Entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result
}

// Remove deletes the entry with name, if any.
func (r *TemplateRegistry) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, exists := r.entries[name]
	if !exists {
		return
	}

	delete(r.entries, name)
	r.notify(Event{Type: EventTypeRemoved, Entry: e, Timestamp: time.Now()})
}

// Count returns the number of registered templates.
func (r *TemplateRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.entries)
}

// Failed returns the entries that did not compile, ordered by name.
func (r *TemplateRegistry) Failed() []*Entry {
	var failed []*Entry
	for _, e := range r.GetAll() {
		if !e.OK() {
			failed = append(failed, e)
		}
	}

	return failed
}

// Watch returns a channel that receives registry events.
func (r *TemplateRegistry) Watch() <-chan Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan Event, watcherBuffer)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (r *TemplateRegistry) UnWatch(ch <-chan Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, w := range r.watchers {
		if w == ch {
			close(w)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// notify must be called with the lock held.
func (r *TemplateRegistry) notify(event Event) {
	for _, w := range r.watchers {
		select {
		case w <- event:
		default:
		}
	}
}
