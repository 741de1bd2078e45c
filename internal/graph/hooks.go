package graph

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status captures the lifecycle of one node invocation:
// idle -> running -> completed | failed, or idle -> skipped.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Event is passed to hook callbacks to describe node progress.
type Event struct {
	Node      string
	Status    Status
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// HookFunc is invoked for lifecycle notifications.
type HookFunc func(context.Context, Event)

// Hooks aggregates optional lifecycle callbacks.
type Hooks struct {
	OnStart   HookFunc
	OnSuccess HookFunc
	OnFailure HookFunc
	OnSkip    HookFunc
}

// Merge combines two hook sets, running the receiver first.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnStart:   chainHooks(h.OnStart, other.OnStart),
		OnSuccess: chainHooks(h.OnSuccess, other.OnSuccess),
		OnFailure: chainHooks(h.OnFailure, other.OnFailure),
		OnSkip:    chainHooks(h.OnSkip, other.OnSkip),
	}
}

func chainHooks(first, second HookFunc) HookFunc {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	default:
		return func(ctx context.Context, event Event) {
			first(ctx, event)
			second(ctx, event)
		}
	}
}

func (h Hooks) fire(ctx context.Context, event Event) {
	var fn HookFunc
	switch event.Status {
	case StatusRunning:
		fn = h.OnStart
	case StatusCompleted:
		fn = h.OnSuccess
	case StatusFailed:
		fn = h.OnFailure
	case StatusSkipped:
		fn = h.OnSkip
	}
	if fn != nil {
		fn(ctx, event)
	}
}

type hooksKey struct{}

// WithHooks attaches hooks to ctx, merged after any hooks already present.
func WithHooks(ctx context.Context, h Hooks) context.Context {
	return context.WithValue(ctx, hooksKey{}, hooksFrom(ctx).Merge(h))
}

func hooksFrom(ctx context.Context) Hooks {
	if h, ok := ctx.Value(hooksKey{}).(Hooks); ok {
		return h
	}
	return Hooks{}
}

// Report records the latest event of every node it observed. It is safe for
// concurrent use and can live across runs, which is how watch mode tracks task
// state between file changes.
type Report struct {
	mu     sync.RWMutex
	events map[string]Event
	runs   map[string]int
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		events: make(map[string]Event),
		runs:   make(map[string]int),
	}
}

// Hooks returns hooks that feed the report.
func (r *Report) Hooks() Hooks {
	record := func(_ context.Context, e Event) { r.record(e) }
	return Hooks{OnStart: record, OnSuccess: record, OnFailure: record, OnSkip: record}
}

func (r *Report) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.Node] = e
	if e.Status == StatusRunning {
		r.runs[e.Node]++
	}
}

// Status returns the last known status of a node, idle if never seen.
func (r *Report) Status(node string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.events[node]; ok {
		return e.Status
	}
	return StatusIdle
}

// Runs returns how many times a node started.
func (r *Report) Runs(node string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runs[node]
}

// Event returns the last event of a node.
func (r *Report) Event(node string) (Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[node]
	return e, ok
}

// Events returns the last event of every node, sorted by name.
func (r *Report) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// Failed returns the names of nodes whose last event is a failure.
func (r *Report) Failed() []string {
	var failed []string
	for _, e := range r.Events() {
		if e.Status == StatusFailed {
			failed = append(failed, e.Node)
		}
	}
	return failed
}
