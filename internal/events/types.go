package events

import (
	"fmt"
	"time"
)

// Scope is what a source change touched: an asset category, the vendor
// directories or the templates.
type Scope string

const (
	ScopeImages    Scope = "images"
	ScopeScripts   Scope = "scripts"
	ScopeStyles    Scope = "styles"
	ScopeFonts     Scope = "fonts"
	ScopeVendor    Scope = "vendor"
	ScopeTemplates Scope = "templates"
)

// Op describes the filesystem operation behind a change.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// Event is implemented by every event published on the bus.
type Event interface {
	EventName() string
}

// SourceChanged is published by the watcher for every relevant file event.
type SourceChanged struct {
	Scope Scope
	Path  string
	Op    Op
	At    time.Time
}

// RebuildRequested is emitted by the rebuild coalescer once a burst of
// changes settled. Stages is empty when only a browser reload is needed.
type RebuildRequested struct {
	Scopes      []Scope
	Stages      []string
	Count       int
	Cause       string // "quiet", "max_delay", "after_running" or "scheduled"
	RequestedAt time.Time
}

// BuildCompleted is published by the daemon loop after each rebuild.
type BuildCompleted struct {
	BuildID  string
	Plan     string
	Stages   []string
	Duration time.Duration
	Err      error
	At       time.Time
}

// Succeeded reports whether the build finished without a fatal error.
func (e BuildCompleted) Succeeded() bool { return e.Err == nil }

func (e SourceChanged) EventName() string    { return "source_changed" }
func (e RebuildRequested) EventName() string { return "rebuild_requested" }
func (e BuildCompleted) EventName() string   { return "build_completed" }

// ReloadOnly reports whether the request needs a browser reload but no stage.
func (e RebuildRequested) ReloadOnly() bool { return len(e.Stages) == 0 }

func (e SourceChanged) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Op, e.Path, e.Scope)
}
