// Package errors wraps application errors with the component/category
// metadata the rest of the repository uses for structured logging and
// for routing a failure to the right handling policy (retry once, skip
// item and continue, fatal at startup, ...).
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"time"
)

// Re-export the standard library's constructors so callers only need one
// import for both plain and enhanced errors.
var (
	New    = stderrors.New
	Is     = stderrors.Is
	As     = stderrors.As
	Unwrap = stderrors.Unwrap
	Join   = stderrors.Join
)

// ErrorCategory classifies a failure for handling-policy purposes. The
// set mirrors the error kinds in this repository's error handling design:
// transient-network, upstream-schema, persistence, archive-host,
// configuration and scheduler-dispatch failures each have a distinct
// recovery policy.
type ErrorCategory string

const (
	CategoryUnknown        ErrorCategory = "unknown"
	CategoryNetwork        ErrorCategory = "network"         // transient-network: retry once at pipeline level
	CategoryUpstreamSchema ErrorCategory = "upstream-schema"  // unexpected HTML/JSON shape: skip item
	CategoryPersistence    ErrorCategory = "persistence"      // store write failed after a successful send
	CategoryArchiveHost    ErrorCategory = "archive-host"     // archival page upload failed
	CategoryConfiguration  ErrorCategory = "configuration"    // fatal at startup
	CategoryScheduler      ErrorCategory = "scheduler-dispatch"
	CategoryChat           ErrorCategory = "chat"
)

// Component names the subsystem that raised the error. RegisterComponent
// lets a package claim a name once at init time; Build falls back to
// ComponentUnknown when a caller never names one explicitly.
type Component string

const ComponentUnknown Component = "unknown"

var (
	componentRegistry   = map[string]Component{}
	componentRegistryMu sync.RWMutex
)

// RegisterComponent records a name -> Component association in the
// registry. Registration is informational bookkeeping only: Build never
// consults the registry, so a call site that omits .Component(...) gets
// ComponentUnknown. This package's init() registers the repository's
// component names.
func RegisterComponent(name string, component Component) {
	componentRegistryMu.Lock()
	defer componentRegistryMu.Unlock()
	componentRegistry[name] = component
}

func init() {
	RegisterComponent("resource", "resource")
	RegisterComponent("fuse", "fuse")
	RegisterComponent("reconcile", "reconcile")
	RegisterComponent("pipeline", "pipeline")
	RegisterComponent("scheduler", "scheduler")
	RegisterComponent("store", "store")
	RegisterComponent("chat", "chat")
	RegisterComponent("archive", "archive")
	RegisterComponent("htmlconv", "htmlconv")
	RegisterComponent("tagger", "tagger")
	RegisterComponent("conf", "conf")
}

// EnhancedError wraps an underlying error with the component/category/
// context metadata needed to decide how to handle it and how to log it.
type EnhancedError struct {
	err       error
	component Component
	category  ErrorCategory
	context   map[string]any
	timestamp time.Time

	mu       sync.RWMutex
	reported bool
}

func (e *EnhancedError) Error() string {
	if e.component != "" && e.component != ComponentUnknown {
		return fmt.Sprintf("[%s/%s] %v", e.component, e.category, e.err)
	}
	return e.err.Error()
}

func (e *EnhancedError) Unwrap() error { return e.err }

func (e *EnhancedError) GetComponent() Component    { return e.component }
func (e *EnhancedError) GetCategory() ErrorCategory { return e.category }
func (e *EnhancedError) GetContext() map[string]any { return e.context }
func (e *EnhancedError) GetTimestamp() time.Time    { return e.timestamp }
func (e *EnhancedError) GetError() error            { return e.err }

func (e *EnhancedError) MarkReported() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reported = true
}

func (e *EnhancedError) IsReported() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reported
}

// ErrorBuilder constructs an EnhancedError through a fluent chain. Build
// is the only method that allocates the final error.
type ErrorBuilder struct {
	err       error
	component Component
	category  ErrorCategory
	context   map[string]any
}

// NewBuilder starts a builder chain for err. Named NewBuilder (not New)
// to avoid colliding with the re-exported stdlib errors.New above.
func NewBuilder(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err, category: CategoryUnknown}
}

// Newf starts a builder chain for a formatted error message.
func Newf(format string, args ...any) *ErrorBuilder {
	return NewBuilder(fmt.Errorf(format, args...))
}

func (b *ErrorBuilder) Component(c Component) *ErrorBuilder {
	b.component = c
	return b
}

func (b *ErrorBuilder) Category(c ErrorCategory) *ErrorBuilder {
	b.category = c
	return b
}

func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalizes the chain into an EnhancedError.
func (b *ErrorBuilder) Build() *EnhancedError {
	component := b.component
	if component == "" {
		component = ComponentUnknown
	}
	return &EnhancedError{
		err:       b.err,
		component: component,
		category:  b.category,
		context:   b.context,
		timestamp: time.Now(),
	}
}
