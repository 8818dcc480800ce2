// Package workbench models the host UI framework the plugins contribute to:
// activity bar, sidebar, status bar, editor, notifications, layout and the
// auxiliary bar. Each service is safe for concurrent use.
//
// A nil service means the framework does not provide it; callers that
// bridge into the workbench are expected to handle that case. Faults lets
// individual operations fail on demand.
package workbench

import (
	"errors"
	"fmt"
	"sync"
)

// Workbench errors.
var (
	// ErrDuplicateItem is returned when an item id is added twice.
	ErrDuplicateItem = errors.New("workbench: item already exists")

	// ErrItemNotFound is returned when an operation names an unknown item.
	ErrItemNotFound = errors.New("workbench: item not found")

	// ErrUnavailable is returned by bridges when a service is missing.
	ErrUnavailable = errors.New("workbench: service unavailable")
)

// Operation names accepted by Faults.
const (
	OpActivityBarAdd  = "activityBar.add"
	OpSidebarAdd      = "sidebar.add"
	OpStatusBarAdd    = "statusBar.add"
	OpEditorOpen      = "editor.open"
	OpNotification    = "notification.open"
	OpAuxiliaryBarAdd = "auxiliaryBar.add"
)

// Workbench aggregates the framework services.
type Workbench struct {
	ActivityBar  *ActivityBar
	Sidebar      *Sidebar
	StatusBar    *StatusBar
	Editor       *Editor
	Notification *Notifications
	Layout       *Layout
	AuxiliaryBar *AuxiliaryBar

	Faults *Faults

	mu       sync.Mutex
	watchers []func()
}

// New creates a workbench with every service available.
func New() *Workbench {
	wb := &Workbench{Faults: NewFaults()}
	wb.ActivityBar = &ActivityBar{faults: wb.Faults, changed: wb.changed}
	wb.Sidebar = &Sidebar{faults: wb.Faults, changed: wb.changed}
	wb.StatusBar = &StatusBar{faults: wb.Faults, changed: wb.changed}
	wb.Editor = &Editor{faults: wb.Faults, changed: wb.changed}
	wb.Notification = &Notifications{faults: wb.Faults, changed: wb.changed}
	wb.Layout = &Layout{changed: wb.changed}
	wb.AuxiliaryBar = &AuxiliaryBar{faults: wb.Faults, changed: wb.changed}
	return wb
}

// OnChange registers fn to run after any service mutates its state.
func (wb *Workbench) OnChange(fn func()) {
	wb.mu.Lock()
	wb.watchers = append(wb.watchers, fn)
	wb.mu.Unlock()
}

func (wb *Workbench) changed() {
	wb.mu.Lock()
	watchers := make([]func(), len(wb.watchers))
	copy(watchers, wb.watchers)
	wb.mu.Unlock()

	for _, fn := range watchers {
		fn()
	}
}

// Faults makes selected workbench operations fail.
type Faults struct {
	mu      sync.RWMutex
	failing map[string]error
}

// NewFaults creates an empty fault set.
func NewFaults() *Faults {
	return &Faults{failing: make(map[string]error)}
}

// Fail makes op return err until cleared.
func (f *Faults) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[op] = err
}

// Clear removes the fault for op.
func (f *Faults) Clear(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failing, op)
}

func (f *Faults) check(op string) error {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err, ok := f.failing[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func notify(changed func()) {
	if changed != nil {
		changed()
	}
}
