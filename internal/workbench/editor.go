package workbench

import (
	"fmt"
	"sync"
)

// EditorTab is a document open in the editor area.
type EditorTab struct {
	ID       string
	Name     string
	Language string
	Value    string
}

// EditorState is a snapshot of the editor area.
type EditorState struct {
	Current string
	Tabs    []EditorTab
}

// Editor is the editor service.
type Editor struct {
	mu      sync.RWMutex
	tabs    []EditorTab
	current string

	faults  *Faults
	changed func()
}

// Open opens tab, replacing an already-open tab with the same id, and makes it current.
func (e *Editor) Open(tab EditorTab) error {
	if err := e.faults.check(OpEditorOpen); err != nil {
		return err
	}

	e.mu.Lock()
	replaced := false
	for i, t := range e.tabs {
		if t.ID == tab.ID {
			e.tabs[i] = tab
			replaced = true
			break
		}
	}
	if !replaced {
		e.tabs = append(e.tabs, tab)
	}
	e.current = tab.ID
	e.mu.Unlock()

	notify(e.changed)
	return nil
}

// Close closes the tab with id.
func (e *Editor) Close(id string) error {
	e.mu.Lock()
	for i, t := range e.tabs {
		if t.ID == id {
			e.tabs = append(e.tabs[:i], e.tabs[i+1:]...)
			if e.current == id {
				e.current = ""
				if len(e.tabs) > 0 {
					e.current = e.tabs[len(e.tabs)-1].ID
				}
			}
			e.mu.Unlock()
			notify(e.changed)
			return nil
		}
	}
	e.mu.Unlock()
	return fmt.Errorf("editor tab %q: %w", id, ErrItemNotFound)
}

// SetCurrent makes an open tab current.
func (e *Editor) SetCurrent(id string) error {
	e.mu.Lock()
	for _, t := range e.tabs {
		if t.ID == id {
			e.current = id
			e.mu.Unlock()
			notify(e.changed)
			return nil
		}
	}
	e.mu.Unlock()
	return fmt.Errorf("editor tab %q: %w", id, ErrItemNotFound)
}

// State returns a snapshot of the open tabs.
func (e *Editor) State() EditorState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tabs := make([]EditorTab, len(e.tabs))
	copy(tabs, e.tabs)
	return EditorState{Current: e.current, Tabs: tabs}
}

// CurrentTab returns the current tab.
func (e *Editor) CurrentTab() (EditorTab, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, t := range e.tabs {
		if t.ID == e.current {
			return t, true
		}
	}
	return EditorTab{}, false
}
