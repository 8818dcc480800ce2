package workbench

import (
	"fmt"
	"sync"
)

// NotificationLevel represents the severity of a notification.
type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationWarning NotificationLevel = "warning"
	NotificationError   NotificationLevel = "error"
)

// Notification is a toast shown to the user.
type Notification struct {
	ID      string
	Level   NotificationLevel
	Message string
}

// Notifications is the notification service.
type Notifications struct {
	mu    sync.RWMutex
	shown []Notification

	faults  *Faults
	changed func()
}

// Open shows a notification.
func (n *Notifications) Open(note Notification) error {
	if err := n.faults.check(OpNotification); err != nil {
		return err
	}
	if note.Level == "" {
		note.Level = NotificationInfo
	}

	n.mu.Lock()
	n.shown = append(n.shown, note)
	n.mu.Unlock()

	notify(n.changed)
	return nil
}

// List returns every notification shown so far.
func (n *Notifications) List() []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Notification, len(n.shown))
	copy(out, n.shown)
	return out
}

// Layout controls which workbench regions are visible.
type Layout struct {
	mu        sync.RWMutex
	auxiliary bool

	changed func()
}

// SetAuxiliaryBar shows or hides the auxiliary bar.
func (l *Layout) SetAuxiliaryBar(visible bool) {
	l.mu.Lock()
	l.auxiliary = visible
	l.mu.Unlock()
	notify(l.changed)
}

// AuxiliaryBarVisible reports whether the auxiliary bar is shown.
func (l *Layout) AuxiliaryBarVisible() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.auxiliary
}

// AuxiliaryItem is a tab in the auxiliary bar.
type AuxiliaryItem struct {
	ID    string
	Name  string
	Views []View
}

// AuxiliaryBar is the auxiliary-bar service.
type AuxiliaryBar struct {
	mu      sync.RWMutex
	items   []AuxiliaryItem
	current string

	faults  *Faults
	changed func()
}

// Add appends an item, replacing one with the same id.
func (a *AuxiliaryBar) Add(item AuxiliaryItem) error {
	if err := a.faults.check(OpAuxiliaryBarAdd); err != nil {
		return err
	}

	a.mu.Lock()
	replaced := false
	for i, existing := range a.items {
		if existing.ID == item.ID {
			a.items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		a.items = append(a.items, item)
	}
	a.mu.Unlock()

	notify(a.changed)
	return nil
}

// SetCurrent shows the item with id.
func (a *AuxiliaryBar) SetCurrent(id string) error {
	a.mu.Lock()
	for _, item := range a.items {
		if item.ID == id {
			a.current = id
			a.mu.Unlock()
			notify(a.changed)
			return nil
		}
	}
	a.mu.Unlock()
	return fmt.Errorf("auxiliary bar %q: %w", id, ErrItemNotFound)
}

// Remove drops the item with id. Removing the shown item leaves nothing shown.
func (a *AuxiliaryBar) Remove(id string) error {
	a.mu.Lock()
	idx := -1
	for i, item := range a.items {
		if item.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.mu.Unlock()
		return fmt.Errorf("auxiliary bar %q: %w", id, ErrItemNotFound)
	}
	a.items = append(a.items[:idx], a.items[idx+1:]...)
	if a.current == id {
		a.current = ""
	}
	a.mu.Unlock()

	notify(a.changed)
	return nil
}

// Current returns the id of the shown item.
func (a *AuxiliaryBar) Current() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Items returns every item.
func (a *AuxiliaryBar) Items() []AuxiliaryItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]AuxiliaryItem, len(a.items))
	copy(out, a.items)
	return out
}
