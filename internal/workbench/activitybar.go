package workbench

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/ideshell/internal/event"
)

// ActivityBarItem is an entry in the vertical icon strip.
type ActivityBarItem struct {
	ID     string
	Name   string
	Icon   string
	Title  string
	Sort   int
	Hidden bool
}

// ClickFunc receives the id of a clicked activity-bar item.
type ClickFunc func(id string)

// ActivityBar is the activity-bar service.
type ActivityBar struct {
	mu       sync.RWMutex
	items    []ActivityBarItem
	handlers map[int]ClickFunc
	nextID   int
	selected string

	faults  *Faults
	changed func()
}

// Add appends an item.
func (a *ActivityBar) Add(item ActivityBarItem) error {
	if err := a.faults.check(OpActivityBarAdd); err != nil {
		return err
	}

	a.mu.Lock()
	for _, existing := range a.items {
		if existing.ID == item.ID {
			a.mu.Unlock()
			return fmt.Errorf("activity bar %q: %w", item.ID, ErrDuplicateItem)
		}
	}
	a.items = append(a.items, item)
	a.mu.Unlock()

	notify(a.changed)
	return nil
}

// Remove deletes an item.
func (a *ActivityBar) Remove(id string) error {
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
		return fmt.Errorf("activity bar %q: %w", id, ErrItemNotFound)
	}
	a.items = append(a.items[:idx], a.items[idx+1:]...)
	if a.selected == id {
		a.selected = ""
	}
	a.mu.Unlock()

	notify(a.changed)
	return nil
}

// OnClick registers fn for clicks on any item. It returns a function that
// removes the registration.
func (a *ActivityBar) OnClick(fn ClickFunc) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handlers == nil {
		a.handlers = make(map[int]ClickFunc)
	}
	id := a.nextID
	a.nextID++
	a.handlers[id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.handlers, id)
	}
}

// Click selects the item and notifies every click handler in registration
// order. A failing handler does not stop the others.
func (a *ActivityBar) Click(id string) error {
	a.mu.Lock()
	found := false
	for _, item := range a.items {
		if item.ID == id {
			found = true
			break
		}
	}
	if !found {
		a.mu.Unlock()
		return fmt.Errorf("activity bar %q: %w", id, ErrItemNotFound)
	}
	a.selected = id

	keys := make([]int, 0, len(a.handlers))
	for k := range a.handlers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	handlers := make([]ClickFunc, 0, len(keys))
	for _, k := range keys {
		handlers = append(handlers, a.handlers[k])
	}
	a.mu.Unlock()

	for _, h := range handlers {
		h := h
		_ = event.Dispatch(func(...any) error {
			h(id)
			return nil
		})
	}
	notify(a.changed)
	return nil
}

// Selected returns the id of the last clicked item.
func (a *ActivityBar) Selected() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selected
}

// Items returns the visible items ordered by Sort, then insertion.
func (a *ActivityBar) Items() []ActivityBarItem {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]ActivityBarItem, 0, len(a.items))
	for _, item := range a.items {
		if !item.Hidden {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sort < out[j].Sort })
	return out
}

// Has reports whether an item with id exists.
func (a *ActivityBar) Has(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, item := range a.items {
		if item.ID == id {
			return true
		}
	}
	return false
}
