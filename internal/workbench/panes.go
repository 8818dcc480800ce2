package workbench

import (
	"fmt"
	"sort"
	"sync"
)

// View is a framework-native view component rendered inside a pane.
type View struct {
	Kind     string // "header", "text", "list", "item", "button", "divider"
	Text     string
	Attrs    map[string]string
	Children []View
	OnClick  func()
}

// Header returns a header view.
func Header(text string) View { return View{Kind: "header", Text: text} }

// Text returns a paragraph view.
func Text(text string) View { return View{Kind: "text", Text: text} }

// List returns a list view of items.
func List(items ...View) View { return View{Kind: "list", Children: items} }

// Item returns a list item view.
func Item(text string, onClick func()) View { return View{Kind: "item", Text: text, OnClick: onClick} }

// Button returns a button view.
func Button(text string, onClick func()) View { return View{Kind: "button", Text: text, OnClick: onClick} }

// SidebarPane is a panel rendered in the sidebar.
type SidebarPane struct {
	ID    string
	Title string
	Views []View
}

// Sidebar is the sidebar service.
type Sidebar struct {
	mu      sync.RWMutex
	panes   []SidebarPane
	current string

	faults  *Faults
	changed func()
}

// Add adds a pane, replacing an existing pane with the same id.
func (s *Sidebar) Add(pane SidebarPane) error {
	if err := s.faults.check(OpSidebarAdd); err != nil {
		return err
	}

	s.mu.Lock()
	replaced := false
	for i, p := range s.panes {
		if p.ID == pane.ID {
			s.panes[i] = pane
			replaced = true
			break
		}
	}
	if !replaced {
		s.panes = append(s.panes, pane)
	}
	s.mu.Unlock()

	notify(s.changed)
	return nil
}

// SetCurrent shows the pane with id.
func (s *Sidebar) SetCurrent(id string) error {
	s.mu.Lock()
	found := false
	for _, p := range s.panes {
		if p.ID == id {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("sidebar %q: %w", id, ErrItemNotFound)
	}
	s.current = id
	s.mu.Unlock()

	notify(s.changed)
	return nil
}

// Remove drops the pane with id. Removing the shown pane leaves nothing shown.
func (s *Sidebar) Remove(id string) error {
	s.mu.Lock()
	idx := -1
	for i, p := range s.panes {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("sidebar %q: %w", id, ErrItemNotFound)
	}
	s.panes = append(s.panes[:idx], s.panes[idx+1:]...)
	if s.current == id {
		s.current = ""
	}
	s.mu.Unlock()

	notify(s.changed)
	return nil
}

// Current returns the shown pane.
func (s *Sidebar) Current() (SidebarPane, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.panes {
		if p.ID == s.current {
			return p, true
		}
	}
	return SidebarPane{}, false
}

// Panes returns every pane.
func (s *Sidebar) Panes() []SidebarPane {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SidebarPane, len(s.panes))
	copy(out, s.panes)
	return out
}

// StatusBarItem is a segment of the status bar.
type StatusBarItem struct {
	ID    string
	Text  string
	Title string
	Align string // "left" or "right"
	Sort  int
}

// StatusBar is the status-bar service.
type StatusBar struct {
	mu    sync.RWMutex
	items []StatusBarItem

	faults  *Faults
	changed func()
}

// Add appends an item.
func (s *StatusBar) Add(item StatusBarItem) error {
	if err := s.faults.check(OpStatusBarAdd); err != nil {
		return err
	}

	s.mu.Lock()
	for _, existing := range s.items {
		if existing.ID == item.ID {
			s.mu.Unlock()
			return fmt.Errorf("status bar %q: %w", item.ID, ErrDuplicateItem)
		}
	}
	s.items = append(s.items, item)
	s.mu.Unlock()

	notify(s.changed)
	return nil
}

// Update replaces the item with the same id.
func (s *StatusBar) Update(item StatusBarItem) error {
	s.mu.Lock()
	for i, existing := range s.items {
		if existing.ID == item.ID {
			s.items[i] = item
			s.mu.Unlock()
			notify(s.changed)
			return nil
		}
	}
	s.mu.Unlock()
	return fmt.Errorf("status bar %q: %w", item.ID, ErrItemNotFound)
}

// Remove deletes the item with id.
func (s *StatusBar) Remove(id string) error {
	s.mu.Lock()
	for i, existing := range s.items {
		if existing.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.mu.Unlock()
			notify(s.changed)
			return nil
		}
	}
	s.mu.Unlock()
	return fmt.Errorf("status bar %q: %w", id, ErrItemNotFound)
}

// Items returns the items ordered by Sort, then insertion.
func (s *StatusBar) Items() []StatusBarItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StatusBarItem, len(s.items))
	copy(out, s.items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sort < out[j].Sort })
	return out
}

// Get returns the item with id.
func (s *StatusBar) Get(id string) (StatusBarItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return StatusBarItem{}, false
}
