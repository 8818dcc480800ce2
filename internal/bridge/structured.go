package bridge

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

// Structured places contributions through the workbench services.
type Structured struct {
	wb  *workbench.Workbench
	doc *dom.Document
}

// NewStructured creates a structured bridge. wb may be nil, in which case
// every call returns workbench.ErrUnavailable. doc receives hidden
// placeholders and may be nil.
func NewStructured(wb *workbench.Workbench, doc *dom.Document) *Structured {
	return &Structured{wb: wb, doc: doc}
}

// AddRibbonIcon registers an activity-bar item, a hidden placeholder element
// and a click listener that re-dispatches clicks on this item to onClick.
func (s *Structured) AddRibbonIcon(icon, title string, onClick func()) (*Handle, error) {
	if s == nil || s.wb == nil || s.wb.ActivityBar == nil {
		return nil, fmt.Errorf("activity bar: %w", workbench.ErrUnavailable)
	}

	id := "ribbon-" + uuid.NewString()
	item := workbench.ActivityBarItem{ID: id, Name: title, Icon: icon, Title: title}
	if err := s.wb.ActivityBar.Add(item); err != nil {
		return nil, err
	}

	unsubscribe := s.wb.ActivityBar.OnClick(func(clicked string) {
		if clicked == id && onClick != nil {
			onClick()
		}
	})

	h := &Handle{ID: id, Via: ViaStructured}
	h.Element = s.placeholder(id, title, onClick)
	h.setText = func(text string) error {
		if s.doc != nil && h.Element != nil {
			s.doc.SetAttr(h.Element, "aria-label", text)
		}
		return nil
	}
	h.remove = func() error {
		unsubscribe()
		err := s.wb.ActivityBar.Remove(id)
		if s.doc != nil && h.Element != nil {
			_ = s.doc.Remove(h.Element)
		}
		return err
	}
	return h, nil
}

// AddStatusBarItem registers a status-bar item.
func (s *Structured) AddStatusBarItem(text string) (*Handle, error) {
	if s == nil || s.wb == nil || s.wb.StatusBar == nil {
		return nil, fmt.Errorf("status bar: %w", workbench.ErrUnavailable)
	}

	id := "status-" + uuid.NewString()
	if err := s.wb.StatusBar.Add(workbench.StatusBarItem{ID: id, Text: text, Align: "left"}); err != nil {
		return nil, err
	}

	h := &Handle{ID: id, Via: ViaStructured}
	h.Element = s.placeholder(id, text, nil)
	h.setText = func(text string) error {
		item, ok := s.wb.StatusBar.Get(id)
		if !ok {
			return fmt.Errorf("status bar %q: %w", id, workbench.ErrItemNotFound)
		}
		item.Text = text
		return s.wb.StatusBar.Update(item)
	}
	h.remove = func() error {
		err := s.wb.StatusBar.Remove(id)
		if s.doc != nil && h.Element != nil {
			_ = s.doc.Remove(h.Element)
		}
		if errors.Is(err, workbench.ErrItemNotFound) {
			return nil
		}
		return err
	}
	return h, nil
}

// placeholder creates a hidden element for callers that expect a DOM handle.
// A click dispatched on it reaches onClick as well.
func (s *Structured) placeholder(id, label string, onClick func()) *html.Node {
	if s.doc == nil {
		return nil
	}
	el := s.doc.CreateElement("div", map[string]string{
		"id":                id,
		"class":             "plugin-placeholder",
		"style":             "display:none",
		"aria-label":        label,
		"data-contribution": id,
	})
	s.doc.Append(s.doc.Body(), el)
	if onClick != nil {
		s.doc.AddEventListener(el, "click", func(dom.Event) { onClick() })
	}
	return el
}

// ShowPanel adds pane to the sidebar and makes it current. Removing the
// handle drops the pane.
func (s *Structured) ShowPanel(pane workbench.SidebarPane) (*Handle, error) {
	if s == nil || s.wb == nil || s.wb.Sidebar == nil {
		return nil, fmt.Errorf("sidebar: %w", workbench.ErrUnavailable)
	}
	if err := s.wb.Sidebar.Add(pane); err != nil {
		return nil, err
	}
	if err := s.wb.Sidebar.SetCurrent(pane.ID); err != nil {
		return nil, err
	}

	h := &Handle{ID: pane.ID, Via: ViaStructured}
	h.setText = func(text string) error {
		for _, p := range s.wb.Sidebar.Panes() {
			if p.ID == pane.ID {
				p.Title = text
				return s.wb.Sidebar.Add(p)
			}
		}
		return fmt.Errorf("sidebar %q: %w", pane.ID, workbench.ErrItemNotFound)
	}
	h.remove = func() error {
		err := s.wb.Sidebar.Remove(pane.ID)
		if errors.Is(err, workbench.ErrItemNotFound) {
			return nil
		}
		return err
	}
	return h, nil
}
