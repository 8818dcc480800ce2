package bridge

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

// DOM places contributions directly into the element tree, locating the
// target container by probing candidate selectors.
type DOM struct {
	doc         *dom.Document
	activityBar []string
	statusBar   []string
	sidebar     []string
}

// DOMOption configures a DOM bridge.
type DOMOption func(*DOM)

// WithActivityBarSelectors replaces the activity-bar container candidates.
func WithActivityBarSelectors(selectors ...string) DOMOption {
	return func(d *DOM) { d.activityBar = selectors }
}

// WithStatusBarSelectors replaces the status-bar container candidates.
func WithStatusBarSelectors(selectors ...string) DOMOption {
	return func(d *DOM) { d.statusBar = selectors }
}

// WithSidebarSelectors replaces the sidebar container candidates.
func WithSidebarSelectors(selectors ...string) DOMOption {
	return func(d *DOM) { d.sidebar = selectors }
}

// NewDOM creates a DOM bridge over doc.
func NewDOM(doc *dom.Document, opts ...DOMOption) *DOM {
	d := &DOM{
		doc:         doc,
		activityBar: dom.ActivityBarSelectors,
		statusBar:   dom.StatusBarSelectors,
		sidebar:     dom.SidebarSelectors,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddRibbonIcon inserts a list item into the activity-bar container with
// its own click and hover handlers.
func (d *DOM) AddRibbonIcon(icon, title string, onClick func()) (*Handle, error) {
	if d.doc == nil {
		return nil, errors.New("bridge: no document")
	}
	container, _, err := d.doc.Probe(d.activityBar...)
	if err != nil {
		return nil, fmt.Errorf("ribbon icon %q: %w", title, err)
	}

	id := "ribbon-" + uuid.NewString()
	el := d.doc.CreateElement("li", map[string]string{
		"id":        id,
		"class":     "plugin-ribbon-icon",
		"title":     title,
		"data-icon": icon,
	})
	d.doc.SetText(el, icon)
	d.doc.Append(container, el)

	if onClick != nil {
		d.doc.AddEventListener(el, "click", func(dom.Event) { onClick() })
	}
	d.doc.AddEventListener(el, "mouseenter", func(dom.Event) {
		d.doc.SetAttr(el, "class", "plugin-ribbon-icon hover")
	})
	d.doc.AddEventListener(el, "mouseleave", func(dom.Event) {
		d.doc.SetAttr(el, "class", "plugin-ribbon-icon")
	})

	h := &Handle{ID: id, Element: el, Via: ViaDOM}
	h.setText = func(text string) error {
		d.doc.SetAttr(el, "title", text)
		return nil
	}
	h.remove = func() error { return d.doc.Remove(el) }
	return h, nil
}

// AddStatusBarItem inserts a text element into the status-bar container.
func (d *DOM) AddStatusBarItem(text string) (*Handle, error) {
	if d.doc == nil {
		return nil, errors.New("bridge: no document")
	}
	container, _, err := d.doc.Probe(d.statusBar...)
	if err != nil {
		return nil, fmt.Errorf("status bar item: %w", err)
	}

	id := "status-" + uuid.NewString()
	el := d.doc.CreateElement("div", map[string]string{
		"id":    id,
		"class": "plugin-status-item",
	})
	d.doc.SetText(el, text)
	d.doc.Append(container, el)

	h := &Handle{ID: id, Element: el, Via: ViaDOM}
	h.setText = func(text string) error {
		d.doc.SetText(el, text)
		return nil
	}
	h.remove = func() error { return d.doc.Remove(el) }
	return h, nil
}

// ShowPanel renders pane as a section in the sidebar container, replacing a
// section for the same pane and hiding the other plugin panels.
func (d *DOM) ShowPanel(pane workbench.SidebarPane) (*Handle, error) {
	if d.doc == nil {
		return nil, errors.New("bridge: no document")
	}
	container, _, err := d.doc.Probe(d.sidebar...)
	if err != nil {
		return nil, fmt.Errorf("panel %q: %w", pane.ID, err)
	}

	panels, _ := d.doc.QueryAll(".plugin-panel")
	for _, p := range panels {
		if dom.Attr(p, "data-pane") == pane.ID {
			_ = d.doc.Remove(p)
			continue
		}
		d.doc.SetAttr(p, "style", "display:none")
	}

	section := d.doc.CreateElement("section", map[string]string{
		"class":     "plugin-panel",
		"data-pane": pane.ID,
	})
	title := d.doc.CreateElement("h2", map[string]string{"class": "plugin-panel__title"})
	d.doc.SetText(title, pane.Title)
	d.doc.Append(section, title)
	for _, v := range pane.Views {
		d.doc.Append(section, d.render(v))
	}
	d.doc.Append(container, section)

	h := &Handle{ID: pane.ID, Element: section, Via: ViaDOM}
	h.setText = func(text string) error {
		d.doc.SetText(title, text)
		return nil
	}
	h.remove = func() error { return d.doc.Remove(section) }
	return h, nil
}

var viewTags = map[string]string{
	"header":  "h3",
	"text":    "p",
	"list":    "ul",
	"item":    "li",
	"button":  "button",
	"divider": "hr",
}

// render converts a view tree into elements.
func (d *DOM) render(v workbench.View) *html.Node {
	tag, ok := viewTags[v.Kind]
	if !ok {
		tag = "div"
	}
	attrs := map[string]string{"class": "plugin-view plugin-view--" + v.Kind}
	for k, val := range v.Attrs {
		attrs[k] = val
	}
	el := d.doc.CreateElement(tag, attrs)
	if v.Text != "" {
		d.doc.SetText(el, v.Text)
	}
	for _, child := range v.Children {
		d.doc.Append(el, d.render(child))
	}
	if v.OnClick != nil {
		onClick := v.OnClick
		d.doc.AddEventListener(el, "click", func(dom.Event) { onClick() })
	}
	return el
}
