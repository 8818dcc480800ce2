package bridge

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

type recordLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordLogger) Debug(msg string, args ...any) { l.add("DEBUG", msg, args...) }
func (l *recordLogger) Warn(msg string, args ...any)  { l.add("WARN", msg, args...) }

func (l *recordLogger) add(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(msg, args...))
}

func (l *recordLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func TestStructuredRibbonIcon(t *testing.T) {
	wb := workbench.New()
	doc := dom.New()
	b := NewStructured(wb, doc)

	clicks := 0
	h, err := b.AddRibbonIcon("☀", "Hello", func() { clicks++ })
	if err != nil {
		t.Fatalf("AddRibbonIcon: %v", err)
	}
	if h.Via != ViaStructured {
		t.Errorf("Via = %s", h.Via)
	}
	if !wb.ActivityBar.Has(h.ID) {
		t.Fatal("item not in activity bar")
	}
	if h.Element == nil || dom.Attr(h.Element, "style") != "display:none" {
		t.Fatal("missing hidden placeholder")
	}

	// A click on another item must not reach this callback.
	_ = wb.ActivityBar.Add(workbench.ActivityBarItem{ID: "other"})
	_ = wb.ActivityBar.Click("other")
	_ = wb.ActivityBar.Click(h.ID)
	doc.Dispatch(h.Element, dom.Event{Type: "click"})
	if clicks != 2 {
		t.Errorf("clicks = %d, want 2", clicks)
	}

	if err := h.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if wb.ActivityBar.Has(h.ID) || doc.Contains(h.Element) {
		t.Error("contribution survives Remove")
	}
	_ = wb.ActivityBar.Add(workbench.ActivityBarItem{ID: h.ID})
	_ = wb.ActivityBar.Click(h.ID)
	if clicks != 2 {
		t.Error("click listener survives Remove")
	}
	if err := h.SetText("x"); !errors.Is(err, ErrRemoved) {
		t.Errorf("SetText after Remove = %v", err)
	}
}

func TestStructuredStatusBarItem(t *testing.T) {
	wb := workbench.New()
	b := NewStructured(wb, nil)

	h, err := b.AddStatusBarItem("ready")
	if err != nil {
		t.Fatalf("AddStatusBarItem: %v", err)
	}
	if err := h.SetText("busy"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if item, _ := wb.StatusBar.Get(h.ID); item.Text != "busy" {
		t.Errorf("Text = %q, want busy", item.Text)
	}
	if err := h.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(wb.StatusBar.Items()) != 0 {
		t.Error("item survives Remove")
	}
}

func TestStructuredUnavailable(t *testing.T) {
	var nilBridge *Structured
	if _, err := nilBridge.AddRibbonIcon("i", "t", nil); !errors.Is(err, workbench.ErrUnavailable) {
		t.Errorf("nil receiver = %v", err)
	}

	wb := workbench.New()
	wb.ActivityBar = nil
	if _, err := NewStructured(wb, nil).AddRibbonIcon("i", "t", nil); !errors.Is(err, workbench.ErrUnavailable) {
		t.Errorf("missing activity bar = %v", err)
	}
}

func TestDOMRibbonIcon(t *testing.T) {
	doc := dom.New()
	b := NewDOM(doc)

	clicks := 0
	h, err := b.AddRibbonIcon("☀", "Hello", func() { clicks++ })
	if err != nil {
		t.Fatalf("AddRibbonIcon: %v", err)
	}
	container, _, _ := doc.Probe(dom.ActivityBarSelectors...)
	if h.Element.Parent != container {
		t.Error("element not inserted under activity-bar container")
	}

	doc.Dispatch(h.Element, dom.Event{Type: "mouseenter"})
	if dom.Attr(h.Element, "class") != "plugin-ribbon-icon hover" {
		t.Errorf("class after hover = %q", dom.Attr(h.Element, "class"))
	}
	doc.Dispatch(h.Element, dom.Event{Type: "mouseleave"})
	doc.Dispatch(h.Element, dom.Event{Type: "click"})
	if clicks != 1 {
		t.Errorf("clicks = %d", clicks)
	}

	_ = h.Remove()
	if doc.Contains(h.Element) {
		t.Error("element survives Remove")
	}
}

func TestDOMCustomSelectors(t *testing.T) {
	doc, err := dom.Parse(strings.NewReader(`<html><body><nav class="icons"></nav><p id="sb"></p></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	b := NewDOM(doc,
		WithActivityBarSelectors(".missing", "nav.icons"),
		WithStatusBarSelectors("#sb"))

	h, err := b.AddStatusBarItem("words: 3")
	if err != nil {
		t.Fatalf("AddStatusBarItem: %v", err)
	}
	_ = h.SetText("words: 4")
	if dom.TextContent(h.Element) != "words: 4" {
		t.Errorf("text = %q", dom.TextContent(h.Element))
	}
	if _, err := b.AddRibbonIcon("i", "t", nil); err != nil {
		t.Errorf("AddRibbonIcon: %v", err)
	}

	bare, _ := dom.Parse(strings.NewReader(`<html><body></body></html>`))
	if _, err := NewDOM(bare).AddRibbonIcon("i", "t", nil); !errors.Is(err, dom.ErrNoContainer) {
		t.Errorf("no container = %v", err)
	}
}

func TestResilientFallsBackWhenFrameworkAbsent(t *testing.T) {
	doc := dom.New()
	log := &recordLogger{}
	b := New(NewStructured(nil, doc), NewDOM(doc), log)

	clicked := false
	h, err := b.AddRibbonIcon("☀", "Hello", func() { clicked = true })
	if err != nil {
		t.Fatalf("AddRibbonIcon: %v", err)
	}
	if h.Via != ViaDOM {
		t.Errorf("Via = %s, want dom", h.Via)
	}
	container, _, _ := doc.Probe(dom.ActivityBarSelectors...)
	if h.Element.Parent != container {
		t.Error("fallback element not under located container")
	}
	doc.Dispatch(h.Element, dom.Event{Type: "click"})
	if !clicked {
		t.Error("fallback click did not reach callback")
	}
	if !strings.Contains(log.joined(), "DEBUG") {
		t.Errorf("downgrade not logged: %q", log.joined())
	}
}

func TestResilientFallsBackOnFailure(t *testing.T) {
	wb := workbench.New()
	doc := dom.New()
	log := &recordLogger{}
	wb.Faults.Fail(workbench.OpStatusBarAdd, errors.New("layout not ready"))

	b := New(NewStructured(wb, doc), NewDOM(doc), log)
	h, err := b.AddStatusBarItem("ok")
	if err != nil {
		t.Fatalf("AddStatusBarItem: %v", err)
	}
	if h.Via != ViaDOM {
		t.Errorf("Via = %s, want dom", h.Via)
	}
	if !strings.Contains(log.joined(), "layout not ready") {
		t.Errorf("warning missing cause: %q", log.joined())
	}

	wb.Faults.Clear(workbench.OpStatusBarAdd)
	h, err = b.AddStatusBarItem("ok")
	if err != nil || h.Via != ViaStructured {
		t.Errorf("after Clear: %v, %v", h, err)
	}
}

func TestResilientBothFail(t *testing.T) {
	bare, _ := dom.Parse(strings.NewReader(`<html><body></body></html>`))
	b := NewResilient(NewStructured(nil, nil), NewDOM(bare), nil)
	if _, err := b.AddRibbonIcon("i", "t", nil); !errors.Is(err, dom.ErrNoContainer) {
		t.Errorf("err = %v, want ErrNoContainer", err)
	}

	b = NewResilient(nil, nil, nil)
	if _, err := b.AddStatusBarItem("x"); !errors.Is(err, workbench.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestPanelStructured(t *testing.T) {
	wb := workbench.New()
	b := NewResilient(NewStructured(wb, nil), NewDOM(dom.New()), nil)

	h, err := b.ShowPanel(workbench.SidebarPane{ID: "hello", Title: "Hello", Views: []workbench.View{workbench.Header("Hi")}})
	if err != nil {
		t.Fatal(err)
	}
	if h.Via != ViaStructured {
		t.Errorf("Via = %s", h.Via)
	}
	if pane, ok := wb.Sidebar.Current(); !ok || pane.ID != "hello" {
		t.Errorf("current pane = %+v, %v", pane, ok)
	}
	if err := h.SetText("Hello again"); err != nil {
		t.Fatal(err)
	}
	if pane, _ := wb.Sidebar.Current(); pane.Title != "Hello again" {
		t.Errorf("title = %q", pane.Title)
	}
	if err := h.Remove(); err != nil {
		t.Fatal(err)
	}
	if len(wb.Sidebar.Panes()) != 0 {
		t.Error("pane survives Remove")
	}
}

func TestPanelFallsBackToDOM(t *testing.T) {
	doc := dom.New()
	log := &recordLogger{}
	wb := workbench.New()
	wb.Faults.Fail(workbench.OpSidebarAdd, errors.New("sidebar broken"))
	b := New(NewStructured(wb, doc), NewDOM(doc), log)

	clicked := false
	pane := workbench.SidebarPane{ID: "feeds", Title: "Feeds", Views: []workbench.View{
		workbench.List(workbench.Item("Go 1.23 released", func() { clicked = true })),
	}}
	h, err := b.ShowPanel(pane)
	if err != nil {
		t.Fatal(err)
	}
	if h.Via != ViaDOM {
		t.Fatalf("Via = %s", h.Via)
	}
	if !strings.Contains(log.joined(), "sidebar broken") {
		t.Errorf("downgrade not logged: %q", log.joined())
	}

	items, _ := doc.QueryAll(".plugin-view--item")
	if len(items) != 1 || dom.TextContent(items[0]) != "Go 1.23 released" {
		t.Fatalf("items = %d", len(items))
	}
	doc.Dispatch(items[0], dom.Event{Type: "click"})
	if !clicked {
		t.Error("item click not delivered")
	}

	// Showing the same pane again replaces the section.
	if _, err := b.ShowPanel(pane); err != nil {
		t.Fatal(err)
	}
	if panels, _ := doc.QueryAll(".plugin-panel"); len(panels) != 1 {
		t.Errorf("%d panels, want 1", len(panels))
	}

	other, _ := b.ShowPanel(workbench.SidebarPane{ID: "other", Title: "Other"})
	if dom.Attr(other.Element, "style") == "display:none" {
		t.Error("new panel hidden")
	}
	panels, _ := doc.QueryAll(".plugin-panel")
	for _, p := range panels {
		if dom.Attr(p, "data-pane") == "feeds" && dom.Attr(p, "style") != "display:none" {
			t.Error("previous panel still visible")
		}
	}
}
