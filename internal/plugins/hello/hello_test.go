package hello

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin"
	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/settings"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

func newManager(wb *workbench.Workbench, doc *dom.Document) *plugin.Manager {
	return plugin.NewManager(&api.Host{
		Bus:       event.NewBus(),
		Settings:  settings.NewStore(nil),
		Bridge:    bridge.New(bridge.NewStructured(wb, doc), bridge.NewDOM(doc), nil),
		Workbench: wb,
	})
}

func TestHelloClickOpensPanel(t *testing.T) {
	wb := workbench.New()
	m := newManager(wb, dom.New())
	p := New(0)
	if _, err := m.Register(Manifest(), func() plugin.Plugin { return p }); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := m.Enable(ctx, ID); err != nil {
		t.Fatal(err)
	}

	h, err := p.Installation().Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := wb.ActivityBar.Click(h.ID); err != nil {
		t.Fatal(err)
	}

	pane, ok := wb.Sidebar.Current()
	if !ok || pane.ID != PanelID {
		t.Fatalf("current pane = %+v, %v", pane, ok)
	}
	if tab, ok := wb.Editor.CurrentTab(); !ok || tab.ID != "hello.md" {
		t.Errorf("editor tab = %+v, %v", tab, ok)
	}

	pane.Views[2].OnClick()
	if p.Greeted() != 1 {
		t.Errorf("Greeted() = %d", p.Greeted())
	}
	if n := wb.Notification.List(); len(n) != 1 || n[0].Message != "Hello #1" {
		t.Errorf("notifications = %+v", n)
	}

	if err := m.Disable(ctx, ID); err != nil {
		t.Fatal(err)
	}
	if wb.ActivityBar.Has(h.ID) || len(wb.Sidebar.Panes()) != 0 {
		t.Error("contributions survive disable")
	}
}

func TestHelloDelayedEntry(t *testing.T) {
	wb := workbench.New()
	m := newManager(wb, dom.New())
	p := New(10 * time.Millisecond)
	m.Register(Manifest(), func() plugin.Plugin { return p })

	if err := m.Enable(context.Background(), ID); err != nil {
		t.Fatal(err)
	}
	if len(wb.ActivityBar.Items()) != 0 {
		t.Error("entry registered before the delay")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h, err := p.Installation().Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !wb.ActivityBar.Has(h.ID) {
		t.Error("entry missing after the delay")
	}
}

func TestHelloDisableBeforeDelay(t *testing.T) {
	wb := workbench.New()
	m := newManager(wb, dom.New())
	p := New(20 * time.Millisecond)
	m.Register(Manifest(), func() plugin.Plugin { return p })

	ctx := context.Background()
	m.Enable(ctx, ID)
	inst := p.Installation()
	m.Disable(ctx, ID)

	select {
	case <-inst.Done():
	case <-time.After(time.Second):
		t.Fatal("pending entry never finished after disable")
	}
	if _, err := inst.Wait(ctx); !errors.Is(err, api.ErrReleased) {
		t.Errorf("Wait() error = %v, want %v", err, api.ErrReleased)
	}

	time.Sleep(50 * time.Millisecond)
	if len(wb.ActivityBar.Items()) != 0 {
		t.Error("entry registered after disable")
	}
}

func TestHelloWithoutFramework(t *testing.T) {
	doc := dom.New()
	m := newManager(nil, doc)
	p := New(0)
	m.Register(Manifest(), func() plugin.Plugin { return p })

	ctx := context.Background()
	if err := m.Enable(ctx, ID); err != nil {
		t.Fatal(err)
	}
	h, err := p.Installation().Wait(ctx)
	if err != nil {
		t.Fatalf("entry error = %v", err)
	}
	if h.Via != bridge.ViaDOM {
		t.Fatalf("Via = %s", h.Via)
	}

	doc.Dispatch(h.Element, dom.Event{Type: "click"})
	panels, _ := doc.QueryAll(".plugin-panel")
	if len(panels) != 1 || dom.Attr(panels[0], "data-pane") != PanelID {
		t.Errorf("panel not rendered into the DOM")
	}
}
