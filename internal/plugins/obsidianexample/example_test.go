package obsidianexample

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin/obsidian"
	"github.com/dshills/ideshell/internal/storage"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

type fixture struct {
	wb   *workbench.Workbench
	doc  *dom.Document
	host *obsidian.Host
}

func newFixture(t *testing.T, local *storage.Local, delay, interval time.Duration) *fixture {
	t.Helper()
	wb := workbench.New()
	doc := dom.New()
	bus := event.NewBus()
	app := obsidian.NewApp(obsidian.AppConfig{
		Workbench: wb,
		Document:  doc,
		Bridge:    bridge.New(bridge.NewStructured(wb, doc), bridge.NewDOM(doc), nil),
		Bus:       bus,
		Local:     local,
	})
	f := &fixture{wb: wb, doc: doc, host: obsidian.NewHost(app, bus, nil)}
	if _, err := f.host.Register(Manifest(), New(delay, interval)); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) plugin(t *testing.T) *Plugin {
	t.Helper()
	rec, ok := f.host.Get(ID)
	if !ok {
		t.Fatal("plugin not registered")
	}
	inst, ok := rec.Instance()
	if !ok {
		t.Fatal("no instance")
	}
	return inst.(*Plugin)
}

func TestEnableContributes(t *testing.T) {
	f := newFixture(t, nil, 0, 0)
	ctx := context.Background()
	if err := f.host.Enable(ctx, ID); err != nil {
		t.Fatal(err)
	}
	p := f.plugin(t)

	if item, ok := f.wb.StatusBar.Get(p.Status().ID); !ok || item.Text != StatusText {
		t.Errorf("status = %+v, %v", item, ok)
	}

	h, err := p.Ribbon(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.wb.ActivityBar.Click(h.ID); err != nil {
		t.Fatal(err)
	}
	pane, ok := f.wb.Sidebar.Current()
	if !ok || pane.ID != PanelID {
		t.Fatalf("pane = %+v", pane)
	}
	if n := f.wb.Notification.List(); len(n) != 1 || n[0].Message != "This is a notice!" {
		t.Errorf("notifications = %+v", n)
	}

	f.doc.Dispatch(f.doc.Body(), dom.Event{Type: "click"})
	if p.Clicks() != 1 {
		t.Errorf("Clicks() = %d", p.Clicks())
	}
}

func TestOpenNoteCommand(t *testing.T) {
	f := newFixture(t, nil, 0, 0)
	ctx := context.Background()
	f.host.Enable(ctx, ID)
	p := f.plugin(t)

	if err := f.host.App().Commands.Execute(ID + ":open-note"); err != nil {
		t.Fatal(err)
	}
	tab, ok := f.wb.Editor.CurrentTab()
	if !ok || tab.ID != NotePath || tab.Value != "# Sample\n\n"+DefaultSettings.Greeting+"\n" {
		t.Errorf("tab = %+v", tab)
	}
	if item, _ := f.wb.StatusBar.Get(p.Status().ID); item.Text != "Open: "+NotePath {
		t.Errorf("status = %q", item.Text)
	}
}

func TestDisableDisposes(t *testing.T) {
	f := newFixture(t, nil, 0, 0)
	ctx := context.Background()
	f.host.Enable(ctx, ID)
	p := f.plugin(t)
	h, _ := p.Ribbon(ctx)
	f.wb.ActivityBar.Click(h.ID)

	if err := f.host.Disable(ctx, ID); err != nil {
		t.Fatal(err)
	}
	if !p.Disposed() {
		t.Error("plugin not disposed")
	}
	if len(f.wb.ActivityBar.Items()) != 0 || len(f.wb.StatusBar.Items()) != 0 || len(f.wb.Sidebar.Panes()) != 0 {
		t.Error("UI contributions survive disable")
	}
	if len(f.host.App().Commands.List()) != 0 {
		t.Error("commands survive disable")
	}
	if n := f.doc.Dispatch(f.doc.Body(), dom.Event{Type: "click"}); n != 0 {
		t.Errorf("%d listeners survive disable", n)
	}
}

func TestDelayedRibbon(t *testing.T) {
	f := newFixture(t, nil, 10*time.Millisecond, 0)
	ctx := context.Background()
	f.host.Enable(ctx, ID)
	if len(f.wb.ActivityBar.Items()) != 0 {
		t.Error("ribbon added before the delay")
	}

	wait, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, err := f.plugin(t).Ribbon(wait); err != nil {
		t.Fatal(err)
	}
	if len(f.wb.ActivityBar.Items()) != 1 {
		t.Error("ribbon missing after the delay")
	}
}

func TestDisableBeforeDelay(t *testing.T) {
	f := newFixture(t, nil, 20*time.Millisecond, 0)
	ctx := context.Background()
	f.host.Enable(ctx, ID)
	f.host.Disable(ctx, ID)
	time.Sleep(50 * time.Millisecond)
	if len(f.wb.ActivityBar.Items()) != 0 {
		t.Error("ribbon added after disable")
	}
}

func TestIntervalUpdatesStatus(t *testing.T) {
	f := newFixture(t, nil, 0, 5*time.Millisecond)
	ctx := context.Background()
	f.host.Enable(ctx, ID)
	p := f.plugin(t)

	deadline := time.Now().Add(time.Second)
	for p.Ticks() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("interval did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.host.Disable(ctx, ID)
	ticks := p.Ticks()
	time.Sleep(20 * time.Millisecond)
	if p.Ticks() != ticks {
		t.Error("interval runs after disable")
	}
}

func TestSettingsPersist(t *testing.T) {
	local := storage.NewMemory()
	f := newFixture(t, local, 0, 0)
	ctx := context.Background()
	f.host.Enable(ctx, ID)
	if err := f.plugin(t).SetGreeting("Bonjour"); err != nil {
		t.Fatal(err)
	}
	f.host.Disable(ctx, ID)

	again := newFixture(t, local, 0, 0)
	again.host.Enable(ctx, ID)
	if got := again.plugin(t).Greeting(); got != "Bonjour" {
		t.Errorf("Greeting() = %q", got)
	}
}
