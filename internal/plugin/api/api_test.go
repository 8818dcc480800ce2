package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/settings"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

func newTestHost() (*Host, *workbench.Workbench, *dom.Document) {
	wb := workbench.New()
	doc := dom.New()
	return &Host{
		Bus:       event.NewBus(),
		Settings:  settings.NewStore(nil),
		Bridge:    bridge.New(bridge.NewStructured(wb, doc), bridge.NewDOM(doc), nil),
		Workbench: wb,
	}, wb, doc
}

func TestNewBuildsEveryNamespace(t *testing.T) {
	host, wb, _ := newTestHost()
	a := New("hello-plugin", host)

	if a.PluginID() != "hello-plugin" {
		t.Errorf("PluginID = %q", a.PluginID())
	}
	if a.FileSystem == nil || a.UI == nil || a.Events == nil || a.Settings == nil || a.AI == nil || a.Utils == nil {
		t.Fatal("namespace missing")
	}
	if a.Workbench != wb {
		t.Error("Workbench escape hatch not wired")
	}
	if New("hello-plugin", host) == a {
		t.Error("New returned the same object twice")
	}
}

func TestReleaseDropsRegistrations(t *testing.T) {
	host, wb, _ := newTestHost()
	a := New("p", host)

	calls := 0
	if _, err := a.Events.On("ping", func(...any) error { calls++; return nil }); err != nil {
		t.Fatalf("On: %v", err)
	}
	h, err := a.UI.AddRibbonIcon("i", "P", nil)
	if err != nil {
		t.Fatalf("AddRibbonIcon: %v", err)
	}
	if err := a.UI.AddActivityBarItem(workbench.ActivityBarItem{ID: "p.entry"}, func() {}); err != nil {
		t.Fatalf("AddActivityBarItem: %v", err)
	}
	if err := a.UI.AddSidebarItem(workbench.SidebarPane{ID: "p-pane", Title: "P"}); err != nil {
		t.Fatalf("AddSidebarItem: %v", err)
	}
	if err := a.UI.AddSettingTab(SettingTab{ID: "s", Name: "Settings"}); err != nil {
		t.Fatalf("AddSettingTab: %v", err)
	}
	if err := a.UI.AddAuxiliaryBarItem(workbench.AuxiliaryItem{ID: "p-aux", Name: "Aux"}); err != nil {
		t.Fatalf("AddAuxiliaryBarItem: %v", err)
	}
	if n := len(wb.Sidebar.Panes()); n != 2 {
		t.Fatalf("panes before Release = %d, want 2", n)
	}

	host.Bus.Emit("ping")
	a.Release()
	host.Bus.Emit("ping")

	for _, pane := range wb.Sidebar.Panes() {
		t.Errorf("pane %q survives Release", pane.ID)
	}
	if items := wb.AuxiliaryBar.Items(); len(items) != 0 {
		t.Errorf("auxiliary items after Release = %v", items)
	}

	if calls != 1 {
		t.Errorf("listener calls = %d, want 1", calls)
	}
	if !h.Removed() || wb.ActivityBar.Has(h.ID) {
		t.Error("ribbon icon survives Release")
	}
	if wb.ActivityBar.Has("p.entry") {
		t.Error("activity bar item survives Release")
	}
	if err := a.UI.Notify(workbench.NotificationInfo, "x"); !errors.Is(err, ErrReleased) {
		t.Errorf("Notify after Release = %v", err)
	}
	a.Release()
}

func TestUIWithoutWorkbench(t *testing.T) {
	a := New("p", &Host{})
	if err := a.UI.AddSidebarItem(workbench.SidebarPane{ID: "x"}); !errors.Is(err, workbench.ErrUnavailable) {
		t.Errorf("AddSidebarItem = %v", err)
	}
	if _, err := a.UI.AddRibbonIcon("i", "t", nil); !errors.Is(err, workbench.ErrUnavailable) {
		t.Errorf("AddRibbonIcon = %v", err)
	}
	if err := a.UI.OpenEditor(workbench.EditorTab{ID: "x"}); !errors.Is(err, workbench.ErrUnavailable) {
		t.Errorf("OpenEditor = %v", err)
	}
}

func TestUIActivityClickRendersSidebar(t *testing.T) {
	host, wb, _ := newTestHost()
	a := New("p", host)

	err := a.UI.AddActivityBarItem(workbench.ActivityBarItem{ID: "p.entry", Name: "P"}, func() {
		_ = a.UI.AddSidebarItem(workbench.SidebarPane{ID: "p.pane", Title: "P", Views: []workbench.View{workbench.Header("P")}})
		_ = a.UI.ShowSidebar("p.pane")
		_ = a.UI.OpenEditor(workbench.EditorTab{ID: "p.doc", Name: "P.md"})
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = wb.ActivityBar.Click("p.entry")

	if pane, ok := wb.Sidebar.Current(); !ok || pane.ID != "p.pane" {
		t.Errorf("sidebar current = %+v, %v", pane, ok)
	}
	if wb.Editor.State().Current != "p.doc" {
		t.Errorf("editor current = %q", wb.Editor.State().Current)
	}
}

func TestUIViewsAndSettingTabs(t *testing.T) {
	host, wb, _ := newTestHost()
	a := New("board", host)

	render := func() []workbench.View { return []workbench.View{workbench.Text("canvas")} }
	if err := a.UI.RegisterView("whiteboard", render); err != nil {
		t.Fatal(err)
	}
	if err := a.UI.RegisterView("whiteboard", render); !errors.Is(err, ErrDuplicateView) {
		t.Errorf("duplicate RegisterView = %v", err)
	}
	if err := a.UI.OpenView("whiteboard"); err != nil {
		t.Fatalf("OpenView: %v", err)
	}
	if !wb.Layout.AuxiliaryBarVisible() || wb.AuxiliaryBar.Current() != "board/whiteboard" {
		t.Errorf("auxiliary bar = %v, %q", wb.Layout.AuxiliaryBarVisible(), wb.AuxiliaryBar.Current())
	}
	if err := a.UI.OpenView("missing"); !errors.Is(err, workbench.ErrItemNotFound) {
		t.Errorf("OpenView missing = %v", err)
	}

	if err := a.UI.AddSettingTab(SettingTab{ID: "main", Name: "Board"}); err != nil {
		t.Fatal(err)
	}
	if len(wb.Sidebar.Panes()) != 1 || wb.Sidebar.Panes()[0].ID != "settings/board/main" {
		t.Errorf("panes = %+v", wb.Sidebar.Panes())
	}
}

func TestSettingsScoped(t *testing.T) {
	host, _, _ := newTestHost()
	a := New("a", host)
	b := New("b", host)

	if err := a.Settings.Set("theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Settings.Get("theme"); ok {
		t.Error("settings leak across plugins")
	}
	if v, _ := a.Settings.Get("theme"); v != "dark" {
		t.Errorf("Get = %v", v)
	}
	if all := a.Settings.GetAll(); len(all) != 1 {
		t.Errorf("GetAll = %v", all)
	}
}

func TestAIDefaultsToStub(t *testing.T) {
	a := New("p", &Host{})
	got, err := a.AI.Translate(context.Background(), "hi", "de")
	if err != nil || got != "[de] hi" {
		t.Errorf("Translate = %q, %v", got, err)
	}
}

func TestFileSystemIsNoop(t *testing.T) {
	a := New("p", &Host{})
	if err := a.FileSystem.WriteFile("/x", "data"); err != nil {
		t.Fatal(err)
	}
	if got, err := a.FileSystem.ReadFile("/x"); err != nil || got != "" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
	if files, _ := a.FileSystem.ListFiles("/"); len(files) != 0 {
		t.Errorf("ListFiles = %v", files)
	}
}

func TestUtilsDebounce(t *testing.T) {
	a := New("p", &Host{})
	var n atomic.Int32
	call, _ := a.Utils.Debounce(func() { n.Add(1) }, 20*time.Millisecond)

	for i := 0; i < 5; i++ {
		call()
	}
	time.Sleep(80 * time.Millisecond)
	if n.Load() != 1 {
		t.Errorf("debounced runs = %d, want 1", n.Load())
	}

	call()
	a.Release()
	time.Sleep(50 * time.Millisecond)
	if n.Load() != 1 {
		t.Errorf("pending run survived Release")
	}
}

func TestUtilsThrottleAndIDs(t *testing.T) {
	a := New("p", &Host{})
	runs := 0
	throttled := a.Utils.Throttle(func() { runs++ }, time.Hour)
	if !throttled() {
		t.Error("first call dropped")
	}
	if throttled() {
		t.Error("second call within window ran")
	}
	if runs != 1 {
		t.Errorf("runs = %d", runs)
	}

	if a.Utils.GenerateID() == a.Utils.GenerateID() {
		t.Error("GenerateID repeated")
	}
}
