package plugins

import (
	"context"
	"testing"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin"
	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/plugin/obsidian"
	"github.com/dshills/ideshell/internal/plugins/rss"
	"github.com/dshills/ideshell/internal/settings"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

func TestRegisterAll(t *testing.T) {
	wb := workbench.New()
	doc := dom.New()
	bus := event.NewBus()
	br := bridge.New(bridge.NewStructured(wb, doc), bridge.NewDOM(doc), nil)

	m := plugin.NewManager(&api.Host{Bus: bus, Settings: settings.NewStore(nil), Bridge: br, Workbench: wb})
	h := obsidian.NewHost(obsidian.NewApp(obsidian.AppConfig{Workbench: wb, Document: doc, Bridge: br, Bus: bus}), bus, nil)

	opts := Options{Delay: -1, Document: doc}
	if err := Register(m, opts); err != nil {
		t.Fatal(err)
	}
	if err := RegisterObsidian(h, opts); err != nil {
		t.Fatal(err)
	}
	if m.Count() != len(IDs) {
		t.Fatalf("Count() = %d", m.Count())
	}

	ctx := context.Background()
	if err := m.EnableAll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.EnableAll(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(wb.ActivityBar.Items()); n != len(IDs)+len(ObsidianIDs) {
		t.Errorf("activity bar has %d items", n)
	}

	if err := m.DisableAll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.DisableAll(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(wb.ActivityBar.Items()); n != 0 {
		t.Errorf("%d items survive DisableAll", n)
	}
}

func TestRegisterSkipsDisabled(t *testing.T) {
	m := plugin.NewManager(nil)
	if err := Register(m, Options{Disabled: []string{rss.ID}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(rss.ID); ok {
		t.Error("disabled plugin registered")
	}
	if m.Count() != len(IDs)-1 {
		t.Errorf("Count() = %d", m.Count())
	}
}
