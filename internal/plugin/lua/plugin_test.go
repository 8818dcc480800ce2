package lua

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/settings"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

type testEnv struct {
	wb   *workbench.Workbench
	bus  *event.Bus
	host *api.Host
}

func newEnv() *testEnv {
	wb := workbench.New()
	doc := dom.New()
	bus := event.NewBus()
	return &testEnv{
		wb:  wb,
		bus: bus,
		host: &api.Host{
			Bus:       bus,
			Settings:  settings.NewStore(nil),
			Bridge:    bridge.New(bridge.NewStructured(wb, doc), bridge.NewDOM(doc), nil),
			Workbench: wb,
		},
	}
}

func load(t *testing.T, env *testEnv, id, code string, opts ...Option) (*Plugin, *api.API) {
	t.Helper()
	m := lifecycle.NewManifestMinimal(id, t.TempDir())
	p := New(m, append([]Option{WithSource(code)}, opts...)...)
	a := api.New(id, env.host)
	if err := p.OnLoad(context.Background(), a); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	t.Cleanup(func() {
		if p.Loaded() {
			_ = p.OnUnload(context.Background())
		}
	})
	return p, a
}

func TestPluginActivityBarClick(t *testing.T) {
	env := newEnv()
	p, _ := load(t, env, "lua-hello", `
local ide = require("ide")
function onload()
  ide.ui.add_activity_bar_item({id = "lua-hello.entry", name = "Hello"}, function()
    ide.ui.add_sidebar_item({id = "lua-hello.pane", title = "Hello", views = {
      {kind = "header", text = "Hello from " .. ide.plugin.id},
      {kind = "list", children = {{kind = "item", text = "one"}}},
    }})
    ide.ui.show_sidebar("lua-hello.pane")
    ide.ui.open_editor({id = "hello.md", name = "hello.md", language = "markdown", value = "# hi"})
  end)
end
`)

	if !env.wb.ActivityBar.Has("lua-hello.entry") {
		t.Fatal("activity bar item not added")
	}
	if err := env.wb.ActivityBar.Click("lua-hello.entry"); err != nil {
		t.Fatal(err)
	}
	if err := p.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	pane, ok := env.wb.Sidebar.Current()
	if !ok || pane.ID != "lua-hello.pane" {
		t.Fatalf("sidebar current = %+v, %v", pane, ok)
	}
	if len(pane.Views) != 2 || pane.Views[0].Text != "Hello from lua-hello" || len(pane.Views[1].Children) != 1 {
		t.Errorf("views = %+v", pane.Views)
	}
	if tab, ok := env.wb.Editor.CurrentTab(); !ok || tab.Language != "markdown" {
		t.Errorf("editor tab = %+v, %v", tab, ok)
	}
}

func TestPluginSettingsAndEvents(t *testing.T) {
	env := newEnv()
	p, a := load(t, env, "lua-events", `
local ide = require("ide")
function onload()
  ide.settings.set("count", 0)
  ide.events.on("ping", function(n)
    ide.settings.set("count", ide.settings.get("count") + n)
  end)
  ide.ui.add_status_bar_item("ready")
end
`)

	env.bus.Emit("ping", 2)
	env.bus.Emit("ping", 3)
	if err := p.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v, _ := a.Settings.Get("count"); v != int64(5) {
		t.Errorf("count = %#v, want 5", v)
	}
	if len(env.wb.StatusBar.Items()) != 1 {
		t.Errorf("status bar items = %d", len(env.wb.StatusBar.Items()))
	}
}

func TestPluginEmitFromOnload(t *testing.T) {
	env := newEnv()
	var got []any
	env.bus.OnFunc("hello", func(args ...any) error {
		got = args
		return nil
	})

	load(t, env, "lua-emit", `
local ide = require("ide")
function onload()
  ide.events.emit("hello", "world", 42, {a = 1})
end
`)

	if len(got) != 3 || got[0] != "world" || got[1] != int64(42) {
		t.Errorf("args = %#v", got)
	}
	if m, ok := got[2].(map[string]any); !ok || m["a"] != int64(1) {
		t.Errorf("table arg = %#v", got[2])
	}
}

func TestPluginOnloadError(t *testing.T) {
	env := newEnv()
	m := lifecycle.NewManifestMinimal("lua-broken", t.TempDir())
	p := New(m, WithSource(`function onload() error("boom") end`))

	err := p.OnLoad(context.Background(), api.New("lua-broken", env.host))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("OnLoad = %v, want boom", err)
	}
	if p.Loaded() {
		t.Error("state kept after failed load")
	}
	if err := p.OnUnload(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("OnUnload = %v, want ErrNotLoaded", err)
	}
}

func TestPluginOnunload(t *testing.T) {
	env := newEnv()
	p, a := load(t, env, "lua-unload", `
local ide = require("ide")
function onunload() ide.settings.set("unloaded", true) end
`)
	if err := p.OnUnload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v, _ := a.Settings.Get("unloaded"); v != true {
		t.Errorf("unloaded = %v", v)
	}
	if p.Loaded() {
		t.Error("state survives OnUnload")
	}
}

func TestSandbox(t *testing.T) {
	env := newEnv()
	cases := map[string]string{
		"io":       `require("io")`,
		"os":       `os.exit(1)`,
		"dofile":   `dofile("/etc/passwd")`,
		"loadfile": `loadfile("/etc/passwd")`,
	}
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			p := New(lifecycle.NewManifestMinimal("lua-sandbox", t.TempDir()), WithSource(code))
			if err := p.OnLoad(context.Background(), api.New("lua-sandbox", env.host)); err == nil {
				t.Errorf("%s was allowed", code)
				_ = p.OnUnload(context.Background())
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	env := newEnv()
	p := New(lifecycle.NewManifestMinimal("lua-loop", t.TempDir()),
		WithSource(`while true do end`),
		WithTimeout(50*time.Millisecond))

	err := p.OnLoad(context.Background(), api.New("lua-loop", env.host))
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Errorf("OnLoad = %v, want ErrExecutionTimeout", err)
	}
}

func TestPrintGoesToLogger(t *testing.T) {
	env := newEnv()
	log := &captureLogger{}
	load(t, env, "lua-print", `print("hi", 1)`, WithLogger(log))
	if !strings.Contains(log.String(), "[lua-print] hi\t1") {
		t.Errorf("log = %q", log.String())
	}
}

func TestDiscover(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	write := func(path, content string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(first, "counter", "plugin.json"), `{"id":"word-counter","version":"1.0.0","main":"main.lua"}`)
	write(filepath.Join(first, "counter", "main.lua"), `function onload() end`)
	write(filepath.Join(first, "bare", "init.lua"), `function onload() end`)
	write(filepath.Join(first, "single.lua"), `function onload() end`)
	write(filepath.Join(first, "empty", "README"), `nothing`)
	write(filepath.Join(second, "single.lua"), `-- shadowed`)

	found, err := Discover(first, second, filepath.Join(first, "missing"))
	if err != nil {
		t.Fatal(err)
	}

	byID := make(map[string]Found)
	for _, f := range found {
		byID[f.ID] = f
	}
	if f := byID["word-counter"]; f.Err != nil || f.Manifest.MainPath() != filepath.Join(first, "counter", "main.lua") {
		t.Errorf("word-counter = %+v", f)
	}
	if f := byID["bare"]; f.Err != nil || f.Manifest.Main != "init.lua" {
		t.Errorf("bare = %+v", f)
	}
	if f := byID["single"]; f.Path != first {
		t.Errorf("single path = %q, want first dir", f.Path)
	}
	if f := byID["empty"]; !errors.Is(f.Err, ErrNoEntryPoint) {
		t.Errorf("empty err = %v", f.Err)
	}
}

func TestConvert(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	v := ToLuaValue(L, map[string]any{"list": []any{"a", int64(2)}, "n": 1.5, "ok": true})
	back, ok := ToGoValue(v).(map[string]any)
	if !ok {
		t.Fatalf("round trip = %#v", ToGoValue(v))
	}
	list, _ := back["list"].([]any)
	if len(list) != 2 || list[0] != "a" || list[1] != int64(2) || back["n"] != 1.5 || back["ok"] != true {
		t.Errorf("round trip = %#v", back)
	}
}
