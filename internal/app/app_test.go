package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/ideshell/internal/config"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin"
	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/plugins"
	"github.com/dshills/ideshell/internal/plugins/hello"
	"github.com/dshills/ideshell/internal/plugins/rss"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Plugins.StartupDelay = config.Duration{}
	cfg.Storage.Path = filepath.Join(t.TempDir(), "storage.json")
	cfg.UI.Width, cfg.UI.Height = 80, 16
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts Options) (*Application, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	if opts.Logger == nil {
		opts.Logger = NewLogger(LoggerConfig{Level: LogLevelDebug, Output: out, Prefix: "test"})
	}
	app, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app, out
}

func statusOf(t *testing.T, app *Application, id string) lifecycle.Status {
	t.Helper()
	for _, p := range app.Plugins() {
		if p.ID == id {
			return p.Status
		}
	}
	t.Fatalf("plugin %s not listed", id)
	return 0
}

func TestNewRegistersBuiltins(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), Options{})

	infos := app.Plugins()
	if len(infos) != len(plugins.IDs)+len(plugins.ObsidianIDs) {
		t.Fatalf("Plugins() = %d entries", len(infos))
	}
	for i, id := range plugins.IDs {
		if infos[i].ID != id || infos[i].Host != HostPrimary {
			t.Errorf("entry %d = %s/%s", i, infos[i].Host, infos[i].ID)
		}
		if infos[i].Status != lifecycle.StatusRegistered {
			t.Errorf("%s status = %v before EnableAll", id, infos[i].Status)
		}
	}
	if last := infos[len(infos)-1]; last.Host != HostObsidian {
		t.Errorf("last entry host = %s", last.Host)
	}
	if app.Storage().Path() != app.Config().Storage.Path {
		t.Errorf("storage path = %q", app.Storage().Path())
	}
}

func TestNewFailsOnBadStorage(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	cfg.Storage.Path = filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(cfg.Storage.Path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(cfg, Options{Logger: NullLogger})
	var ce *ComponentError
	if !errors.As(err, &ce) || ce.Component != "storage" {
		t.Fatalf("New() = %v, want storage ComponentError", err)
	}
}

func TestEnableAllContinuesAndNotifies(t *testing.T) {
	app, out := newTestApp(t, testConfig(t), Options{})

	boom := errors.New("boom")
	_, err := app.Manager().Register(&lifecycle.Manifest{ID: "broken-plugin", Version: "1.0.0"}, func() plugin.Plugin {
		return &plugin.Funcs{Load: func(context.Context, *api.API) error { return boom }}
	})
	if err != nil {
		t.Fatal(err)
	}

	err = app.EnableAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("EnableAll() = %v, want boom", err)
	}
	for _, id := range append(slices.Clone(plugins.IDs), plugins.ObsidianIDs...) {
		if st := statusOf(t, app, id); st != lifecycle.StatusEnabled {
			t.Errorf("%s status = %v", id, st)
		}
	}
	if st := statusOf(t, app, "broken-plugin"); st != lifecycle.StatusError {
		t.Errorf("broken-plugin status = %v", st)
	}

	notes := app.Workbench().Notification.List()
	if len(notes) == 0 {
		t.Fatal("no notification")
	}
	last := notes[len(notes)-1]
	if !strings.HasPrefix(last.Message, "插件 broken-plugin 加载失败: ") || !strings.Contains(last.Message, "boom") {
		t.Errorf("notification = %q", last.Message)
	}
	if !strings.Contains(out.String(), "插件 broken-plugin 加载失败") {
		t.Error("failure not logged")
	}

	s := app.Metrics().Snapshot()
	if s.EnableFailures != 1 || s.Enables != uint64(len(plugins.IDs)+len(plugins.ObsidianIDs)) {
		t.Errorf("metrics = %+v", s)
	}
	if s.PluginErrors == 0 {
		t.Error("plugin error event not counted")
	}
}

func TestEnableAllRespectsConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugins.Disabled = []string{rss.ID}
	app, _ := newTestApp(t, cfg, Options{})

	if err := app.EnableAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := statusOf(t, app, rss.ID); st != lifecycle.StatusRegistered {
		t.Errorf("rss status = %v", st)
	}
	if st := statusOf(t, app, hello.ID); st != lifecycle.StatusEnabled {
		t.Errorf("hello status = %v", st)
	}
}

func TestShutdownReverseOrder(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), Options{})

	var mu sync.Mutex
	var enabled, disabled []string
	app.Bus().OnFunc(event.PluginEnabled, func(args ...any) error {
		mu.Lock()
		enabled = append(enabled, recordID(args))
		mu.Unlock()
		return nil
	})
	app.Bus().OnFunc(event.PluginDisabled, func(args ...any) error {
		mu.Lock()
		disabled = append(disabled, recordID(args))
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	if err := app.EnableAll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	want := slices.Clone(enabled)
	slices.Reverse(want)
	got := slices.Clone(disabled)
	mu.Unlock()
	if !slices.Equal(got, want) {
		t.Errorf("disable order = %v, want %v", got, want)
	}
	if n := len(app.Workbench().ActivityBar.Items()); n != 0 {
		t.Errorf("%d activity items survive shutdown", n)
	}
	if n := app.subs.count(); n != 0 {
		t.Errorf("%d subscriptions survive shutdown", n)
	}

	if err := app.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
	if err := app.Enable(ctx, hello.ID); !errors.Is(err, ErrShutdown) {
		t.Errorf("Enable after shutdown = %v", err)
	}
}

func TestFailedDisableStaysInShutdownOrder(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), Options{})
	ctx := context.Background()

	boom := errors.New("unload failed")
	unloads := 0
	_, err := app.Manager().Register(&lifecycle.Manifest{ID: "sticky-plugin", Version: "1.0.0"}, func() plugin.Plugin {
		return &plugin.Funcs{Unload: func(context.Context) error {
			unloads++
			return boom
		}}
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Enable(ctx, "sticky-plugin"); err != nil {
		t.Fatal(err)
	}

	if err := app.Disable(ctx, "sticky-plugin"); !errors.Is(err, boom) {
		t.Fatalf("Disable() = %v, want %v", err, boom)
	}
	if st := statusOf(t, app, "sticky-plugin"); st != lifecycle.StatusEnabled {
		t.Errorf("status after failed disable = %v", st)
	}
	app.mu.RLock()
	kept := slices.Contains(app.order, "sticky-plugin")
	app.mu.RUnlock()
	if !kept {
		t.Error("failed disable dropped the plugin from the enable order")
	}

	if err := app.Shutdown(ctx); !errors.Is(err, boom) {
		t.Errorf("Shutdown() = %v, want %v", err, boom)
	}
	if unloads < 2 {
		t.Errorf("shutdown did not retry the plugin, unloads = %d", unloads)
	}
}

func TestEnableUnknownPlugin(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), Options{})
	if err := app.Enable(context.Background(), "nope"); !errors.Is(err, ErrUnknownPlugin) {
		t.Errorf("Enable() = %v", err)
	}
	if err := app.Disable(context.Background(), "nope"); !errors.Is(err, ErrUnknownPlugin) {
		t.Errorf("Disable() = %v", err)
	}
}

func TestReload(t *testing.T) {
	cfg := testConfig(t)
	app, _ := newTestApp(t, cfg, Options{})
	ctx := context.Background()
	if err := app.EnableAll(ctx); err != nil {
		t.Fatal(err)
	}

	next := *cfg
	next.Log.Level = "error"
	next.Plugins.Disabled = []string{hello.ID}
	if err := app.Reload(ctx, &next); err != nil {
		t.Fatal(err)
	}
	if st := statusOf(t, app, hello.ID); st != lifecycle.StatusDisabled {
		t.Errorf("hello status = %v", st)
	}
	if app.Logger().Level() != LogLevelError {
		t.Errorf("log level = %v", app.Logger().Level())
	}

	if err := app.Reload(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	if st := statusOf(t, app, hello.ID); st != lifecycle.StatusEnabled {
		t.Errorf("hello status after re-allow = %v", st)
	}
}

func TestConfigWatchReloads(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Plugins.StartupDelay = config.Duration{}

	app, _ := newTestApp(t, cfg, Options{ConfigPath: path, Watch: true})
	ctx := context.Background()
	if err := app.EnableAll(ctx); err != nil {
		t.Fatal(err)
	}

	data := fmt.Sprintf("[log]\nlevel = \"debug\"\n[plugins]\nstartup_delay = \"0s\"\ndisabled = [%q]\n", hello.ID)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for statusOf(t, app, hello.ID) != lifecycle.StatusDisabled {
		if time.Now().After(deadline) {
			t.Fatal("config change did not disable hello")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandler(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), Options{})
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	do := func(method, path string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, srv.URL+path, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := do(http.MethodPost, "/api/plugins/"+hello.ID+"/enable")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable status = %d", resp.StatusCode)
	}
	var p pluginJSON
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Status != "enabled" || p.Host != HostPrimary || !p.HasAPI {
		t.Errorf("plugin = %+v", p)
	}

	var list []pluginJSON
	if err := json.NewDecoder(do(http.MethodGet, "/api/plugins").Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != len(plugins.IDs)+len(plugins.ObsidianIDs) {
		t.Errorf("list has %d plugins", len(list))
	}

	if resp := do(http.MethodGet, "/api/plugins/nope"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown plugin status = %d", resp.StatusCode)
	}
	if resp := do(http.MethodPost, "/api/plugins/nope/enable"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown enable status = %d", resp.StatusCode)
	}

	items := app.Workbench().ActivityBar.Items()
	if len(items) != 1 {
		t.Fatalf("activity bar has %d items", len(items))
	}
	if resp := do(http.MethodPost, "/api/activity/"+items[0].ID+"/click"); resp.StatusCode != http.StatusNoContent {
		t.Errorf("click status = %d", resp.StatusCode)
	}
	var wb workbenchJSON
	if err := json.NewDecoder(do(http.MethodGet, "/api/workbench").Body).Decode(&wb); err != nil {
		t.Fatal(err)
	}
	if wb.Selected != items[0].ID || wb.Sidebar == "" {
		t.Errorf("workbench = %+v", wb)
	}

	resp = do(http.MethodGet, "/")
	var screen bytes.Buffer
	screen.ReadFrom(resp.Body)
	if !strings.HasPrefix(screen.String(), " ideshell") {
		t.Errorf("screen = %q", screen.String())
	}

	var m MetricsSnapshot
	if err := json.NewDecoder(do(http.MethodGet, "/api/metrics").Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if m.Enables != 1 {
		t.Errorf("metrics = %+v", m)
	}

	if resp := do(http.MethodPost, "/api/plugins/"+hello.ID+"/disable"); resp.StatusCode != http.StatusOK {
		t.Errorf("disable status = %d", resp.StatusCode)
	}
	if st := statusOf(t, app, hello.ID); st != lifecycle.StatusDisabled {
		t.Errorf("hello status = %v", st)
	}
}

func TestRunRendersUntilCancelled(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	defer screen.Fini()
	screen.SetSize(80, 16)

	cfg := testConfig(t)
	cfg.UI.Render = true
	app, _ := newTestApp(t, cfg, Options{Screen: screen})
	if err := app.EnableAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !app.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("Run did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := app.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
