// Package app wires the ideshell components together and drives the plugin
// hosts: it enables plugins at startup, reacts to config changes, and
// disables everything on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/ideshell/internal/ai"
	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/config"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/plugin/obsidian"
	"github.com/dshills/ideshell/internal/settings"
	"github.com/dshills/ideshell/internal/storage"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
	"github.com/dshills/ideshell/internal/workbench/render"
)

// LoadFailedMessage is the notification shown when a plugin fails to enable.
const LoadFailedMessage = "插件 %s 加载失败: %v"

// Host names reported by PluginInfo.
const (
	HostPrimary  = "primary"
	HostObsidian = "obsidian"
)

// Options configures the application beyond the config file.
type Options struct {
	// ConfigPath is watched for changes when Watch is set.
	ConfigPath string
	Watch      bool

	// Logger receives all log output. Nil builds one from the config.
	Logger *Logger

	// Document is the page model. Nil gets the default skeleton.
	Document *dom.Document

	// Screen is the render target. Nil opens the terminal when rendering.
	Screen tcell.Screen

	// StatusInterval drives the Obsidian sample's status clock.
	StatusInterval time.Duration
}

// Application owns every component and both plugin hosts.
type Application struct {
	mu  sync.RWMutex
	cfg *config.Config

	log     *Logger
	metrics *Metrics

	local    *storage.Local
	settings *settings.Store
	bus      *event.Bus
	wb       *workbench.Workbench
	doc      *dom.Document
	bridge   *bridge.Resilient
	ai       ai.Provider
	plugins  *plugin.Manager
	obsidian *obsidian.Host

	subs    *subscriptionManager
	watcher *config.Watcher
	opts    Options

	// order lists enabled plugin ids, oldest first.
	order []string

	running  atomic.Bool
	shutdown atomic.Bool
}

// New builds the application from cfg. Nothing is enabled yet.
func New(cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = NewLogger(DefaultLoggerConfig())
	}

	app := &Application{
		log:     log,
		metrics: NewMetrics(),
		opts:    opts,
	}
	b := newBootstrapper(app, opts)
	b.applyConfig(cfg)
	if err := b.bootstrap(); err != nil {
		return nil, err
	}

	if opts.Watch && opts.ConfigPath != "" {
		w, err := config.Watch(opts.ConfigPath, app.onConfigReload)
		if err != nil {
			// The application still works without live reload.
			log.Warn("not watching %s: %v", opts.ConfigPath, err)
		} else {
			app.watcher = w
		}
	}
	return app, nil
}

// PluginInfo describes one plugin in either host.
type PluginInfo struct {
	Host string
	lifecycle.Info
}

// Plugins lists every registered plugin, primary host first.
func (app *Application) Plugins() []PluginInfo {
	var out []PluginInfo
	for _, info := range app.plugins.Infos() {
		out = append(out, PluginInfo{Host: HostPrimary, Info: info})
	}
	for _, info := range app.obsidian.Infos() {
		out = append(out, PluginInfo{Host: HostObsidian, Info: info})
	}
	return out
}

// pluginHost is the lifecycle surface both hosts share.
type pluginHost interface {
	Enable(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
	Status(id string) (lifecycle.Status, error)
}

func (app *Application) hostFor(id string) (pluginHost, error) {
	if _, ok := app.plugins.Get(id); ok {
		return app.plugins, nil
	}
	if _, ok := app.obsidian.Get(id); ok {
		return app.obsidian, nil
	}
	return nil, fmt.Errorf("plugin %q: %w", id, ErrUnknownPlugin)
}

// Enable enables one plugin in whichever host holds it.
func (app *Application) Enable(ctx context.Context, id string) error {
	if app.shutdown.Load() {
		return ErrShutdown
	}
	h, err := app.hostFor(id)
	if err != nil {
		return err
	}

	timer := StartTimer()
	err = h.Enable(ctx, id)
	app.metrics.RecordEnable(timer.Elapsed(), err)
	if err != nil {
		return err
	}

	app.mu.Lock()
	if !slices.Contains(app.order, id) {
		app.order = append(app.order, id)
	}
	app.mu.Unlock()
	return nil
}

// Disable disables one plugin in whichever host holds it.
func (app *Application) Disable(ctx context.Context, id string) error {
	h, err := app.hostFor(id)
	if err != nil {
		return err
	}
	if err := h.Disable(ctx, id); err != nil {
		// The host keeps the plugin enabled, so shutdown still owns it.
		return err
	}

	app.mu.Lock()
	app.order = slices.DeleteFunc(app.order, func(s string) bool { return s == id })
	app.mu.Unlock()
	return nil
}

// EnableAll enables every registered plugin the config allows, primary
// host first, in registration order. A failure is logged and shown as an
// error notification, and the remaining plugins are still enabled.
func (app *Application) EnableAll(ctx context.Context) error {
	cfg := app.Config()
	var errs []error
	for _, p := range app.Plugins() {
		if !cfg.PluginAllowed(p.ID) || p.Status == lifecycle.StatusEnabled {
			continue
		}
		if err := app.Enable(ctx, p.ID); err != nil {
			app.reportLoadFailure(p.ID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (app *Application) reportLoadFailure(id string, err error) {
	msg := fmt.Sprintf(LoadFailedMessage, id, err)
	app.log.WithField("plugin", id).Error("%s", msg)
	if n := app.wb.Notification; n != nil {
		if nerr := n.Open(workbench.Notification{
			ID:      "plugin-load-failed/" + id,
			Level:   workbench.NotificationError,
			Message: msg,
		}); nerr != nil {
			app.log.Warn("notification for %s: %v", id, nerr)
		}
	}
}

// Reload applies a new configuration: the log level, and the enabled and
// disabled plugin lists against the current plugin states.
func (app *Application) Reload(ctx context.Context, cfg *config.Config) error {
	if app.shutdown.Load() {
		return ErrShutdown
	}
	app.mu.Lock()
	app.cfg = cfg
	app.mu.Unlock()
	app.log.SetLevel(ParseLogLevel(cfg.Log.Level))

	var errs []error
	for _, p := range app.Plugins() {
		allowed := cfg.PluginAllowed(p.ID)
		switch {
		case allowed && p.Status != lifecycle.StatusEnabled:
			if err := app.Enable(ctx, p.ID); err != nil {
				app.reportLoadFailure(p.ID, err)
				errs = append(errs, err)
			}
		case !allowed && p.Status == lifecycle.StatusEnabled:
			if err := app.Disable(ctx, p.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (app *Application) onConfigReload(cfg *config.Config, err error) {
	if err != nil {
		app.log.Warn("config reload: %v", err)
		return
	}
	app.log.Info("config changed, reloading")
	if err := app.Reload(context.Background(), cfg); err != nil {
		app.log.Warn("config reload: %v", err)
	}
}

// Shutdown disables every enabled plugin in reverse enable order and stops
// the config watcher. It is safe to call more than once.
func (app *Application) Shutdown(ctx context.Context) error {
	if !app.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			errs = append(errs, NewComponentError("config", "close watcher", err))
		}
	}

	app.mu.RLock()
	order := slices.Clone(app.order)
	app.mu.RUnlock()
	for i := len(order) - 1; i >= 0; i-- {
		if err := app.Disable(ctx, order[i]); err != nil {
			app.log.Warn("disable %s: %v", order[i], err)
			errs = append(errs, err)
		}
	}
	// Plugins enabled directly through a host are not in order.
	errs = append(errs, app.obsidian.DisableAll(ctx), app.plugins.DisableAll(ctx))

	app.subs.unsubscribe()
	return errors.Join(errs...)
}

// Run serves the inspection endpoint and renders the workbench when the
// config asks for them, until ctx is done or the user quits the terminal
// view.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cfg := app.Config()

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)
	if cfg.UI.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.UI.HTTPAddr,
			Handler:           app.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			app.log.Info("inspection endpoint on http://%s", cfg.UI.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- NewComponentError("http", "serve", err)
				cancel()
			}
		}()
		go func() {
			defer wg.Done()
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	var err error
	if cfg.UI.Render {
		err = app.render(ctx)
		cancel()
	} else {
		<-ctx.Done()
	}
	wg.Wait()

	select {
	case serr := <-serveErr:
		return serr
	default:
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (app *Application) render(ctx context.Context) error {
	screen := app.opts.Screen
	if screen == nil {
		s, err := render.NewTerminal()
		if err != nil {
			return NewComponentError("render", "open terminal", err)
		}
		defer s.Fini()
		screen = s
	}
	return render.New(screen, app.wb).Run(ctx)
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *Logger { return app.log }

// Metrics returns the lifecycle metrics.
func (app *Application) Metrics() *Metrics { return app.metrics }

// Workbench returns the host UI framework.
func (app *Application) Workbench() *workbench.Workbench { return app.wb }

// Document returns the page model.
func (app *Application) Document() *dom.Document { return app.doc }

// Bus returns the shared event bus.
func (app *Application) Bus() *event.Bus { return app.bus }

// Manager returns the primary plugin host.
func (app *Application) Manager() *plugin.Manager { return app.plugins }

// ObsidianHost returns the Obsidian-style plugin host.
func (app *Application) ObsidianHost() *obsidian.Host { return app.obsidian }

// Storage returns the local storage.
func (app *Application) Storage() *storage.Local { return app.local }

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool { return app.running.Load() }
