package app

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/ideshell/internal/ai"
	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/config"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin"
	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/plugin/obsidian"
	"github.com/dshills/ideshell/internal/plugins"
	"github.com/dshills/ideshell/internal/settings"
	"github.com/dshills/ideshell/internal/storage"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

// bootstrapper builds the components in dependency order and undoes the
// ones already built when a later step fails.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 8),
	}
}

func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"storage", b.initStorage},
		{"eventBus", b.initEventBus},
		{"workbench", b.initWorkbench},
		{"ai", b.initAI},
		{"plugins", b.initPlugins},
		{"obsidian", b.initObsidian},
		{"builtins", b.initBuiltins},
		{"scripts", b.initScripts},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			b.cleanup()
			return err
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	return nil
}

func (b *bootstrapper) initStorage() error {
	cfg := b.app.cfg
	if cfg.Storage.Path == "" {
		b.app.local = storage.NewMemory()
	} else {
		local, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return NewComponentError("storage", "open "+cfg.Storage.Path, err)
		}
		b.app.local = local
	}
	b.app.settings = settings.NewStore(b.app.local)
	return nil
}

func (b *bootstrapper) initEventBus() error {
	b.app.bus = event.NewBus(event.WithLogger(b.app.log.WithComponent("event")))
	b.app.subs = newSubscriptionManager(b.app)
	b.app.subs.subscribe()
	return nil
}

func (b *bootstrapper) initWorkbench() error {
	b.app.wb = workbench.New()
	b.app.doc = b.opts.Document
	if b.app.doc == nil {
		b.app.doc = dom.New()
	}
	b.app.bridge = bridge.New(
		bridge.NewStructured(b.app.wb, b.app.doc),
		bridge.NewDOM(b.app.doc),
		b.app.log.WithComponent("bridge"),
	)
	return nil
}

func (b *bootstrapper) initAI() error {
	cfg := b.app.cfg.AI
	provider, err := ai.FromConfig(ai.Config{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		APIKeyEnv: cfg.APIKeyEnv,
		BaseURL:   cfg.BaseURL,
		Breaker:   ai.BreakerConfig{MaxFailures: cfg.MaxFailures},
	})
	if err != nil {
		return NewComponentError("ai", "configure "+cfg.Provider, err)
	}
	b.app.ai = provider
	return nil
}

func (b *bootstrapper) initPlugins() error {
	log := b.app.log.WithComponent("plugins")
	host := &api.Host{
		Bus:       b.app.bus,
		Settings:  b.app.settings,
		Bridge:    b.app.bridge,
		Workbench: b.app.wb,
		AI:        b.app.ai,
		Logger:    log,
	}
	b.app.plugins = plugin.NewManager(host,
		plugin.WithLogger(log),
		plugin.WithScriptTimeout(b.app.cfg.Plugins.ScriptTimeout.Duration),
	)
	return nil
}

func (b *bootstrapper) initObsidian() error {
	log := b.app.log.WithComponent("obsidian")
	oa := obsidian.NewApp(obsidian.AppConfig{
		Workbench: b.app.wb,
		Document:  b.app.doc,
		Bridge:    b.app.bridge,
		Bus:       b.app.bus,
		Settings:  b.app.settings,
		Local:     b.app.local,
		Logger:    log,
	})
	b.app.obsidian = obsidian.NewHost(oa, b.app.bus, log)
	return nil
}

func (b *bootstrapper) initBuiltins() error {
	cfg := b.app.cfg.Plugins
	delay := cfg.StartupDelay.Duration
	if delay == 0 {
		delay = -1
	}
	opts := plugins.Options{
		Delay:            delay,
		Document:         b.app.doc,
		FeedPath:         cfg.FeedPath,
		FeedSchedule:     cfg.FeedSchedule,
		ObsidianInterval: b.opts.StatusInterval,
	}
	err := errors.Join(
		plugins.Register(b.app.plugins, opts),
		plugins.RegisterObsidian(b.app.obsidian, opts),
	)
	if err != nil {
		return NewComponentError("plugins", "register builtins", err)
	}
	return nil
}

func (b *bootstrapper) initScripts() error {
	dirs := b.app.cfg.Plugins.ScriptDirs
	if len(dirs) == 0 {
		return nil
	}
	found, err := b.app.plugins.LoadScripts(dirs...)
	if found == nil && err != nil {
		return NewComponentError("scripts", "discover", err)
	}
	// Individual broken scripts are logged by the manager and skipped.
	b.app.log.Info("found %d script plugins in %v", len(found), dirs)
	return nil
}

// cleanup undoes completed steps in reverse order.
func (b *bootstrapper) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(ctx, b.initOrder[i])
	}
}

func (b *bootstrapper) cleanupComponent(ctx context.Context, component string) {
	switch component {
	case "eventBus":
		if b.app.subs != nil {
			b.app.subs.unsubscribe()
		}
	case "plugins", "builtins", "scripts":
		if b.app.plugins != nil {
			_ = b.app.plugins.DisableAll(ctx)
		}
	case "obsidian":
		if b.app.obsidian != nil {
			_ = b.app.obsidian.DisableAll(ctx)
		}
	}
}

// applyConfig keeps cfg for later reloads.
func (b *bootstrapper) applyConfig(cfg *config.Config) {
	b.app.cfg = cfg
	b.app.log.SetLevel(ParseLogLevel(cfg.Log.Level))
}
