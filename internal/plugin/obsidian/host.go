package obsidian

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
)

// Record is the registry entry of an Obsidian-style plugin.
type Record = lifecycle.Record[Plugin, *App]

// Host is the registry for Obsidian-style plugins. It shares the
// lifecycle rules of the primary host with two differences: instances are
// built at registration, and disable disposes the instance after onunload.
type Host struct {
	mu    sync.RWMutex
	ctors map[string]Constructor

	app *App
	reg *lifecycle.Registry[Plugin, *App]
}

// NewHost creates a host whose plugins share app. Lifecycle events go to
// bus; a nil bus gets a private one.
func NewHost(app *App, bus *event.Bus, log Logger) *Host {
	if log == nil {
		log = nopLogger{}
	}
	h := &Host{
		ctors: make(map[string]Constructor),
		app:   app,
	}
	h.reg = lifecycle.NewRegistry(lifecycle.Strategy[Plugin, *App]{
		Eager: true,
		New:   h.construct,
		Context: func(*lifecycle.Manifest) (*App, error) {
			return h.app, nil
		},
		Load: func(ctx context.Context, p Plugin, _ *App) error {
			return p.OnLoad(ctx)
		},
		Unload: func(ctx context.Context, p Plugin) error {
			if err := p.OnUnload(ctx); err != nil {
				return err
			}
			return p.Dispose()
		},
	}, bus, log)
	return h
}

func (h *Host) construct(m *lifecycle.Manifest) (Plugin, error) {
	h.mu.RLock()
	ctor := h.ctors[m.ID]
	h.mu.RUnlock()
	if ctor == nil {
		return nil, lifecycle.ErrNilEntry
	}
	p := ctor(h.app, m)
	if p == nil {
		return nil, fmt.Errorf("constructor returned nil: %w", lifecycle.ErrNilEntry)
	}
	return p, nil
}

// Register constructs the plugin with the shared app and adds it in
// StatusRegistered. A constructor that fails or panics leaves nothing
// registered.
func (h *Host) Register(m *lifecycle.Manifest, ctor Constructor) (*Record, error) {
	if m == nil {
		return nil, lifecycle.ErrNilManifest
	}
	if ctor == nil {
		return nil, fmt.Errorf("plugin %q: %w", m.ID, lifecycle.ErrNilEntry)
	}

	h.mu.Lock()
	if _, exists := h.ctors[m.ID]; exists {
		h.mu.Unlock()
		return nil, fmt.Errorf("plugin %q: %w", m.ID, lifecycle.ErrDuplicatePlugin)
	}
	h.ctors[m.ID] = ctor
	h.mu.Unlock()

	rec, err := h.reg.Register(m)
	if err != nil {
		h.mu.Lock()
		delete(h.ctors, m.ID)
		h.mu.Unlock()
		return nil, err
	}
	return rec, nil
}

// Enable enables id. See lifecycle.Registry.Enable.
func (h *Host) Enable(ctx context.Context, id string) error {
	return h.reg.Enable(ctx, id)
}

// Disable runs onunload and then disposes the instance. If either fails
// the plugin stays enabled.
func (h *Host) Disable(ctx context.Context, id string) error {
	return h.reg.Disable(ctx, id)
}

// EnableAll enables every plugin in registration order, continuing past
// failures.
func (h *Host) EnableAll(ctx context.Context) error {
	return h.reg.EnableAll(ctx)
}

// DisableAll disables every enabled plugin in reverse enable order.
func (h *Host) DisableAll(ctx context.Context) error {
	return h.reg.DisableAll(ctx)
}

// Get returns the record for id.
func (h *Host) Get(id string) (*Record, bool) {
	return h.reg.Get(id)
}

// Status returns the status of id.
func (h *Host) Status(id string) (lifecycle.Status, error) {
	return h.reg.Status(id)
}

// All returns every record in registration order.
func (h *Host) All() []*Record {
	return h.reg.All()
}

// Enabled returns the enabled records in enable order.
func (h *Host) Enabled() []*Record {
	return h.reg.Enabled()
}

// Infos returns a snapshot of every record in registration order.
func (h *Host) Infos() []lifecycle.Info {
	all := h.reg.All()
	infos := make([]lifecycle.Info, len(all))
	for i, rec := range all {
		infos[i] = rec.Snapshot()
	}
	return infos
}

// App returns the shared app.
func (h *Host) App() *App {
	return h.app
}

// Bus returns the bus lifecycle events are emitted on.
func (h *Host) Bus() *event.Bus {
	return h.reg.Bus()
}
