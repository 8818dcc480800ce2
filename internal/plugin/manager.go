package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/plugin/lua"
)

// Record is the registry entry of a primary-host plugin.
type Record = lifecycle.Record[Plugin, *api.API]

// Logger is the logging surface the manager needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Manager manages the lifecycle of the primary host's plugins.
type Manager struct {
	mu sync.RWMutex

	// Factories by plugin id
	factories map[string]Factory

	reg  *lifecycle.Registry[Plugin, *api.API]
	host *api.Host
	log  Logger

	// Per-call timeout for script plugins
	scriptTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger. It is also used by the registry and
// by script plugins for their print output.
func WithLogger(l Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithScriptTimeout bounds each call into a script plugin.
func WithScriptTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.scriptTimeout = d
	}
}

// NewManager creates a manager. Lifecycle events go to host.Bus; a nil
// host gets an empty one with a private bus.
func NewManager(host *api.Host, opts ...Option) *Manager {
	if host == nil {
		host = &api.Host{}
	}
	if host.Bus == nil {
		host.Bus = event.NewBus()
	}

	m := &Manager{
		factories:     make(map[string]Factory),
		host:          host,
		log:           nopLogger{},
		scriptTimeout: lua.DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.reg = lifecycle.NewRegistry(lifecycle.Strategy[Plugin, *api.API]{
		New:     m.construct,
		Context: func(mf *lifecycle.Manifest) (*api.API, error) { return api.New(mf.ID, m.host), nil },
		Load: func(ctx context.Context, p Plugin, a *api.API) error {
			return p.OnLoad(ctx, a)
		},
		Unload: func(ctx context.Context, p Plugin) error {
			return p.OnUnload(ctx)
		},
		Release: func(a *api.API) { a.Release() },
	}, host.Bus, m.log)
	return m
}

func (m *Manager) construct(mf *lifecycle.Manifest) (Plugin, error) {
	m.mu.RLock()
	factory := m.factories[mf.ID]
	m.mu.RUnlock()
	if factory == nil {
		return nil, lifecycle.ErrNilEntry
	}
	p := factory()
	if p == nil {
		return nil, fmt.Errorf("factory returned nil: %w", lifecycle.ErrNilEntry)
	}
	return p, nil
}

// Register adds a plugin built by factory. It fails with
// lifecycle.ErrDuplicatePlugin if the id is taken; the existing record is
// left untouched.
func (m *Manager) Register(mf *lifecycle.Manifest, factory Factory) (*Record, error) {
	if mf == nil {
		return nil, lifecycle.ErrNilManifest
	}
	if factory == nil {
		return nil, fmt.Errorf("plugin %q: %w", mf.ID, lifecycle.ErrNilEntry)
	}

	m.mu.Lock()
	if _, exists := m.factories[mf.ID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("plugin %q: %w", mf.ID, lifecycle.ErrDuplicatePlugin)
	}
	m.factories[mf.ID] = factory
	m.mu.Unlock()

	rec, err := m.reg.Register(mf)
	if err != nil {
		m.mu.Lock()
		delete(m.factories, mf.ID)
		m.mu.Unlock()
		return nil, err
	}
	return rec, nil
}

// RegisterScript adds a Lua script plugin. Every enable starts a fresh
// Lua state running the manifest's main file.
func (m *Manager) RegisterScript(mf *lifecycle.Manifest) (*Record, error) {
	if mf == nil {
		return nil, lifecycle.ErrNilManifest
	}
	mf = mf.Clone()
	return m.Register(mf, func() Plugin {
		return lua.New(mf, lua.WithLogger(m.log), lua.WithTimeout(m.scriptTimeout))
	})
}

// Enable enables id. See lifecycle.Registry.Enable.
func (m *Manager) Enable(ctx context.Context, id string) error {
	return m.reg.Enable(ctx, id)
}

// Disable disables id. See lifecycle.Registry.Disable.
func (m *Manager) Disable(ctx context.Context, id string) error {
	return m.reg.Disable(ctx, id)
}

// EnableAll enables every plugin in registration order, continuing past
// failures.
func (m *Manager) EnableAll(ctx context.Context) error {
	return m.reg.EnableAll(ctx)
}

// DisableAll disables every enabled plugin in reverse enable order.
func (m *Manager) DisableAll(ctx context.Context) error {
	return m.reg.DisableAll(ctx)
}

// Get returns the record for id.
func (m *Manager) Get(id string) (*Record, bool) {
	return m.reg.Get(id)
}

// Status returns the status of id.
func (m *Manager) Status(id string) (lifecycle.Status, error) {
	return m.reg.Status(id)
}

// All returns every record in registration order.
func (m *Manager) All() []*Record {
	return m.reg.All()
}

// Enabled returns the enabled records in enable order.
func (m *Manager) Enabled() []*Record {
	return m.reg.Enabled()
}

// Infos returns a snapshot of every record in registration order.
func (m *Manager) Infos() []lifecycle.Info {
	all := m.reg.All()
	infos := make([]lifecycle.Info, len(all))
	for i, rec := range all {
		infos[i] = rec.Snapshot()
	}
	return infos
}

// Count returns the number of registered plugins.
func (m *Manager) Count() int {
	return m.reg.Count()
}

// Errors returns the recorded failure of every plugin that has one.
func (m *Manager) Errors() map[string]error {
	return m.reg.Errors()
}

// Bus returns the bus lifecycle events are emitted on.
func (m *Manager) Bus() *event.Bus {
	return m.reg.Bus()
}

// Host returns the services handed to plugins.
func (m *Manager) Host() *api.Host {
	return m.host
}
