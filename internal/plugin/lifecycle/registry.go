// Package lifecycle implements the plugin registry shared by every plugin
// host: manifests, per-plugin records, dependency checks and the
// Registered -> Enabled -> Disabled -> Enabled state machine.
//
// A host differs from another only in how it builds plugin instances and
// what it hands them on load; that difference is a Strategy.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/ideshell/internal/event"
)

// Strategy tells a Registry how to construct, load and unload one kind of plugin.
type Strategy[P, C any] struct {
	// Eager constructs the instance at registration time instead of at enable time.
	Eager bool

	// New constructs a plugin instance.
	New func(m *Manifest) (P, error)

	// Context builds the capability object handed to Load. It is called on
	// every enable, so a plugin gets a fresh object per cycle unless the
	// strategy deliberately returns a shared one.
	Context func(m *Manifest) (C, error)

	// Load runs the plugin's onload hook.
	Load func(ctx context.Context, p P, c C) error

	// Unload runs the plugin's onunload hook (and any extra teardown).
	Unload func(ctx context.Context, p P) error

	// Release, if set, is called when a capability object is discarded.
	Release func(c C)
}

// Logger is the logging surface the registry needs.
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

// Registry owns the records of one plugin host.
type Registry[P, C any] struct {
	mu sync.RWMutex

	// Records by id
	records map[string]*Record[P, C]

	// Registration order and enable order (for deterministic iteration)
	order   []string
	enabled []string

	strategy Strategy[P, C]
	bus      *event.Bus
	logger   Logger
}

// NewRegistry creates a registry. bus receives lifecycle events; a nil bus
// gets a private one. logger may be nil.
func NewRegistry[P, C any](strategy Strategy[P, C], bus *event.Bus, logger Logger) *Registry[P, C] {
	if bus == nil {
		bus = event.NewBus()
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Registry[P, C]{
		records:  make(map[string]*Record[P, C]),
		strategy: strategy,
		bus:      bus,
		logger:   logger,
	}
}

// Bus returns the bus lifecycle events are emitted on.
func (r *Registry[P, C]) Bus() *event.Bus {
	return r.bus
}

// Register adds a plugin in StatusRegistered and emits PluginRegistered.
// Eager strategies construct the instance here; a constructor failure
// leaves nothing registered.
func (r *Registry[P, C]) Register(m *Manifest) (*Record[P, C], error) {
	if m == nil {
		return nil, ErrNilManifest
	}
	if r.strategy.New == nil {
		return nil, fmt.Errorf("plugin %q: %w", m.ID, ErrNilEntry)
	}

	m = m.Clone()
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}

	// Quick duplicate check before running any plugin code
	if _, exists := r.Get(m.ID); exists {
		return nil, fmt.Errorf("plugin %q: %w", m.ID, ErrDuplicatePlugin)
	}

	rec := newRecord[P, C](m)
	if r.strategy.Eager {
		p, err := r.construct(m)
		if err != nil {
			return nil, err
		}
		rec.setInstance(p)
	}

	r.mu.Lock()
	// Double-check - another goroutine might have registered it
	if _, exists := r.records[m.ID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("plugin %q: %w", m.ID, ErrDuplicatePlugin)
	}
	r.records[m.ID] = rec
	r.order = append(r.order, m.ID)
	r.mu.Unlock()

	r.logger.Debug("registered plugin %s", m)
	r.bus.Emit(event.PluginRegistered, rec)
	return rec, nil
}

// Enable loads a plugin. Already-enabled plugins are left alone. Every
// declared dependency must already be enabled; nothing is enabled
// transitively. A failing onload moves the plugin to StatusError, emits
// PluginError and returns a *RuntimeError wrapping the plugin's error.
//
// Lifecycle events are emitted after the plugin's operation lock is
// released, so listeners may enable or disable the same plugin.
func (r *Registry[P, C]) Enable(ctx context.Context, id string) error {
	rec, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("plugin %q: %w", id, ErrPluginNotFound)
	}
	emit, err := r.enable(ctx, rec)
	emit.send(r.bus)
	return err
}

func (r *Registry[P, C]) enable(ctx context.Context, rec *Record[P, C]) (emission, error) {
	rec.op.Lock()
	defer rec.op.Unlock()

	if rec.Status() == StatusEnabled {
		return emission{}, nil
	}

	id := rec.ID()
	m := rec.Manifest()
	for _, dep := range m.Dependencies {
		if st, err := r.Status(dep); err != nil || st != StatusEnabled {
			return emission{}, fmt.Errorf("plugin %q requires %q: %w", id, dep, ErrUnmetDependency)
		}
	}

	p, held := rec.Instance()

	caps, err := r.capabilities(m)
	if err != nil {
		return r.failEnable(rec, p, held, err)
	}

	if !r.strategy.Eager || !held {
		p, err = r.construct(m)
		if err != nil {
			r.release(caps)
			return r.failEnable(rec, p, false, err)
		}
	}

	if r.strategy.Load != nil {
		if err := call(id, PhaseLoad, func() error { return r.strategy.Load(ctx, p, caps) }); err != nil {
			r.release(caps)
			return r.failEnable(rec, p, true, err)
		}
	}

	rec.setEnabled(p, caps)

	r.mu.Lock()
	r.enabled = append(r.enabled, id)
	r.mu.Unlock()

	r.logger.Info("enabled plugin %s", m)
	return emission{name: event.PluginEnabled, args: []any{rec}}, nil
}

// Disable unloads an enabled plugin and releases its instance and
// capability object. Plugins that are not enabled are left alone. If
// onunload fails the plugin stays enabled, the failure is recorded on the
// record, PluginError is emitted and the error is returned.
func (r *Registry[P, C]) Disable(ctx context.Context, id string) error {
	rec, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("plugin %q: %w", id, ErrPluginNotFound)
	}
	emit, err := r.disable(ctx, rec)
	emit.send(r.bus)
	return err
}

func (r *Registry[P, C]) disable(ctx context.Context, rec *Record[P, C]) (emission, error) {
	rec.op.Lock()
	defer rec.op.Unlock()

	if rec.Status() != StatusEnabled {
		return emission{}, nil
	}

	id := rec.ID()
	if p, held := rec.Instance(); held && r.strategy.Unload != nil {
		if err := call(id, PhaseUnload, func() error { return r.strategy.Unload(ctx, p) }); err != nil {
			rec.setErr(err)
			r.logger.Error("disable %s failed: %v", id, err)
			return emission{name: event.PluginError, args: []any{rec, err}}, err
		}
	}

	if caps, had := rec.setDisabled(); had {
		r.release(caps)
	}

	r.mu.Lock()
	r.removeEnabled(id)
	r.mu.Unlock()

	r.logger.Info("disabled plugin %s", rec.Manifest())
	return emission{name: event.PluginDisabled, args: []any{rec}}, nil
}

// emission is a lifecycle event held back until the operation lock is free.
type emission struct {
	name string
	args []any
}

func (e emission) send(bus *event.Bus) {
	if e.name != "" {
		bus.Emit(e.name, e.args...)
	}
}

// EnableAll enables every registered plugin in registration order. A
// failure is logged and the remaining plugins are still attempted; all
// failures are returned joined.
func (r *Registry[P, C]) EnableAll(ctx context.Context) error {
	var errs []error
	for _, rec := range r.All() {
		if err := r.Enable(ctx, rec.ID()); err != nil {
			r.logger.Warn("enable %s: %v", rec.ID(), err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to enable %d plugins: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// DisableAll disables enabled plugins in reverse enable order.
func (r *Registry[P, C]) DisableAll(ctx context.Context) error {
	enabled := r.Enabled()

	var errs []error
	for i := len(enabled) - 1; i >= 0; i-- {
		if err := r.Disable(ctx, enabled[i].ID()); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to disable %d plugins: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Get returns the record for id.
func (r *Registry[P, C]) Get(id string) (*Record[P, C], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Status returns the status of id.
func (r *Registry[P, C]) Status(id string) (Status, error) {
	rec, ok := r.Get(id)
	if !ok {
		return StatusRegistered, fmt.Errorf("plugin %q: %w", id, ErrPluginNotFound)
	}
	return rec.Status(), nil
}

// All returns every record in registration order.
func (r *Registry[P, C]) All() []*Record[P, C] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Record[P, C], 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.records[id])
	}
	return result
}

// Enabled returns the enabled records in the order they were enabled.
func (r *Registry[P, C]) Enabled() []*Record[P, C] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Record[P, C], 0, len(r.enabled))
	for _, id := range r.enabled {
		result = append(result, r.records[id])
	}
	return result
}

// Count returns the number of registered plugins.
func (r *Registry[P, C]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Errors returns the recorded failure of every plugin that has one.
func (r *Registry[P, C]) Errors() map[string]error {
	errs := make(map[string]error)
	for _, rec := range r.All() {
		if err := rec.Err(); err != nil {
			errs[rec.ID()] = err
		}
	}
	return errs
}

func (r *Registry[P, C]) construct(m *Manifest) (P, error) {
	var p P
	err := call(m.ID, PhaseConstruct, func() error {
		var err error
		p, err = r.strategy.New(m)
		return err
	})
	return p, err
}

func (r *Registry[P, C]) capabilities(m *Manifest) (C, error) {
	var c C
	if r.strategy.Context == nil {
		return c, nil
	}
	err := call(m.ID, PhaseLoad, func() error {
		var err error
		c, err = r.strategy.Context(m)
		return err
	})
	return c, err
}

func (r *Registry[P, C]) release(c C) {
	if r.strategy.Release != nil {
		r.strategy.Release(c)
	}
}

func (r *Registry[P, C]) failEnable(rec *Record[P, C], p P, held bool, err error) (emission, error) {
	rec.setFailed(p, held, err)
	r.logger.Error("enable %s failed: %v", rec.ID(), err)
	return emission{name: event.PluginError, args: []any{rec, err}}, err
}

// removeEnabled drops id from the enable order.
// Must be called with mu held.
func (r *Registry[P, C]) removeEnabled(id string) {
	for i, n := range r.enabled {
		if n == id {
			r.enabled = append(r.enabled[:i], r.enabled[i+1:]...)
			return
		}
	}
}

// call runs plugin code, converting both a returned error and a panic into
// a *RuntimeError.
func call(id, phase string, fn func() error) error {
	err := event.Dispatch(func(...any) error { return fn() })
	if err == nil {
		return nil
	}
	return &RuntimeError{ID: id, Phase: phase, Err: err}
}
