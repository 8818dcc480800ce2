// Package api is the capability surface handed to a plugin when it is
// enabled. Each namespace is a struct with one method group:
//
//   - FileSystem: file access (not backed by storage; calls succeed and do nothing)
//   - UI: ribbon icons, status items, activity bar, sidebar, editor, notifications
//   - Events: the shared event bus
//   - Settings: the plugin's own settings
//   - AI: chat, summarize, translate
//   - Utils: debounce, throttle, id generation
//   - Workbench: the raw workbench services, for what the namespaces do not cover
//
// A new API is built for every enable. Release undoes everything registered
// through it (listeners, UI contributions, timers); the plugin manager calls
// it after the plugin is unloaded.
package api

import (
	"errors"
	"sync"

	"github.com/dshills/ideshell/internal/ai"
	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/settings"
	"github.com/dshills/ideshell/internal/workbench"
)

// ErrReleased is returned by calls made through a released API.
var ErrReleased = errors.New("api: capability object released")

// Logger is the logging surface the API needs.
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

// Host holds the shared services capability objects are built from. Any
// field may be nil; the namespace that needs it then reports
// workbench.ErrUnavailable or degrades to a stub.
type Host struct {
	Bus       *event.Bus
	Settings  *settings.Store
	Bridge    bridge.Bridge
	Workbench *workbench.Workbench
	AI        ai.Provider
	Logger    Logger
}

// API is the capability object for one plugin.
type API struct {
	FileSystem *FileSystem
	UI         *UI
	Events     *Events
	Settings   *Settings
	AI         *AI
	Utils      *Utils

	// Workbench is the escape hatch to the host UI framework.
	Workbench *workbench.Workbench

	id  string
	log Logger

	mu       sync.Mutex
	released bool
	cleanups []func()
}

// New builds the capability object for plugin id.
func New(id string, host *Host) *API {
	if host == nil {
		host = &Host{}
	}
	log := host.Logger
	if log == nil {
		log = nopLogger{}
	}

	a := &API{id: id, log: log, Workbench: host.Workbench}
	a.FileSystem = &FileSystem{api: a}
	a.UI = &UI{api: a, bridge: host.Bridge, wb: host.Workbench}
	a.Events = &Events{api: a, bus: host.Bus}
	a.Settings = &Settings{api: a, store: host.Settings}
	a.AI = &AI{api: a, provider: host.AI}
	a.Utils = &Utils{api: a}
	return a
}

// PluginID returns the id of the plugin this API belongs to.
func (a *API) PluginID() string {
	return a.id
}

// Release undoes every registration made through the API, most recent
// first. Further calls through the API fail with ErrReleased. Release is
// idempotent.
func (a *API) Release() {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return
	}
	a.released = true
	cleanups := a.cleanups
	a.cleanups = nil
	a.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	a.log.Debug("released capabilities for %s (%d registrations)", a.id, len(cleanups))
}

// Released reports whether Release has been called.
func (a *API) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

func (a *API) check() error {
	if a.Released() {
		return ErrReleased
	}
	return nil
}

// OnRelease runs fn when the API is released, or immediately if it already
// has been.
func (a *API) OnRelease(fn func()) {
	a.track(fn)
}

// track registers fn to run on Release. If the API is already released fn
// runs immediately.
func (a *API) track(fn func()) {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		fn()
		return
	}
	a.cleanups = append(a.cleanups, fn)
	a.mu.Unlock()
}
