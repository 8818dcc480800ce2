package obsidian

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

// ErrDisposed is returned by Base methods after Dispose.
var ErrDisposed = errors.New("plugin disposed")

// Plugin is an Obsidian-style plugin instance.
type Plugin interface {
	OnLoad(ctx context.Context) error
	OnUnload(ctx context.Context) error
	// Dispose releases everything the plugin registered.
	Dispose() error
}

// Constructor builds a plugin from the shared app and its manifest. It is
// called at registration time.
type Constructor func(app *App, m *lifecycle.Manifest) Plugin

// Base implements the registration helpers of an Obsidian plugin. Embed it
// and override OnLoad and OnUnload.
type Base struct {
	App      *App
	Manifest *lifecycle.Manifest

	mu       sync.Mutex
	cleanups []func() error
	disposed bool
}

// NewBase creates a Base for m.
func NewBase(app *App, m *lifecycle.Manifest) *Base {
	return &Base{App: app, Manifest: m}
}

// OnLoad does nothing.
func (b *Base) OnLoad(ctx context.Context) error { return nil }

// OnUnload does nothing.
func (b *Base) OnUnload(ctx context.Context) error { return nil }

// Register adds fn to the teardown run by Dispose.
func (b *Base) Register(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return ErrDisposed
	}
	b.cleanups = append(b.cleanups, fn)
	return nil
}

// AddRibbonIcon adds an icon to the activity bar. The returned handle is
// removed on Dispose.
func (b *Base) AddRibbonIcon(icon, title string, onClick func()) (*bridge.Handle, error) {
	if b.App.UI == nil {
		return nil, fmt.Errorf("ribbon icon: %w", workbench.ErrUnavailable)
	}
	h, err := b.App.UI.AddRibbonIcon(icon, title, onClick)
	if err != nil {
		return nil, err
	}
	if err := b.Register(h.Remove); err != nil {
		_ = h.Remove()
		return nil, err
	}
	return h, nil
}

// AddStatusBarItem adds an empty status bar item. Set its text through the
// handle.
func (b *Base) AddStatusBarItem() (*bridge.Handle, error) {
	if b.App.UI == nil {
		return nil, fmt.Errorf("status bar item: %w", workbench.ErrUnavailable)
	}
	h, err := b.App.UI.AddStatusBarItem("")
	if err != nil {
		return nil, err
	}
	if err := b.Register(h.Remove); err != nil {
		_ = h.Remove()
		return nil, err
	}
	return h, nil
}

// AddCommand registers cmd under "<plugin-id>:<cmd.ID>" and returns the
// full id.
func (b *Base) AddCommand(cmd Command) (string, error) {
	cmd.ID = b.Manifest.ID + ":" + cmd.ID
	if err := b.App.Commands.Add(cmd); err != nil {
		return "", err
	}
	id := cmd.ID
	if err := b.Register(func() error {
		b.App.Commands.Remove(id)
		return nil
	}); err != nil {
		b.App.Commands.Remove(id)
		return "", err
	}
	return id, nil
}

// RegisterDomEvent listens for typ events on n until Dispose.
func (b *Base) RegisterDomEvent(n *html.Node, typ string, fn func(dom.Event)) error {
	doc := b.App.Document
	if doc == nil {
		return fmt.Errorf("dom event: %w", dom.ErrNoContainer)
	}
	l := doc.AddEventListener(n, typ, fn)
	return b.Register(func() error {
		doc.RemoveEventListener(n, typ, l)
		return nil
	})
}

// RegisterEvent listens for a workspace event until Dispose.
func (b *Base) RegisterEvent(name string, fn event.HandlerFunc) error {
	l := b.App.Workspace.On(name, fn)
	return b.Register(func() error {
		b.App.Workspace.Off(name, l)
		return nil
	})
}

// RegisterInterval calls fn every interval until Dispose. Panics in fn are
// logged and do not stop the interval.
func (b *Base) RegisterInterval(fn func(), every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("interval must be positive, got %v", every)
	}

	ticker := time.NewTicker(every)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				err := event.Dispatch(func(...any) error {
					fn()
					return nil
				})
				if err != nil {
					b.App.Log.Error("plugin %s interval: %v", b.Manifest.ID, err)
				}
			}
		}
	}()

	stop := func() error {
		ticker.Stop()
		close(done)
		<-stopped
		return nil
	}
	if err := b.Register(stop); err != nil {
		_ = stop()
		return err
	}
	return nil
}

func dataKey(id string) string {
	return "plugins/" + id + "/data"
}

// LoadData decodes the plugin's saved data into dst and reports whether
// there was any.
func (b *Base) LoadData(dst any) (bool, error) {
	return b.App.Storage.local.Load(dataKey(b.Manifest.ID), dst)
}

// SaveData stores v as the plugin's data. A nil v removes it.
func (b *Base) SaveData(v any) error {
	return b.App.Storage.SaveLocalStorage(dataKey(b.Manifest.ID), v)
}

// Dispose runs every registered teardown in reverse order. Later calls do
// nothing.
func (b *Base) Dispose() error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil
	}
	b.disposed = true
	cleanups := b.cleanups
	b.cleanups = nil
	b.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Disposed reports whether Dispose has run.
func (b *Base) Disposed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed
}
