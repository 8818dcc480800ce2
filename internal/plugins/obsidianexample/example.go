// Package obsidianexample is the sample plugin for the Obsidian-style host.
// It exercises every Base helper: a delayed ribbon icon, a status bar item,
// commands, a DOM listener, a workspace event, an interval and plugin data.
package obsidianexample

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/plugin/obsidian"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

// ID is the plugin id.
const ID = "obsidian-example-plugin"

// PanelID is the id of the sidebar panel.
const PanelID = ID + ".panel"

// NotePath is the vault file the open-note command creates.
const NotePath = "Sample.md"

// StatusText is the initial status bar text.
const StatusText = "Status Bar Text"

// Manifest returns the plugin manifest.
func Manifest() *lifecycle.Manifest {
	return &lifecycle.Manifest{
		ID:          ID,
		Name:        "Sample Plugin",
		Version:     "1.0.0",
		Description: "Demonstrates the Obsidian-style plugin API",
		Author:      "ideshell",
	}
}

// Settings is the plugin data saved in local storage.
type Settings struct {
	Greeting string `json:"greeting"`
}

// DefaultSettings is used when nothing has been saved.
var DefaultSettings = Settings{Greeting: "Hello from the sample plugin"}

// Plugin is the sample plugin.
type Plugin struct {
	*obsidian.Base

	delay    time.Duration
	interval time.Duration

	mu        sync.Mutex
	settings  Settings
	status    *bridge.Handle
	ribbon    *bridge.Handle
	ribbonCh  chan struct{}
	ribbonErr error

	clicks atomic.Int32
	ticks  atomic.Int32
}

// New returns a constructor for the host. The ribbon icon appears after
// delay; interval drives the status bar clock and may be zero.
func New(delay, interval time.Duration) obsidian.Constructor {
	return func(app *obsidian.App, m *lifecycle.Manifest) obsidian.Plugin {
		return &Plugin{
			Base:     obsidian.NewBase(app, m),
			delay:    delay,
			interval: interval,
		}
	}
}

// OnLoad registers the plugin's contributions.
func (p *Plugin) OnLoad(ctx context.Context) error {
	settings := DefaultSettings
	if _, err := p.LoadData(&settings); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	status, err := p.AddStatusBarItem()
	if err != nil {
		return err
	}
	if err := status.SetText(StatusText); err != nil {
		return err
	}

	p.mu.Lock()
	p.settings = settings
	p.status = status
	p.ribbon, p.ribbonErr = nil, nil
	p.ribbonCh = make(chan struct{})
	p.mu.Unlock()

	if _, err := p.AddCommand(obsidian.Command{ID: "open-note", Name: "Open sample note", Callback: p.openNote}); err != nil {
		return err
	}
	if _, err := p.AddCommand(obsidian.Command{ID: "show-panel", Name: "Show sample panel", Callback: p.open}); err != nil {
		return err
	}

	if doc := p.App.Document; doc != nil {
		err := p.RegisterDomEvent(doc.Body(), "click", func(dom.Event) { p.clicks.Add(1) })
		if err != nil {
			return err
		}
	}

	err = p.RegisterEvent(obsidian.EventFileOpen, func(args ...any) error {
		if len(args) > 0 {
			p.setStatus(fmt.Sprintf("Open: %v", args[0]))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if p.interval > 0 {
		if err := p.RegisterInterval(p.tick, p.interval); err != nil {
			return err
		}
	}

	return p.addRibbonLater()
}

// addRibbonLater registers the ribbon icon after the startup delay. A
// timer still pending at dispose is stopped.
func (p *Plugin) addRibbonLater() error {
	p.mu.Lock()
	done := p.ribbonCh
	p.mu.Unlock()

	add := func() {
		h, err := p.AddRibbonIcon("dice", "Sample Plugin", p.open)
		p.mu.Lock()
		p.ribbon, p.ribbonErr = h, err
		p.mu.Unlock()
		close(done)
		if err != nil && !errors.Is(err, obsidian.ErrDisposed) {
			p.App.Log.Warn("plugin %s ribbon: %v", ID, err)
		}
	}

	if p.delay <= 0 {
		add()
		return nil
	}
	timer := time.AfterFunc(p.delay, add)
	return p.Register(func() error {
		timer.Stop()
		return nil
	})
}

// Ribbon waits for the ribbon icon.
func (p *Plugin) Ribbon(ctx context.Context) (*bridge.Handle, error) {
	p.mu.Lock()
	done := p.ribbonCh
	p.mu.Unlock()
	if done == nil {
		return nil, errors.New("plugin not loaded")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ribbon, p.ribbonErr
}

// Status returns the status bar handle.
func (p *Plugin) Status() *bridge.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Clicks returns the number of document clicks seen.
func (p *Plugin) Clicks() int {
	return int(p.clicks.Load())
}

// Ticks returns the number of interval runs.
func (p *Plugin) Ticks() int {
	return int(p.ticks.Load())
}

// Greeting returns the configured greeting.
func (p *Plugin) Greeting() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.Greeting
}

// SetGreeting changes the greeting and saves it.
func (p *Plugin) SetGreeting(greeting string) error {
	p.mu.Lock()
	p.settings.Greeting = greeting
	settings := p.settings
	p.mu.Unlock()
	return p.SaveData(settings)
}

func (p *Plugin) setStatus(text string) {
	if h := p.Status(); h != nil {
		_ = h.SetText(text)
	}
}

func (p *Plugin) tick() {
	n := p.ticks.Add(1)
	p.setStatus(fmt.Sprintf("%s · %d", StatusText, n))
}

func (p *Plugin) open() {
	if p.App.UI == nil {
		p.App.Notice(p.Greeting())
		return
	}
	h, err := p.App.UI.ShowPanel(workbench.SidebarPane{
		ID:    PanelID,
		Title: "Sample Plugin",
		Views: []workbench.View{
			workbench.Header("Sample Plugin"),
			workbench.Text(p.Greeting()),
			workbench.Button("Open note", p.openNote),
		},
	})
	if err != nil {
		p.App.Log.Warn("plugin %s panel: %v", ID, err)
		return
	}
	if err := p.Register(h.Remove); err != nil {
		_ = h.Remove()
		return
	}
	p.App.Notice("This is a notice!")
}

func (p *Plugin) openNote() {
	vault := p.App.Vault
	if !vault.Exists(NotePath) {
		if err := vault.Create(NotePath, "# Sample\n\n"+p.Greeting()+"\n"); err != nil {
			p.App.Log.Warn("plugin %s note: %v", ID, err)
			return
		}
	}
	content, err := vault.Read(NotePath)
	if err != nil {
		p.App.Log.Warn("plugin %s note: %v", ID, err)
		return
	}
	if p.App.Editor != nil {
		_ = p.App.Editor.Open(workbench.EditorTab{
			ID:       NotePath,
			Name:     NotePath,
			Language: "markdown",
			Value:    content,
		})
	}
	p.App.Workspace.Trigger(obsidian.EventFileOpen, NotePath)
}
