// Package hello is the smallest bundled plugin: an activity-bar entry that
// opens a greeting panel and a welcome document.
package hello

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/plugins/entry"
	"github.com/dshills/ideshell/internal/workbench"
)

// ID is the plugin id.
const ID = "hello-plugin"

// PanelID is the id of the sidebar panel.
const PanelID = ID + ".panel"

// Manifest returns the plugin manifest.
func Manifest() *lifecycle.Manifest {
	return &lifecycle.Manifest{
		ID:          ID,
		Name:        "Hello World",
		Version:     "1.0.0",
		Description: "Greets from the sidebar",
		Author:      "ideshell",
	}
}

// Plugin is the hello plugin.
type Plugin struct {
	delay time.Duration

	api     *api.API
	install *entry.Installation
	greeted atomic.Int32
}

// New creates the plugin. delay postpones the activity-bar entry.
func New(delay time.Duration) *Plugin {
	return &Plugin{delay: delay}
}

// OnLoad installs the activity-bar entry.
func (p *Plugin) OnLoad(ctx context.Context, a *api.API) error {
	p.api = a
	p.install = entry.Install(a, entry.Entry{Icon: "👋", Title: "Hello", Delay: p.delay}, p.open)
	return nil
}

// OnUnload does nothing; the entry goes with the capability object.
func (p *Plugin) OnUnload(ctx context.Context) error {
	return nil
}

// Installation returns the pending activity-bar entry.
func (p *Plugin) Installation() *entry.Installation {
	return p.install
}

// Greeted returns how often the greet button was pressed.
func (p *Plugin) Greeted() int {
	return int(p.greeted.Load())
}

func (p *Plugin) open() {
	a := p.api
	_, err := a.UI.ShowPanel(workbench.SidebarPane{
		ID:    PanelID,
		Title: "Hello",
		Views: []workbench.View{
			workbench.Header("Hello, World!"),
			workbench.Text("This panel was contributed by " + a.PluginID() + "."),
			workbench.Button("Greet", p.greet),
		},
	})
	if err != nil {
		_ = a.UI.Notify(workbench.NotificationError, fmt.Sprintf("hello: %v", err))
		return
	}

	// The editor is optional; the panel is the contribution.
	_ = a.UI.OpenEditor(workbench.EditorTab{
		ID:       "hello.md",
		Name:     "hello.md",
		Language: "markdown",
		Value:    "# Hello\n\nWelcome to ideshell.\n",
	})
}

func (p *Plugin) greet() {
	n := p.greeted.Add(1)
	_ = p.api.UI.Notify(workbench.NotificationInfo, fmt.Sprintf("Hello #%d", n))
}
