// Package whiteboard is a bundled drawing plugin. Its panel holds the tool
// bar; the canvas is mounted into the editor area of the document and
// builds shapes from pointer events. Shapes are rendered as absolutely
// positioned elements. Drawings live only as long as the plugin is
// enabled.
package whiteboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/plugins/entry"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

// ID is the plugin id.
const ID = "whiteboard-plugin"

// PanelID is the id of the tool panel.
const PanelID = ID + ".panel"

// Manifest returns the plugin manifest.
func Manifest() *lifecycle.Manifest {
	return &lifecycle.Manifest{
		ID:          ID,
		Name:        "Whiteboard",
		Version:     "1.0.0",
		Description: "Freehand drawing and simple shapes",
		Author:      "ideshell",
	}
}

// Plugin is the whiteboard.
type Plugin struct {
	doc   *dom.Document
	delay time.Duration
	board *Board

	api     *api.API
	install *entry.Installation

	mu     sync.Mutex
	canvas *html.Node
	nodes  map[string]*html.Node
	draft  *html.Node
}

// New creates the plugin drawing into doc. Without a document only the
// tool panel is available.
func New(doc *dom.Document, delay time.Duration) *Plugin {
	return &Plugin{doc: doc, delay: delay, board: NewBoard()}
}

// Board returns the shape model.
func (p *Plugin) Board() *Board {
	return p.board
}

// Canvas returns the mounted canvas element, or nil.
func (p *Plugin) Canvas() *html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canvas
}

// Installation returns the pending activity-bar entry.
func (p *Plugin) Installation() *entry.Installation {
	return p.install
}

// OnLoad installs the activity-bar entry.
func (p *Plugin) OnLoad(ctx context.Context, a *api.API) error {
	p.api = a
	p.install = entry.Install(a, entry.Entry{Icon: "🖌", Title: "Whiteboard", Delay: p.delay}, p.open)
	return nil
}

// OnUnload unmounts the canvas and forgets the drawing.
func (p *Plugin) OnUnload(ctx context.Context) error {
	p.mu.Lock()
	canvas := p.canvas
	p.canvas, p.draft, p.nodes = nil, nil, nil
	p.mu.Unlock()

	p.board.Clear()
	if canvas != nil && p.doc != nil {
		if err := p.doc.Remove(canvas); err != nil {
			return fmt.Errorf("whiteboard: unmount: %w", err)
		}
	}
	return nil
}

func (p *Plugin) open() {
	if err := p.showTools(); err != nil {
		_ = p.api.UI.Notify(workbench.NotificationError, fmt.Sprintf("whiteboard: %v", err))
		return
	}
	if err := p.mount(); err != nil {
		_ = p.api.UI.Notify(workbench.NotificationWarning, fmt.Sprintf("whiteboard: %v", err))
		return
	}
	_ = p.api.UI.OpenEditor(workbench.EditorTab{
		ID:       ID + ".canvas",
		Name:     "Whiteboard",
		Language: "whiteboard",
	})
}

func (p *Plugin) showTools() error {
	current := p.board.Tool()
	views := []workbench.View{workbench.Header("Whiteboard")}
	for _, t := range Tools {
		label := strings.ToUpper(string(t[:1])) + string(t[1:])
		if t == current {
			label = "● " + label
		}
		views = append(views, workbench.Button(label, func() { p.selectTool(t) }))
	}
	views = append(views,
		workbench.View{Kind: "divider"},
		workbench.Button("Clear", p.clear),
		workbench.Text(fmt.Sprintf("Tool: %s · Shapes: %d", current, len(p.board.Shapes()))),
	)
	_, err := p.api.UI.ShowPanel(workbench.SidebarPane{ID: PanelID, Title: "Whiteboard", Views: views})
	return err
}

func (p *Plugin) selectTool(t Tool) {
	if err := p.board.SetTool(t); err != nil {
		return
	}
	p.dropDraft()
	_ = p.showTools()
}

func (p *Plugin) clear() {
	p.board.Clear()

	p.mu.Lock()
	nodes := p.nodes
	p.nodes = make(map[string]*html.Node)
	p.mu.Unlock()

	for _, n := range nodes {
		_ = p.doc.Remove(n)
	}
	p.dropDraft()
	_ = p.showTools()
}

// mount places the canvas into the first matching container. Mounting
// again is a no-op.
func (p *Plugin) mount() error {
	if p.doc == nil {
		return fmt.Errorf("canvas: %w", workbench.ErrUnavailable)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.canvas != nil {
		return nil
	}

	parent, _, err := p.doc.Probe(CanvasSelectors...)
	if err != nil {
		return err
	}
	canvas := p.doc.CreateElement("div", map[string]string{
		"class":       "whiteboard-canvas",
		"data-plugin": ID,
		"style":       "position:relative;width:100%;height:100%;touch-action:none",
	})
	p.doc.Append(parent, canvas)
	p.doc.AddEventListener(canvas, "pointerdown", p.pointerDown)
	p.doc.AddEventListener(canvas, "pointermove", p.pointerMove)
	p.doc.AddEventListener(canvas, "pointerup", p.pointerUp)
	p.canvas = canvas
	p.nodes = make(map[string]*html.Node)
	return nil
}

func (p *Plugin) pointerDown(ev dom.Event) {
	s, done := p.board.Down(Point{X: ev.X, Y: ev.Y})
	if done {
		p.commit(s)
		return
	}
	p.preview(s)
}

func (p *Plugin) pointerMove(ev dom.Event) {
	if s, ok := p.board.Move(Point{X: ev.X, Y: ev.Y}); ok {
		p.preview(s)
	}
}

func (p *Plugin) pointerUp(ev dom.Event) {
	s, ok := p.board.Up(Point{X: ev.X, Y: ev.Y})
	p.dropDraft()
	if ok {
		p.commit(s)
	}
}

// preview replaces the in-progress element.
func (p *Plugin) preview(s Shape) {
	p.mu.Lock()
	canvas := p.canvas
	p.mu.Unlock()
	if canvas == nil {
		return
	}

	el := renderShape(p.doc, s)
	p.doc.SetAttr(el, "class", dom.Attr(el, "class")+" wb-draft")
	p.dropDraft()
	p.doc.Append(canvas, el)

	p.mu.Lock()
	p.draft = el
	p.mu.Unlock()
}

func (p *Plugin) dropDraft() {
	p.mu.Lock()
	el := p.draft
	p.draft = nil
	p.mu.Unlock()
	if el != nil {
		_ = p.doc.Remove(el)
	}
}

func (p *Plugin) commit(s Shape) {
	p.mu.Lock()
	canvas := p.canvas
	p.mu.Unlock()
	if canvas == nil {
		return
	}

	el := renderShape(p.doc, s)
	p.doc.Append(canvas, el)

	p.mu.Lock()
	if p.nodes != nil {
		p.nodes[s.ID] = el
	}
	p.mu.Unlock()
}
