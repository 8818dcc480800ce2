// Package render draws a workbench on a tcell screen and turns mouse and
// key input back into workbench actions.
//
// Layout, top to bottom:
//
//	row 0        title bar
//	rows 1..h-2  activity bar column | sidebar pane | editor tabs and text
//	row h-1      status bar
//
// The most recent notification replaces the last editor row.
package render

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/ideshell/internal/workbench"
)

// Column widths.
const (
	ActivityBarWidth = 4
	SidebarWidth     = 28
)

// Theme holds the styles used for each region.
type Theme struct {
	Base        tcell.Style
	Title       tcell.Style
	ActivityBar tcell.Style
	Selected    tcell.Style
	Sidebar     tcell.Style
	Header      tcell.Style
	Tab         tcell.Style
	CurrentTab  tcell.Style
	StatusBar   tcell.Style
	Info        tcell.Style
	Warning     tcell.Style
	Error       tcell.Style
}

// DefaultTheme returns a dark palette.
func DefaultTheme() Theme {
	base := tcell.StyleDefault
	return Theme{
		Base:        base,
		Title:       base.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite).Bold(true),
		ActivityBar: base.Background(tcell.ColorDarkSlateGray).Foreground(tcell.ColorSilver),
		Selected:    base.Background(tcell.ColorSilver).Foreground(tcell.ColorBlack),
		Sidebar:     base.Background(tcell.ColorBlack).Foreground(tcell.ColorSilver),
		Header:      base.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite).Bold(true),
		Tab:         base.Foreground(tcell.ColorGray),
		CurrentTab:  base.Foreground(tcell.ColorWhite).Underline(true),
		StatusBar:   base.Background(tcell.ColorTeal).Foreground(tcell.ColorWhite),
		Info:        base.Foreground(tcell.ColorAqua),
		Warning:     base.Foreground(tcell.ColorYellow),
		Error:       base.Foreground(tcell.ColorRed).Bold(true),
	}
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTheme replaces the default theme.
func WithTheme(t Theme) Option {
	return func(r *Renderer) { r.theme = t }
}

// WithTitle sets the title bar prefix.
func WithTitle(title string) Option {
	return func(r *Renderer) { r.title = title }
}

type region struct {
	x0, y0, x1, y1 int
	fn             func()
}

func (g region) contains(x, y int) bool {
	return x >= g.x0 && x < g.x1 && y >= g.y0 && y < g.y1
}

// Renderer draws a workbench.
type Renderer struct {
	screen tcell.Screen
	wb     *workbench.Workbench
	theme  Theme
	title  string

	mu      sync.Mutex
	targets []region
	pressed bool

	watchOnce sync.Once
}

// New creates a renderer for wb on an initialised screen.
func New(screen tcell.Screen, wb *workbench.Workbench, opts ...Option) *Renderer {
	r := &Renderer{
		screen: screen,
		wb:     wb,
		theme:  DefaultTheme(),
		title:  "ideshell",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewTerminal opens the controlling terminal with mouse support.
func NewTerminal() (tcell.Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	screen.EnablePaste()
	return screen, nil
}

// Draw renders the current workbench state and shows it.
func (r *Renderer) Draw() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets = r.targets[:0]
	w, h := r.screen.Size()
	r.screen.Fill(' ', r.theme.Base)
	if w <= 0 || h <= 0 {
		r.screen.Show()
		return
	}

	r.drawTitle(w)
	if h > 2 {
		x := r.drawActivityBar(h)
		x = r.drawSidebar(x, h)
		r.drawEditor(x, w, h)
	}
	if h > 1 {
		r.drawStatusBar(w, h-1)
	}
	r.screen.Show()
}

func (r *Renderer) drawTitle(w int) {
	fill(r.screen, 0, 0, w, 1, r.theme.Title)
	title := " " + r.title
	if ed := r.wb.Editor; ed != nil {
		if tab, ok := ed.CurrentTab(); ok {
			title += " · " + tab.Name
		}
	}
	put(r.screen, 0, 0, w, title, r.theme.Title)
}

func (r *Renderer) drawActivityBar(h int) int {
	ab := r.wb.ActivityBar
	if ab == nil {
		return 0
	}
	fill(r.screen, 0, 1, ActivityBarWidth, h-2, r.theme.ActivityBar)
	selected := ab.Selected()
	for i, item := range ab.Items() {
		y := 1 + i
		if y >= h-1 {
			break
		}
		style := r.theme.ActivityBar
		if item.ID == selected {
			style = r.theme.Selected
			fill(r.screen, 0, y, ActivityBarWidth, 1, style)
		}
		put(r.screen, 1, y, ActivityBarWidth-1, item.Icon, style)
		id := item.ID
		r.targets = append(r.targets, region{0, y, ActivityBarWidth, y + 1, func() { _ = ab.Click(id) }})
	}
	return ActivityBarWidth
}

func (r *Renderer) drawSidebar(x, h int) int {
	if r.wb.Sidebar == nil {
		return x
	}
	pane, ok := r.wb.Sidebar.Current()
	if !ok {
		return x
	}
	fill(r.screen, x, 1, SidebarWidth, h-2, r.theme.Sidebar)
	put(r.screen, x+1, 1, SidebarWidth-2, strings.ToUpper(pane.Title), r.theme.Header)

	y := 2
	var draw func(v workbench.View, indent int)
	draw = func(v workbench.View, indent int) {
		if y >= h-1 {
			return
		}
		left, width := x+1+indent, SidebarWidth-2-indent
		switch v.Kind {
		case "header":
			put(r.screen, left, y, width, v.Text, r.theme.Header)
		case "list":
			for _, c := range v.Children {
				draw(c, indent)
			}
			return
		case "item":
			put(r.screen, left, y, width, "• "+v.Text, r.theme.Sidebar)
		case "button":
			put(r.screen, left, y, width, "["+v.Text+"]", r.theme.Sidebar)
		case "divider":
			put(r.screen, left, y, width, strings.Repeat("─", width), r.theme.Sidebar)
		default:
			put(r.screen, left, y, width, v.Text, r.theme.Sidebar)
		}
		if v.OnClick != nil {
			r.targets = append(r.targets, region{x, y, x + SidebarWidth, y + 1, v.OnClick})
		}
		y++
		for _, c := range v.Children {
			draw(c, indent+2)
		}
	}
	for _, v := range pane.Views {
		draw(v, 0)
	}
	return x + SidebarWidth
}

func (r *Renderer) drawEditor(x, w, h int) {
	if x >= w {
		return
	}
	width := w - x
	bottom := h - 1

	if ed := r.wb.Editor; ed != nil {
		state := ed.State()
		tx := x + 1
		for _, tab := range state.Tabs {
			label := " " + tab.Name + " "
			style := r.theme.Tab
			if tab.ID == state.Current {
				style = r.theme.CurrentTab
			}
			n := put(r.screen, tx, 1, w-tx, label, style)
			id := tab.ID
			r.targets = append(r.targets, region{tx, 1, tx + n, 2, func() { _ = ed.SetCurrent(id) }})
			tx += n + 1
			if tx >= w {
				break
			}
		}
		if tab, ok := ed.CurrentTab(); ok {
			for i, line := range strings.Split(tab.Value, "\n") {
				y := 2 + i
				if y >= bottom {
					break
				}
				put(r.screen, x+1, y, width-1, line, r.theme.Base)
			}
		}
	}

	if n := r.wb.Notification; n != nil && bottom > 2 {
		if list := n.List(); len(list) > 0 {
			last := list[len(list)-1]
			style := r.theme.Info
			switch last.Level {
			case workbench.NotificationWarning:
				style = r.theme.Warning
			case workbench.NotificationError:
				style = r.theme.Error
			}
			fill(r.screen, x, bottom-1, width, 1, r.theme.Base)
			put(r.screen, x+1, bottom-1, width-1, "! "+last.Message, style)
		}
	}
}

func (r *Renderer) drawStatusBar(w, y int) {
	fill(r.screen, 0, y, w, 1, r.theme.StatusBar)
	sb := r.wb.StatusBar
	if sb == nil {
		return
	}
	var left, right []string
	for _, item := range sb.Items() {
		if item.Align == "right" {
			right = append(right, item.Text)
		} else {
			left = append(left, item.Text)
		}
	}
	put(r.screen, 1, y, w-1, strings.Join(left, "  "), r.theme.StatusBar)
	if len(right) > 0 {
		text := strings.Join(right, "  ")
		put(r.screen, max(1, w-1-uniseg.StringWidth(text)), y, w, text, r.theme.StatusBar)
	}
}

// HandleEvent applies one input event. It reports whether the user asked
// to quit.
func (r *Renderer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyCtrlC, tcell.KeyCtrlQ:
			return true
		case tcell.KeyRune:
			if d := ev.Rune(); d >= '1' && d <= '9' && r.wb.ActivityBar != nil {
				items := r.wb.ActivityBar.Items()
				if i := int(d - '1'); i < len(items) {
					_ = r.wb.ActivityBar.Click(items[i].ID)
				}
			}
		}

	case *tcell.EventMouse:
		x, y := ev.Position()
		down := ev.Buttons()&tcell.Button1 != 0
		r.mu.Lock()
		press := down && !r.pressed
		r.pressed = down
		var fn func()
		if press {
			for _, t := range r.targets {
				if t.contains(x, y) {
					fn = t.fn
					break
				}
			}
		}
		r.mu.Unlock()
		if fn != nil {
			fn()
		}

	case *tcell.EventResize:
		r.screen.Sync()
		r.Draw()
	}
	return false
}

type stopEvent struct{}

type redrawEvent struct{}

// Run draws the workbench, redraws it on every change and handles input
// until the user quits or ctx is done. The caller owns the screen.
func (r *Renderer) Run(ctx context.Context) error {
	r.watchOnce.Do(func() {
		r.wb.OnChange(func() {
			_ = r.screen.PostEvent(tcell.NewEventInterrupt(redrawEvent{}))
		})
	})
	stop := context.AfterFunc(ctx, func() {
		_ = r.screen.PostEvent(tcell.NewEventInterrupt(stopEvent{}))
	})
	defer stop()

	r.Draw()
	for {
		ev := r.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if in, ok := ev.(*tcell.EventInterrupt); ok {
			switch in.Data().(type) {
			case stopEvent:
				return ctx.Err()
			case redrawEvent:
				r.Draw()
			}
			continue
		}
		if r.HandleEvent(ev) {
			return nil
		}
		r.Draw()
	}
}

// Snapshot draws wb on an off-screen w by h grid and returns it as text,
// one line per row with trailing blanks trimmed.
func Snapshot(wb *workbench.Workbench, w, h int) (string, error) {
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("render: invalid size %dx%d", w, h)
	}
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		return "", err
	}
	defer s.Fini()
	s.SetSize(w, h)
	New(s, wb).Draw()

	cells, cw, ch := s.GetContents()
	var b strings.Builder
	for y := 0; y < ch; y++ {
		var line strings.Builder
		for x := 0; x < cw; x++ {
			c := cells[y*cw+x]
			if len(c.Runes) == 0 {
				continue
			}
			line.WriteString(string(c.Runes))
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func fill(s tcell.Screen, x, y, w, h int, style tcell.Style) {
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			s.SetContent(col, row, ' ', nil, style)
		}
	}
}

// put writes text at (x, y) clipped to width cells and returns the cells used.
func put(s tcell.Screen, x, y, width int, text string, style tcell.Style) int {
	used := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		runes := g.Runes()
		cw := g.Width()
		if cw == 0 {
			continue
		}
		if used+cw > width {
			break
		}
		s.SetContent(x+used, y, runes[0], runes[1:], style)
		used += cw
	}
	return used
}
