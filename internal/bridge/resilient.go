package bridge

import (
	"errors"
	"fmt"

	"github.com/dshills/ideshell/internal/workbench"
)

// Resilient tries a primary bridge and downgrades to a fallback when the
// primary fails. The downgrade is logged and not reported to the caller.
type Resilient struct {
	primary  Bridge
	fallback Bridge
	log      Logger
}

// NewResilient creates a two-tier bridge.
func NewResilient(primary, fallback Bridge, log Logger) *Resilient {
	if log == nil {
		log = nopLogger{}
	}
	return &Resilient{primary: primary, fallback: fallback, log: log}
}

// New wires the usual pairing: the structured bridge first, the DOM bridge
// second.
func New(s *Structured, d *DOM, log Logger) *Resilient {
	return NewResilient(s, d, log)
}

// AddRibbonIcon implements Bridge.
func (r *Resilient) AddRibbonIcon(icon, title string, onClick func()) (*Handle, error) {
	return r.try("ribbon icon "+title,
		func(b Bridge) (*Handle, error) { return b.AddRibbonIcon(icon, title, onClick) })
}

// AddStatusBarItem implements Bridge.
func (r *Resilient) AddStatusBarItem(text string) (*Handle, error) {
	return r.try("status bar item",
		func(b Bridge) (*Handle, error) { return b.AddStatusBarItem(text) })
}

// ShowPanel implements Bridge.
func (r *Resilient) ShowPanel(pane workbench.SidebarPane) (*Handle, error) {
	return r.try("panel "+pane.ID,
		func(b Bridge) (*Handle, error) { return b.ShowPanel(pane) })
}

func (r *Resilient) try(what string, call func(Bridge) (*Handle, error)) (*Handle, error) {
	if r.primary != nil {
		h, err := call(r.primary)
		if err == nil {
			return h, nil
		}
		if errors.Is(err, workbench.ErrUnavailable) {
			r.log.Debug("%s: structured path unavailable, using DOM", what)
		} else {
			r.log.Warn("%s: structured path failed, using DOM: %v", what, err)
		}
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("%s: %w", what, workbench.ErrUnavailable)
	}
	return call(r.fallback)
}
