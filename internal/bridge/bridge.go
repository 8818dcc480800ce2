// Package bridge puts plugin UI contributions (ribbon icons, status-bar
// items, sidebar panels) on screen. Structured goes through the workbench
// services, DOM writes into the element tree directly, and Resilient tries
// the first and downgrades to the second when it fails.
//
// Plugins receive a Bridge by injection; none of them implement their own
// fallback.
package bridge

import (
	"errors"
	"sync"

	"golang.org/x/net/html"

	"github.com/dshills/ideshell/internal/workbench"
)

// ErrRemoved is returned when a removed handle is used.
var ErrRemoved = errors.New("bridge: handle removed")

// Via names the path a contribution was placed through.
type Via string

const (
	ViaStructured Via = "structured"
	ViaDOM        Via = "dom"
)

// Bridge places UI contributions for plugins.
type Bridge interface {
	// AddRibbonIcon adds a clickable activity-bar entry. onClick may be nil.
	AddRibbonIcon(icon, title string, onClick func()) (*Handle, error)

	// AddStatusBarItem adds a status-bar segment showing text.
	AddStatusBarItem(text string) (*Handle, error)

	// ShowPanel renders pane in the sidebar and shows it. Showing a pane
	// with the id of an existing one replaces it.
	ShowPanel(pane workbench.SidebarPane) (*Handle, error)
}

// Logger is the logging surface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Handle refers to one placed contribution.
type Handle struct {
	// ID identifies the contribution in the workbench or the document.
	ID string

	// Element is the DOM node backing the contribution. For structured
	// contributions it is a hidden placeholder.
	Element *html.Node

	// Via is the path the contribution was placed through.
	Via Via

	mu      sync.Mutex
	removed bool
	setText func(string) error
	remove  func() error
}

// SetText changes the visible text of the contribution.
func (h *Handle) SetText(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return ErrRemoved
	}
	if h.setText == nil {
		return nil
	}
	return h.setText(text)
}

// Remove takes the contribution off screen. Removing twice is a no-op.
func (h *Handle) Remove() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return nil
	}
	h.removed = true
	if h.remove == nil {
		return nil
	}
	return h.remove()
}

// Removed reports whether Remove has been called.
func (h *Handle) Removed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removed
}
