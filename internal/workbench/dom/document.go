// Package dom is the rendered element tree of the workbench. It is the
// surface the DOM fallback path writes into when the structured workbench
// services are missing or fail.
//
// Nodes are golang.org/x/net/html nodes; lookups use CSS selectors compiled
// by cascadia. A Document is safe for concurrent use. Event listeners are
// called outside the document lock.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dshills/ideshell/internal/event"
)

// DOM errors.
var (
	// ErrNoContainer is returned by Probe when no candidate selector matches.
	ErrNoContainer = errors.New("dom: no container matched")

	// ErrInvalidSelector is returned for selectors cascadia cannot compile.
	ErrInvalidSelector = errors.New("dom: invalid selector")

	// ErrDetached is returned when a node is not part of the document.
	ErrDetached = errors.New("dom: node not attached")
)

// Skeleton is the markup of an empty workbench.
const Skeleton = `<!DOCTYPE html>
<html>
<head><title>ideshell</title></head>
<body>
<div id="root" class="mo-workbench">
  <div class="mo-activityBar" data-testid="activity-bar">
    <ul class="mo-activityBar__container"></ul>
  </div>
  <div class="mo-sidebar"></div>
  <div class="mo-editor"></div>
  <div class="mo-auxiliaryBar"></div>
  <footer class="mo-statusBar" data-testid="status-bar">
    <div class="mo-statusBar__left"></div>
    <div class="mo-statusBar__right"></div>
  </footer>
</div>
</body>
</html>`

// Candidate container selectors, most specific first.
var (
	ActivityBarSelectors = []string{
		".mo-activityBar__container",
		".mo-activityBar ul",
		"[data-testid=activity-bar]",
		".activitybar",
		"#activity-bar",
	}
	StatusBarSelectors = []string{
		".mo-statusBar__left",
		".mo-statusBar",
		"[data-testid=status-bar]",
		".statusbar",
		"#status-bar",
	}
	SidebarSelectors = []string{
		".mo-sidebar",
		"[data-testid=sidebar]",
		".sidebar",
	}
)

// Event is delivered to listeners by Dispatch.
type Event struct {
	Type   string
	Target *html.Node
	X, Y   int
	Button int
	Key    string
}

// Listener is a registration handle returned by AddEventListener.
type Listener struct {
	fn func(Event)
}

// Document is a mutable element tree.
type Document struct {
	mu        sync.RWMutex
	root      *html.Node
	listeners map[*html.Node]map[string][]*Listener
}

// New returns a document holding the workbench skeleton.
func New() *Document {
	doc, err := Parse(strings.NewReader(Skeleton))
	if err != nil {
		panic(fmt.Sprintf("dom: skeleton: %v", err))
	}
	return doc
}

// Parse builds a document from markup.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{
		root:      root,
		listeners: make(map[*html.Node]map[string][]*Listener),
	}, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or the root if there is none.
func (d *Document) Body() *html.Node {
	if n, err := d.Query("body"); err == nil && n != nil {
		return n
	}
	return d.root
}

// Query returns the first node matching selector, or nil.
func (d *Document) Query(selector string) (*html.Node, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sel.MatchFirst(d.root), nil
}

// QueryAll returns every node matching selector in document order.
func (d *Document) QueryAll(selector string) ([]*html.Node, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sel.MatchAll(d.root), nil
}

// Probe tries selectors in order and returns the first matching node and the
// selector that found it. Invalid selectors are skipped.
func (d *Document) Probe(selectors ...string) (*html.Node, string, error) {
	for _, s := range selectors {
		n, err := d.Query(s)
		if err != nil || n == nil {
			continue
		}
		return n, s, nil
	}
	return nil, "", fmt.Errorf("%w (tried %s)", ErrNoContainer, strings.Join(selectors, ", "))
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string, attrs map[string]string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, k := range sortedKeys(attrs) {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: attrs[k]})
	}
	return n
}

// Append moves child under parent as its last child.
func (d *Document) Append(parent, child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	parent.AppendChild(child)
}

// Remove detaches n and drops the listeners of its subtree.
func (d *Document) Remove(n *html.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.Parent == nil {
		return ErrDetached
	}
	n.Parent.RemoveChild(n)
	d.dropListeners(n)
	return nil
}

// Contains reports whether n is attached to the document.
func (d *Document) Contains(n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// SetText replaces the children of n with a single text node.
func (d *Document) SetText(n *html.Node, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		d.dropListeners(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// SetAttr sets or replaces attribute key on n.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// AddEventListener registers fn for events of typ dispatched to n or its
// descendants.
func (d *Document) AddEventListener(n *html.Node, typ string, fn func(Event)) *Listener {
	l := &Listener{fn: fn}
	d.mu.Lock()
	defer d.mu.Unlock()
	byType := d.listeners[n]
	if byType == nil {
		byType = make(map[string][]*Listener)
		d.listeners[n] = byType
	}
	byType[typ] = append(byType[typ], l)
	return l
}

// RemoveEventListener removes l from n.
func (d *Document) RemoveEventListener(n *html.Node, typ string, l *Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.listeners[n][typ]
	for i, existing := range list {
		if existing == l {
			d.listeners[n][typ] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(d.listeners[n][typ]) == 0 {
		delete(d.listeners[n], typ)
	}
	if len(d.listeners[n]) == 0 {
		delete(d.listeners, n)
	}
}

// ListenerCount returns the number of listeners attached directly to n.
func (d *Document) ListenerCount(n *html.Node) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	count := 0
	for _, list := range d.listeners[n] {
		count += len(list)
	}
	return count
}

// Dispatch delivers ev to target and then to each ancestor. Listener panics
// are recovered. It returns the number of listeners invoked.
func (d *Document) Dispatch(target *html.Node, ev Event) int {
	ev.Target = target

	d.mu.RLock()
	var calls []*Listener
	for n := target; n != nil; n = n.Parent {
		calls = append(calls, d.listeners[n][ev.Type]...)
	}
	d.mu.RUnlock()

	for _, l := range calls {
		l := l
		_ = event.Dispatch(func(...any) error {
			l.fn(ev)
			return nil
		})
	}
	return len(calls)
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders n and its subtree.
func (d *Document) String(n *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// TextContent returns the concatenated text of n's subtree.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func (d *Document) dropListeners(n *html.Node) {
	delete(d.listeners, n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.dropListeners(c)
	}
}

func compile(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, selector, err)
	}
	return sel, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
