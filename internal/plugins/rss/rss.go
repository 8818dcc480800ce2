// Package rss is a bundled feed reader. It parses a feed (the embedded
// sample by default) and lists its items in a sidebar panel; clicking an
// item opens it as a markdown document.
//
// With a refresh schedule (cron syntax) the feed is re-read in the
// background and the status-bar counter follows it.
package rss

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/robfig/cron/v3"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/plugins/entry"
	"github.com/dshills/ideshell/internal/workbench"
)

// ID is the plugin id.
const ID = "rss-plugin"

// PanelID is the id of the sidebar panel.
const PanelID = ID + ".panel"

// DefaultMaxItems caps the items shown when the maxItems setting is unset.
const DefaultMaxItems = 10

// ErrEmptyFeed is returned when a source yields no data.
var ErrEmptyFeed = errors.New("rss: empty feed")

//go:embed sample.xml
var sample string

// Manifest returns the plugin manifest.
func Manifest() *lifecycle.Manifest {
	return &lifecycle.Manifest{
		ID:          ID,
		Name:        "RSS Reader",
		Version:     "1.0.0",
		Description: "Reads a news feed in the sidebar",
		Author:      "ideshell",
	}
}

// Source returns raw feed data.
type Source func(ctx context.Context) (string, error)

// Embedded returns the bundled sample feed.
func Embedded() Source {
	return func(context.Context) (string, error) { return sample, nil }
}

// File reads the feed from path on every call.
func File(path string) Source {
	return func(context.Context) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// Item is one sanitized feed entry.
type Item struct {
	ID        string
	Title     string
	Link      string
	Summary   string
	Published time.Time
}

// Feed is a parsed feed.
type Feed struct {
	Title string
	Items []Item
}

// Parse parses RSS or Atom data. HTML in descriptions is reduced to text.
func Parse(data string) (*Feed, error) {
	if strings.TrimSpace(data) == "" {
		return nil, ErrEmptyFeed
	}
	f, err := gofeed.NewParser().ParseString(data)
	if err != nil {
		return nil, fmt.Errorf("rss: parse: %w", err)
	}

	policy := bluemonday.StrictPolicy()
	feed := &Feed{Title: f.Title, Items: make([]Item, 0, len(f.Items))}
	for _, it := range f.Items {
		item := Item{
			ID:      it.GUID,
			Title:   strings.TrimSpace(it.Title),
			Link:    it.Link,
			Summary: plain(policy, it.Description),
		}
		if item.ID == "" {
			item.ID = it.Link
		}
		if it.PublishedParsed != nil {
			item.Published = *it.PublishedParsed
		}
		feed.Items = append(feed.Items, item)
	}
	return feed, nil
}

func plain(policy *bluemonday.Policy, s string) string {
	s = html.UnescapeString(policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// Markdown renders the item as a document.
func (it Item) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", it.Title)
	if !it.Published.IsZero() {
		fmt.Fprintf(&b, "_%s_\n\n", it.Published.Format("2006-01-02"))
	}
	if it.Summary != "" {
		b.WriteString(it.Summary)
		b.WriteString("\n\n")
	}
	if it.Link != "" {
		fmt.Fprintf(&b, "[Read more](%s)\n", it.Link)
	}
	return b.String()
}

// Option configures the plugin.
type Option func(*Plugin)

// WithSource sets where the feed is read from.
func WithSource(src Source) Option {
	return func(p *Plugin) { p.source = src }
}

// WithSchedule refreshes the feed on a cron schedule, e.g. "@every 15m".
func WithSchedule(spec string) Option {
	return func(p *Plugin) { p.schedule = spec }
}

// WithDelay postpones the activity-bar entry.
func WithDelay(d time.Duration) Option {
	return func(p *Plugin) { p.delay = d }
}

// Plugin is the feed reader.
type Plugin struct {
	source   Source
	schedule string
	delay    time.Duration

	api     *api.API
	install *entry.Installation
	status  *bridge.Handle
	cron    *cron.Cron

	mu   sync.Mutex
	feed *Feed
}

// New creates the plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{source: Embedded(), delay: entry.DefaultDelay}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnLoad reads the feed, adds the status counter and the activity-bar
// entry, and starts the refresh schedule.
func (p *Plugin) OnLoad(ctx context.Context, a *api.API) error {
	p.api = a
	if _, ok := a.Settings.Get("maxItems"); !ok {
		if err := a.Settings.Set("maxItems", DefaultMaxItems); err != nil {
			return err
		}
	}

	if err := p.Refresh(ctx); err != nil {
		return err
	}

	// The counter is decoration; a workbench without a status bar is fine.
	if h, err := a.UI.AddStatusBarItem(p.statusText()); err == nil {
		p.status = h
	}

	if p.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(p.schedule, p.refreshInBackground); err != nil {
			return fmt.Errorf("rss: schedule %q: %w", p.schedule, err)
		}
		c.Start()
		p.cron = c
	}

	p.install = entry.Install(a, entry.Entry{Icon: "📰", Title: "RSS", Delay: p.delay}, p.open)
	return nil
}

// OnUnload stops the refresh schedule, waiting for a running refresh.
func (p *Plugin) OnUnload(ctx context.Context) error {
	if p.cron == nil {
		return nil
	}
	stopped := p.cron.Stop()
	p.cron = nil
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Installation returns the pending activity-bar entry.
func (p *Plugin) Installation() *entry.Installation {
	return p.install
}

// Feed returns the last feed read.
func (p *Plugin) Feed() *Feed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feed
}

// Refresh re-reads the source. The previous feed is kept on failure.
func (p *Plugin) Refresh(ctx context.Context) error {
	data, err := p.source(ctx)
	if err != nil {
		return fmt.Errorf("rss: read: %w", err)
	}
	feed, err := Parse(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.feed = feed
	p.mu.Unlock()

	if p.status != nil {
		_ = p.status.SetText(p.statusText())
	}
	return nil
}

func (p *Plugin) refreshInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.Refresh(ctx); err != nil {
		_ = p.api.UI.Notify(workbench.NotificationWarning, err.Error())
	}
}

func (p *Plugin) statusText() string {
	return fmt.Sprintf("RSS: %d", len(p.items()))
}

func (p *Plugin) maxItems() int {
	v, _ := p.api.Settings.Get("maxItems")
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return DefaultMaxItems
}

func (p *Plugin) items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.feed == nil {
		return nil
	}
	items := p.feed.Items
	if limit := p.maxItems(); limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (p *Plugin) open() {
	a := p.api
	title := "RSS"
	if f := p.Feed(); f != nil && f.Title != "" {
		title = f.Title
	}

	items := p.items()
	list := make([]workbench.View, 0, len(items))
	for _, it := range items {
		list = append(list, workbench.Item(it.Title, func() { p.openItem(it) }))
	}
	views := []workbench.View{workbench.Header(title)}
	if len(list) == 0 {
		views = append(views, workbench.Text("No items."))
	} else {
		views = append(views, workbench.List(list...))
	}

	if _, err := a.UI.ShowPanel(workbench.SidebarPane{ID: PanelID, Title: title, Views: views}); err != nil {
		_ = a.UI.Notify(workbench.NotificationError, fmt.Sprintf("rss: %v", err))
	}
}

func (p *Plugin) openItem(it Item) {
	_ = p.api.UI.OpenEditor(workbench.EditorTab{
		ID:       "rss/" + it.ID,
		Name:     it.Title,
		Language: "markdown",
		Value:    it.Markdown(),
	})
}
