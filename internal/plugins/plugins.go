// Package plugins registers the bundled plugins with the hosts.
package plugins

import (
	"errors"
	"time"

	"github.com/dshills/ideshell/internal/plugin"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/plugin/obsidian"
	"github.com/dshills/ideshell/internal/plugins/entry"
	"github.com/dshills/ideshell/internal/plugins/hello"
	"github.com/dshills/ideshell/internal/plugins/obsidianexample"
	"github.com/dshills/ideshell/internal/plugins/rss"
	"github.com/dshills/ideshell/internal/plugins/whiteboard"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

// Options tunes the bundled plugins.
type Options struct {
	// Delay postpones every activity-bar entry. Zero uses entry.DefaultDelay;
	// negative registers synchronously.
	Delay time.Duration

	// Document receives the whiteboard canvas.
	Document *dom.Document

	// FeedPath replaces the embedded RSS sample when set.
	FeedPath string

	// FeedSchedule refreshes the feed on a cron schedule when set.
	FeedSchedule string

	// ObsidianInterval drives the sample plugin's status clock. Zero
	// disables it.
	ObsidianInterval time.Duration

	// Disabled lists plugin ids to leave out.
	Disabled []string
}

func (o Options) delay() time.Duration {
	switch {
	case o.Delay == 0:
		return entry.DefaultDelay
	case o.Delay < 0:
		return 0
	}
	return o.Delay
}

func (o Options) skip(id string) bool {
	for _, d := range o.Disabled {
		if d == id {
			return true
		}
	}
	return false
}

// IDs lists the bundled plugin ids for the primary host.
var IDs = []string{hello.ID, rss.ID, whiteboard.ID}

// ObsidianIDs lists the bundled plugin ids for the Obsidian-style host.
var ObsidianIDs = []string{obsidianexample.ID}

// Register adds the bundled plugins to m. Each gets a fresh instance per
// enable.
func Register(m *plugin.Manager, opts Options) error {
	delay := opts.delay()

	rssOpts := []rss.Option{rss.WithDelay(delay)}
	if opts.FeedPath != "" {
		rssOpts = append(rssOpts, rss.WithSource(rss.File(opts.FeedPath)))
	}
	if opts.FeedSchedule != "" {
		rssOpts = append(rssOpts, rss.WithSchedule(opts.FeedSchedule))
	}

	builtins := []struct {
		id      string
		factory plugin.Factory
		mf      func() *lifecycle.Manifest
	}{
		{hello.ID, func() plugin.Plugin { return hello.New(delay) }, hello.Manifest},
		{rss.ID, func() plugin.Plugin { return rss.New(rssOpts...) }, rss.Manifest},
		{whiteboard.ID, func() plugin.Plugin { return whiteboard.New(opts.Document, delay) }, whiteboard.Manifest},
	}

	var errs []error
	for _, b := range builtins {
		if opts.skip(b.id) {
			continue
		}
		if _, err := m.Register(b.mf(), b.factory); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterObsidian adds the bundled Obsidian-style plugins to h.
func RegisterObsidian(h *obsidian.Host, opts Options) error {
	if opts.skip(obsidianexample.ID) {
		return nil
	}
	_, err := h.Register(obsidianexample.Manifest(), obsidianexample.New(opts.delay(), opts.ObsidianInterval))
	return err
}
