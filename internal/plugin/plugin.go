package plugin

import (
	"context"

	"github.com/dshills/ideshell/internal/plugin/api"
)

// Plugin is a plugin instance. OnLoad receives the capability object for
// the current enable cycle; OnUnload is called on disable.
type Plugin interface {
	OnLoad(ctx context.Context, a *api.API) error
	OnUnload(ctx context.Context) error
}

// Factory creates a plugin instance. It is called on every enable.
type Factory func() Plugin

// Funcs adapts a pair of functions to the Plugin interface. Either may be nil.
type Funcs struct {
	Load   func(ctx context.Context, a *api.API) error
	Unload func(ctx context.Context) error
}

// OnLoad calls Load.
func (f *Funcs) OnLoad(ctx context.Context, a *api.API) error {
	if f.Load == nil {
		return nil
	}
	return f.Load(ctx, a)
}

// OnUnload calls Unload.
func (f *Funcs) OnUnload(ctx context.Context) error {
	if f.Unload == nil {
		return nil
	}
	return f.Unload(ctx)
}
