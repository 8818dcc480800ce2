// Package entry installs the activity-bar entry every bundled plugin
// contributes.
package entry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/workbench"
)

// DefaultDelay lets the workbench finish its own startup before plugins
// add entries.
const DefaultDelay = 100 * time.Millisecond

// Entry describes one activity-bar entry.
type Entry struct {
	Icon  string
	Title string

	// Delay postpones registration. Zero registers synchronously.
	Delay time.Duration
}

// Installation is an entry being registered.
type Installation struct {
	once   sync.Once
	done   chan struct{}
	handle *bridge.Handle
	err    error
}

func (i *Installation) finish(h *bridge.Handle, err error) {
	i.once.Do(func() {
		i.handle, i.err = h, err
		close(i.done)
	})
}

// Wait blocks until the entry is registered and returns its handle.
func (i *Installation) Wait(ctx context.Context) (*bridge.Handle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-i.done:
		return i.handle, i.err
	}
}

// Done is closed once registration has finished or failed. A registration
// still pending when the plugin is disabled fails with api.ErrReleased.
func (i *Installation) Done() <-chan struct{} {
	return i.done
}

// Install registers e as a ribbon icon through the plugin's bridge after
// e.Delay. Clicks run onClick. The icon, and a registration still pending,
// go away when the plugin is disabled. A delayed failure is reported as an
// error notification.
func Install(a *api.API, e Entry, onClick func()) *Installation {
	inst := &Installation{done: make(chan struct{})}

	register := func() error {
		h, err := a.UI.AddRibbonIcon(e.Icon, e.Title, onClick)
		inst.finish(h, err)
		return err
	}

	if e.Delay <= 0 {
		_ = register()
		return inst
	}

	call, _ := a.Utils.Debounce(func() {
		if err := register(); err != nil {
			_ = a.UI.Notify(workbench.NotificationError,
				fmt.Sprintf("%s: %v", e.Title, err))
		}
	}, e.Delay)
	a.OnRelease(func() { inst.finish(nil, api.ErrReleased) })
	call()
	return inst
}
