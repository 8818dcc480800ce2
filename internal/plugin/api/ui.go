package api

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/workbench"
)

// ErrDuplicateView is returned when a view type is registered twice.
var ErrDuplicateView = errors.New("api: view type already registered")

// ViewFunc renders the content of a registered view.
type ViewFunc func() []workbench.View

// SettingTab is a settings page contributed by a plugin.
type SettingTab struct {
	ID     string
	Name   string
	Render ViewFunc
}

// UI is the ui namespace.
type UI struct {
	api    *API
	bridge bridge.Bridge
	wb     *workbench.Workbench

	mu    sync.Mutex
	views map[string]ViewFunc
}

// AddRibbonIcon adds a clickable activity-bar entry through the bridge.
func (u *UI) AddRibbonIcon(icon, title string, onClick func()) (*bridge.Handle, error) {
	if err := u.api.check(); err != nil {
		return nil, err
	}
	if u.bridge == nil {
		return nil, fmt.Errorf("ribbon icon: %w", workbench.ErrUnavailable)
	}
	h, err := u.bridge.AddRibbonIcon(icon, title, onClick)
	if err != nil {
		return nil, err
	}
	u.api.track(func() { _ = h.Remove() })
	return h, nil
}

// AddStatusBarItem adds a status-bar segment through the bridge.
func (u *UI) AddStatusBarItem(text string) (*bridge.Handle, error) {
	if err := u.api.check(); err != nil {
		return nil, err
	}
	if u.bridge == nil {
		return nil, fmt.Errorf("status bar item: %w", workbench.ErrUnavailable)
	}
	h, err := u.bridge.AddStatusBarItem(text)
	if err != nil {
		return nil, err
	}
	u.api.track(func() { _ = h.Remove() })
	return h, nil
}

// ShowPanel renders pane in the sidebar through the bridge and shows it.
// The panel is removed when the plugin is disabled.
func (u *UI) ShowPanel(pane workbench.SidebarPane) (*bridge.Handle, error) {
	if err := u.api.check(); err != nil {
		return nil, err
	}
	if u.bridge == nil {
		return nil, fmt.Errorf("panel: %w", workbench.ErrUnavailable)
	}
	h, err := u.bridge.ShowPanel(pane)
	if err != nil {
		return nil, err
	}
	u.api.track(func() { _ = h.Remove() })
	return h, nil
}

// AddActivityBarItem adds item to the activity bar. onClick runs when that
// item is clicked.
func (u *UI) AddActivityBarItem(item workbench.ActivityBarItem, onClick func()) error {
	if err := u.api.check(); err != nil {
		return err
	}
	if u.wb == nil || u.wb.ActivityBar == nil {
		return fmt.Errorf("activity bar: %w", workbench.ErrUnavailable)
	}
	bar := u.wb.ActivityBar
	if err := bar.Add(item); err != nil {
		return err
	}
	unsubscribe := bar.OnClick(func(id string) {
		if id == item.ID && onClick != nil {
			onClick()
		}
	})
	u.api.track(func() {
		unsubscribe()
		_ = bar.Remove(item.ID)
	})
	return nil
}

// AddSidebarItem adds or replaces a sidebar pane. The pane is removed when
// the plugin is disabled.
func (u *UI) AddSidebarItem(pane workbench.SidebarPane) error {
	if err := u.api.check(); err != nil {
		return err
	}
	if u.wb == nil || u.wb.Sidebar == nil {
		return fmt.Errorf("sidebar: %w", workbench.ErrUnavailable)
	}
	sidebar := u.wb.Sidebar
	if err := sidebar.Add(pane); err != nil {
		return err
	}
	u.api.track(func() { _ = sidebar.Remove(pane.ID) })
	return nil
}

// ShowSidebar makes the pane with id current.
func (u *UI) ShowSidebar(id string) error {
	if err := u.api.check(); err != nil {
		return err
	}
	if u.wb == nil || u.wb.Sidebar == nil {
		return fmt.Errorf("sidebar: %w", workbench.ErrUnavailable)
	}
	return u.wb.Sidebar.SetCurrent(id)
}

// OpenEditor opens tab in the editor area.
func (u *UI) OpenEditor(tab workbench.EditorTab) error {
	if err := u.api.check(); err != nil {
		return err
	}
	if u.wb == nil || u.wb.Editor == nil {
		return fmt.Errorf("editor: %w", workbench.ErrUnavailable)
	}
	return u.wb.Editor.Open(tab)
}

// Notify shows a notification toast.
func (u *UI) Notify(level workbench.NotificationLevel, message string) error {
	if err := u.api.check(); err != nil {
		return err
	}
	if u.wb == nil || u.wb.Notification == nil {
		return fmt.Errorf("notification: %w", workbench.ErrUnavailable)
	}
	return u.wb.Notification.Open(workbench.Notification{
		ID:      u.api.Utils.GenerateID(),
		Level:   level,
		Message: message,
	})
}

// SetAuxiliaryBar shows or hides the auxiliary bar.
func (u *UI) SetAuxiliaryBar(visible bool) error {
	if err := u.api.check(); err != nil {
		return err
	}
	if u.wb == nil || u.wb.Layout == nil {
		return fmt.Errorf("layout: %w", workbench.ErrUnavailable)
	}
	u.wb.Layout.SetAuxiliaryBar(visible)
	return nil
}

// AddAuxiliaryBarItem adds or replaces an auxiliary-bar tab. The tab is
// removed when the plugin is disabled.
func (u *UI) AddAuxiliaryBarItem(item workbench.AuxiliaryItem) error {
	if err := u.api.check(); err != nil {
		return err
	}
	if u.wb == nil || u.wb.AuxiliaryBar == nil {
		return fmt.Errorf("auxiliary bar: %w", workbench.ErrUnavailable)
	}
	bar := u.wb.AuxiliaryBar
	if err := bar.Add(item); err != nil {
		return err
	}
	u.api.track(func() { _ = bar.Remove(item.ID) })
	return nil
}

// SetCurrentAuxiliaryBar shows the auxiliary-bar tab with id.
func (u *UI) SetCurrentAuxiliaryBar(id string) error {
	if err := u.api.check(); err != nil {
		return err
	}
	if u.wb == nil || u.wb.AuxiliaryBar == nil {
		return fmt.Errorf("auxiliary bar: %w", workbench.ErrUnavailable)
	}
	return u.wb.AuxiliaryBar.SetCurrent(id)
}

// AddSettingTab contributes a settings page, shown as a sidebar pane.
func (u *UI) AddSettingTab(tab SettingTab) error {
	var views []workbench.View
	if tab.Render != nil {
		views = tab.Render()
	}
	return u.AddSidebarItem(workbench.SidebarPane{
		ID:    "settings/" + u.api.id + "/" + tab.ID,
		Title: tab.Name,
		Views: views,
	})
}

// RegisterView registers a renderer for viewType. OpenView shows it.
func (u *UI) RegisterView(viewType string, render ViewFunc) error {
	if err := u.api.check(); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.views == nil {
		u.views = make(map[string]ViewFunc)
	}
	if _, ok := u.views[viewType]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateView, viewType)
	}
	u.views[viewType] = render
	return nil
}

// OpenView renders a registered view into the auxiliary bar and shows it.
func (u *UI) OpenView(viewType string) error {
	u.mu.Lock()
	render, ok := u.views[viewType]
	u.mu.Unlock()
	if !ok {
		return fmt.Errorf("view %q: %w", viewType, workbench.ErrItemNotFound)
	}

	id := u.api.id + "/" + viewType
	if err := u.AddAuxiliaryBarItem(workbench.AuxiliaryItem{ID: id, Name: viewType, Views: render()}); err != nil {
		return err
	}
	if err := u.SetAuxiliaryBar(true); err != nil {
		return err
	}
	return u.SetCurrentAuxiliaryBar(id)
}
