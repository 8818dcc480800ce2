package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/workbench"
)

// openModule builds the ide module returned by require("ide"):
//
//	ide.plugin                                 -- {id, name, version}
//	ide.ui.add_activity_bar_item(item, fn)     -- item: {id, name, icon, title, sort}
//	ide.ui.add_ribbon_icon(icon, title, fn)    -> id
//	ide.ui.add_status_bar_item(text)           -> id
//	ide.ui.set_status_text(id, text)
//	ide.ui.add_sidebar_item(pane)              -- pane: {id, title, views}
//	ide.ui.show_sidebar(id)
//	ide.ui.show_panel(pane)                    -- like add_sidebar_item + show_sidebar, with DOM fallback
//	ide.ui.open_editor(tab)                    -- tab: {id, name, language, value}
//	ide.ui.notify(message [, level])
//	ide.settings.get(key) / ide.settings.set(key, value) / ide.settings.all()
//	ide.events.on(name, fn) / ide.events.emit(name, ...)
//	ide.utils.generate_id()
//
// Host failures raise Lua errors.
func (p *Plugin) openModule(L *lua.LState) int {
	mod := L.NewTable()

	info := L.NewTable()
	info.RawSetString("id", lua.LString(p.manifest.ID))
	info.RawSetString("name", lua.LString(p.manifest.DisplayName()))
	info.RawSetString("version", lua.LString(p.manifest.Version))
	mod.RawSetString("plugin", info)

	mod.RawSetString("ui", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"add_activity_bar_item": p.addActivityBarItem,
		"add_ribbon_icon":       p.addRibbonIcon,
		"add_status_bar_item":   p.addStatusBarItem,
		"set_status_text":       p.setStatusText,
		"add_sidebar_item":      p.addSidebarItem,
		"show_sidebar":          p.showSidebar,
		"show_panel":            p.showPanel,
		"open_editor":           p.openEditor,
		"notify":                p.notify,
	}))
	mod.RawSetString("settings", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get": p.settingsGet,
		"set": p.settingsSet,
		"all": p.settingsAll,
	}))
	mod.RawSetString("events", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"on":   p.eventsOn,
		"emit": p.eventsEmit,
	}))
	mod.RawSetString("utils", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"generate_id": p.generateID,
	}))

	L.Push(mod)
	return 1
}

// capabilities returns the API of the current load, raising if there is none.
func (p *Plugin) capabilities(L *lua.LState) *api.API {
	p.mu.Lock()
	a := p.api
	p.mu.Unlock()
	if a == nil {
		L.RaiseError("plugin %s is not loaded", p.manifest.ID)
	}
	return a
}

func raise(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%v", err)
	}
}

func optCallback(p *Plugin, L *lua.LState, n int) func() {
	fn, ok := L.Get(n).(*lua.LFunction)
	if !ok {
		return nil
	}
	call := p.callback(fn)
	return func() { call() }
}

func (p *Plugin) addActivityBarItem(L *lua.LState) int {
	a := p.capabilities(L)
	t := L.CheckTable(1)
	item := workbench.ActivityBarItem{
		ID:    tableString(t, "id"),
		Name:  tableString(t, "name"),
		Icon:  tableString(t, "icon"),
		Title: tableString(t, "title"),
		Sort:  tableInt(t, "sort"),
	}
	if item.ID == "" {
		L.ArgError(1, "id is required")
	}
	raise(L, a.UI.AddActivityBarItem(item, optCallback(p, L, 2)))
	return 0
}

func (p *Plugin) addRibbonIcon(L *lua.LState) int {
	a := p.capabilities(L)
	icon := L.CheckString(1)
	title := L.CheckString(2)
	h, err := a.UI.AddRibbonIcon(icon, title, optCallback(p, L, 3))
	raise(L, err)
	L.Push(lua.LString(h.ID))
	return 1
}

func (p *Plugin) addStatusBarItem(L *lua.LState) int {
	a := p.capabilities(L)
	h, err := a.UI.AddStatusBarItem(L.CheckString(1))
	raise(L, err)

	p.mu.Lock()
	if p.handles != nil {
		p.handles[h.ID] = h
	}
	p.mu.Unlock()

	L.Push(lua.LString(h.ID))
	return 1
}

func (p *Plugin) setStatusText(L *lua.LState) int {
	id := L.CheckString(1)
	text := L.CheckString(2)

	p.mu.Lock()
	h := p.handles[id]
	p.mu.Unlock()
	if h == nil {
		L.ArgError(1, "unknown status bar item")
	}
	raise(L, h.SetText(text))
	return 0
}

func (p *Plugin) paneFromTable(t *lua.LTable) workbench.SidebarPane {
	pane := workbench.SidebarPane{
		ID:    tableString(t, "id"),
		Title: tableString(t, "title"),
	}
	if views, ok := t.RawGetString("views").(*lua.LTable); ok {
		pane.Views = p.viewsFromTable(views)
	}
	return pane
}

func (p *Plugin) addSidebarItem(L *lua.LState) int {
	a := p.capabilities(L)
	raise(L, a.UI.AddSidebarItem(p.paneFromTable(L.CheckTable(1))))
	return 0
}

func (p *Plugin) showPanel(L *lua.LState) int {
	a := p.capabilities(L)
	_, err := a.UI.ShowPanel(p.paneFromTable(L.CheckTable(1)))
	raise(L, err)
	return 0
}

func (p *Plugin) showSidebar(L *lua.LState) int {
	raise(L, p.capabilities(L).UI.ShowSidebar(L.CheckString(1)))
	return 0
}

func (p *Plugin) openEditor(L *lua.LState) int {
	a := p.capabilities(L)
	t := L.CheckTable(1)
	raise(L, a.UI.OpenEditor(workbench.EditorTab{
		ID:       tableString(t, "id"),
		Name:     tableString(t, "name"),
		Language: tableString(t, "language"),
		Value:    tableString(t, "value"),
	}))
	return 0
}

func (p *Plugin) notify(L *lua.LState) int {
	a := p.capabilities(L)
	msg := L.CheckString(1)
	level := workbench.NotificationLevel(L.OptString(2, string(workbench.NotificationInfo)))
	raise(L, a.UI.Notify(level, msg))
	return 0
}

func (p *Plugin) settingsGet(L *lua.LState) int {
	v, ok := p.capabilities(L).Settings.Get(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(ToLuaValue(L, v))
	return 1
}

func (p *Plugin) settingsSet(L *lua.LState) int {
	a := p.capabilities(L)
	raise(L, a.Settings.Set(L.CheckString(1), ToGoValue(L.Get(2))))
	return 0
}

func (p *Plugin) settingsAll(L *lua.LState) int {
	L.Push(ToLuaValue(L, p.capabilities(L).Settings.GetAll()))
	return 1
}

func (p *Plugin) eventsOn(L *lua.LState) int {
	a := p.capabilities(L)
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	call := p.callback(fn)
	_, err := a.Events.On(name, func(args ...any) error {
		call(args...)
		return nil
	})
	raise(L, err)
	return 0
}

func (p *Plugin) eventsEmit(L *lua.LState) int {
	a := p.capabilities(L)
	name := L.CheckString(1)
	args := make([]any, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, ToGoValue(L.Get(i)))
	}
	raise(L, a.Events.Emit(name, args...))
	return 0
}

func (p *Plugin) generateID(L *lua.LState) int {
	L.Push(lua.LString(p.capabilities(L).Utils.GenerateID()))
	return 1
}

// viewsFromTable converts a list of {kind, text, children, on_click} tables.
func (p *Plugin) viewsFromTable(t *lua.LTable) []workbench.View {
	var views []workbench.View
	for i := 1; i <= t.Len(); i++ {
		vt, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		v := workbench.View{
			Kind: tableString(vt, "kind"),
			Text: tableString(vt, "text"),
		}
		if children, ok := vt.RawGetString("children").(*lua.LTable); ok {
			v.Children = p.viewsFromTable(children)
		}
		if fn, ok := vt.RawGetString("on_click").(*lua.LFunction); ok {
			call := p.callback(fn)
			v.OnClick = func() { call() }
		}
		views = append(views, v)
	}
	return views
}
