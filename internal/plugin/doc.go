// Package plugin is the primary plugin host of the IDE shell.
//
// A Manager owns a registry of plugins described by manifests. Plugins are
// either compiled into the host (registered with a Factory) or Lua scripts
// found on the plugin search paths. Each plugin moves through the states
//
//	Registered -> Enabled -> Disabled -> Enabled -> ...
//	Registered|Enabled -> Error (failed enable)
//
// # Quick Start
//
//	host := &api.Host{Bus: bus, Settings: store, Bridge: br, Workbench: wb}
//	mgr := plugin.NewManager(host, plugin.WithLogger(logger))
//
//	mgr.Register(&lifecycle.Manifest{ID: "hello-plugin", Version: "1.0.0"},
//	    func() plugin.Plugin { return hello.New(br) })
//
//	if _, err := mgr.LoadScripts(plugin.DefaultPluginPaths()...); err != nil {
//	    log.Printf("some scripts were skipped: %v", err)
//	}
//	if err := mgr.EnableAll(ctx); err != nil {
//	    log.Printf("some plugins failed to enable: %v", err)
//	}
//	defer mgr.DisableAll(context.Background())
//
// # Capabilities
//
// Every enable hands the plugin a fresh *api.API scoped to its id. Listeners,
// UI items and timers registered through it are released on disable, so the
// next enable starts clean.
//
// # Script plugins
//
// Single-file plugin:
//
//	~/.config/ideshell/plugins/word-count.lua
//
// Directory plugin:
//
//	~/.config/ideshell/plugins/word-count/
//	├── plugin.json
//	└── init.lua
//
// Scripts define global onload() and onunload() functions and reach the host
// through require("ide"). See package lua for the module surface.
//
// # Lifecycle events
//
// The registry emits pluginRegistered, pluginEnabled, pluginDisabled and
// pluginError on the host bus with the record as the first argument;
// pluginError carries the error as the second.
package plugin
