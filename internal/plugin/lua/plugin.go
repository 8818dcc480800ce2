package lua

import (
	"context"
	"errors"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/plugin/api"
	"github.com/dshills/ideshell/internal/plugin/lifecycle"
)

// Logger is the logging surface script plugins need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Plugin is a script plugin. The script may define global onload() and
// onunload() functions and reaches the host through require("ide").
//
// A Plugin is built per enable: OnLoad creates a fresh Lua state and
// OnUnload closes it.
type Plugin struct {
	manifest *lifecycle.Manifest
	source   string
	timeout  time.Duration
	log      Logger

	mu      sync.Mutex
	state   *State
	exec    *Executor
	cancel  context.CancelFunc
	api     *api.API
	handles map[string]*bridge.Handle
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger sets the logger that receives print output and callback errors.
func WithLogger(l Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.log = l
		}
	}
}

// WithTimeout sets the timeout for each call into the script.
func WithTimeout(d time.Duration) Option {
	return func(p *Plugin) { p.timeout = d }
}

// WithSource runs code instead of the manifest's main file.
func WithSource(code string) Option {
	return func(p *Plugin) { p.source = code }
}

// New creates a script plugin for m.
func New(m *lifecycle.Manifest, opts ...Option) *Plugin {
	p := &Plugin{
		manifest: m,
		timeout:  DefaultExecutionTimeout,
		log:      nopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnLoad starts a Lua state, runs the script and calls its onload.
func (p *Plugin) OnLoad(ctx context.Context, a *api.API) error {
	id := p.manifest.ID

	state := NewState(
		WithExecutionTimeout(p.timeout),
		WithPrint(func(line string) { p.log.Info("[%s] %s", id, line) }),
	)
	exec := NewExecutor(0, func(err error) { p.log.Error("plugin %s callback: %v", id, err) })
	runCtx, cancel := context.WithCancel(context.Background())
	go exec.Run(runCtx)

	p.mu.Lock()
	p.state, p.exec, p.cancel, p.api = state, exec, cancel, a
	p.handles = make(map[string]*bridge.Handle)
	p.mu.Unlock()

	state.Preload("ide", p.openModule)

	err := exec.Do(ctx, func() error {
		var err error
		if p.source != "" {
			err = state.DoString(ctx, p.source)
		} else {
			err = state.DoFile(ctx, p.manifest.MainPath())
		}
		if err != nil {
			return err
		}
		if state.HasFunction("onload") {
			return state.Call(ctx, "onload")
		}
		return nil
	})
	if err != nil {
		p.shutdown()
		return err
	}
	return nil
}

// OnUnload calls the script's onunload and closes the state. If onunload
// fails the state is kept so the plugin stays usable.
func (p *Plugin) OnUnload(ctx context.Context) error {
	p.mu.Lock()
	state, exec := p.state, p.exec
	p.mu.Unlock()
	if exec == nil {
		return ErrNotLoaded
	}

	err := exec.Do(ctx, func() error {
		if state.HasFunction("onunload") {
			return state.Call(ctx, "onunload")
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.shutdown()
	return nil
}

// Flush waits for queued callbacks to finish.
func (p *Plugin) Flush(ctx context.Context) error {
	p.mu.Lock()
	exec := p.exec
	p.mu.Unlock()
	if exec == nil {
		return ErrNotLoaded
	}
	return exec.Flush(ctx)
}

// Loaded reports whether a Lua state is running.
func (p *Plugin) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != nil
}

func (p *Plugin) shutdown() {
	p.mu.Lock()
	state, exec, cancel := p.state, p.exec, p.cancel
	p.state, p.exec, p.cancel, p.api, p.handles = nil, nil, nil, nil, nil
	p.mu.Unlock()

	if exec != nil {
		exec.Close()
	}
	if cancel != nil {
		cancel()
	}
	if state != nil {
		_ = state.Close()
	}
}

// callback wraps a Lua function for use from Go. Calls are queued on the
// executor, so they may come from any goroutine, including from inside a
// running Lua call.
func (p *Plugin) callback(fn *lua.LFunction) func(args ...any) {
	return func(args ...any) {
		p.mu.Lock()
		state, exec := p.state, p.exec
		p.mu.Unlock()
		if exec == nil {
			return
		}
		err := exec.Go(func() error {
			values := make([]lua.LValue, len(args))
			for i, a := range args {
				values[i] = ToLuaValue(state.L, a)
			}
			return state.CallFunction(context.Background(), fn, values...)
		})
		if err != nil && !errors.Is(err, ErrExecutorClosed) {
			p.log.Warn("plugin %s: dropped callback: %v", p.manifest.ID, err)
		}
	}
}
