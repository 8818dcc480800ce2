// Package event provides the in-process publish/subscribe bus shared by the
// plugin hosts and the plugins themselves.
//
// Delivery is synchronous and ordered: Emit calls every listener registered
// for a name, in registration order, before returning. A listener that
// returns an error or panics is reported to the bus FaultHook and the
// remaining listeners still run. Nothing a listener does can abort the
// emitting code path.
package event

import (
	"sync"
)

// Plugin lifecycle event names emitted by the plugin hosts.
const (
	PluginRegistered = "pluginRegistered"
	PluginEnabled    = "pluginEnabled"
	PluginDisabled   = "pluginDisabled"
	PluginError      = "pluginError"
)

// HandlerFunc receives the arguments passed to Emit.
type HandlerFunc func(args ...any) error

// Listener is a registration handle. Identity is the pointer: registering
// the same *Listener twice delivers every emission to it twice.
type Listener struct {
	fn HandlerFunc
}

// NewListener wraps fn in a listener handle.
func NewListener(fn HandlerFunc) *Listener {
	return &Listener{fn: fn}
}

// FaultHook is called for every listener failure caught during Emit.
type FaultHook func(name string, err error)

// Logger is the logging surface the bus needs.
type Logger interface {
	Error(msg string, args ...any)
}

// Bus is a named-event publish/subscribe bus. The zero value is not usable;
// create one with NewBus.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]*Listener
	fault     FaultHook
}

// Option configures a Bus.
type Option func(*Bus)

// WithFaultHook replaces the hook that receives listener failures.
func WithFaultHook(h FaultHook) Option {
	return func(b *Bus) {
		if h != nil {
			b.fault = h
		}
	}
}

// WithLogger routes listener failures to logger.
func WithLogger(logger Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.fault = LogFaults(logger)
		}
	}
}

// LogFaults returns a FaultHook that logs each failure at error level.
func LogFaults(logger Logger) FaultHook {
	return func(name string, err error) {
		logger.Error("event listener for %q failed: %v", name, err)
	}
}

// NewBus creates an empty bus. Without options, failures are discarded.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		listeners: make(map[string][]*Listener),
		fault:     func(string, error) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers l for name. There is no uniqueness check.
func (b *Bus) On(name string, l *Listener) {
	if l == nil || l.fn == nil {
		return
	}
	b.mu.Lock()
	b.listeners[name] = append(b.listeners[name], l)
	b.mu.Unlock()
}

// OnFunc registers fn for name and returns its handle for Off.
func (b *Bus) OnFunc(name string, fn HandlerFunc) *Listener {
	l := NewListener(fn)
	b.On(name, l)
	return l
}

// Off removes the first registration of l for name. Unknown listeners are ignored.
func (b *Bus) Off(name string, l *Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.listeners[name]
	for i, existing := range list {
		if existing == l {
			b.listeners[name] = append(list[:i:i], list[i+1:]...)
			if len(b.listeners[name]) == 0 {
				delete(b.listeners, name)
			}
			return
		}
	}
}

// Emit delivers args to every listener registered for name.
// Listeners registered or removed during delivery affect the next Emit only.
func (b *Bus) Emit(name string, args ...any) {
	b.mu.RLock()
	list := make([]*Listener, len(b.listeners[name]))
	copy(list, b.listeners[name])
	fault := b.fault
	b.mu.RUnlock()

	for _, l := range list {
		if err := Dispatch(l.fn, args...); err != nil {
			fault(name, err)
		}
	}
}

// Count returns the number of registrations for name.
func (b *Bus) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}
