package app

import (
	"sync"

	"github.com/dshills/ideshell/internal/event"
)

// identified is satisfied by every lifecycle record emitted on the bus.
type identified interface {
	ID() string
}

func recordID(args []any) string {
	if len(args) > 0 {
		if rec, ok := args[0].(identified); ok {
			return rec.ID()
		}
	}
	return "?"
}

type subscription struct {
	name     string
	listener *event.Listener
}

// subscriptionManager holds the application's own lifecycle listeners.
type subscriptionManager struct {
	mu   sync.Mutex
	subs []subscription
	app  *Application
}

func newSubscriptionManager(app *Application) *subscriptionManager {
	return &subscriptionManager{app: app}
}

func (sm *subscriptionManager) subscribe() {
	log := sm.app.log.WithComponent("lifecycle")
	metrics := sm.app.metrics

	sm.add(event.PluginRegistered, func(args ...any) error {
		metrics.RecordEvent()
		log.Debug("registered %s", recordID(args))
		return nil
	})
	sm.add(event.PluginEnabled, func(args ...any) error {
		metrics.RecordEvent()
		log.Info("enabled %s", recordID(args))
		return nil
	})
	sm.add(event.PluginDisabled, func(args ...any) error {
		metrics.RecordEvent()
		metrics.RecordDisable()
		log.Info("disabled %s", recordID(args))
		return nil
	})
	sm.add(event.PluginError, func(args ...any) error {
		metrics.RecordEvent()
		metrics.RecordPluginError()
		var err any
		if len(args) > 1 {
			err = args[1]
		}
		log.Warn("plugin %s failed: %v", recordID(args), err)
		return nil
	})
}

func (sm *subscriptionManager) add(name string, fn event.HandlerFunc) {
	l := sm.app.bus.OnFunc(name, fn)
	sm.mu.Lock()
	sm.subs = append(sm.subs, subscription{name: name, listener: l})
	sm.mu.Unlock()
}

func (sm *subscriptionManager) unsubscribe() {
	sm.mu.Lock()
	subs := sm.subs
	sm.subs = nil
	sm.mu.Unlock()

	for _, s := range subs {
		sm.app.bus.Off(s.name, s.listener)
	}
}

// count returns the number of live subscriptions.
func (sm *subscriptionManager) count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.subs)
}
