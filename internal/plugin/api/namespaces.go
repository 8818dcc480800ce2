package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dshills/ideshell/internal/ai"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/settings"
)

// FileSystem is the fileSystem namespace. It has no backing store: reads
// return nothing and writes are accepted and dropped.
type FileSystem struct {
	api *API
}

// ReadFile returns empty content.
func (f *FileSystem) ReadFile(path string) (string, error) {
	if err := f.api.check(); err != nil {
		return "", err
	}
	f.api.log.Debug("%s: fileSystem.readFile(%s) is a no-op", f.api.id, path)
	return "", nil
}

// WriteFile accepts and drops content.
func (f *FileSystem) WriteFile(path, content string) error {
	if err := f.api.check(); err != nil {
		return err
	}
	f.api.log.Debug("%s: fileSystem.writeFile(%s, %d bytes) is a no-op", f.api.id, path, len(content))
	return nil
}

// DeleteFile does nothing.
func (f *FileSystem) DeleteFile(path string) error {
	return f.api.check()
}

// ListFiles returns no entries.
func (f *FileSystem) ListFiles(dir string) ([]string, error) {
	if err := f.api.check(); err != nil {
		return nil, err
	}
	return nil, nil
}

// CreateFolder does nothing.
func (f *FileSystem) CreateFolder(path string) error {
	return f.api.check()
}

// Events is the events namespace over the shared bus.
type Events struct {
	api *API
	bus *event.Bus
}

// On subscribes fn to name. The subscription is dropped on Release.
func (e *Events) On(name string, fn event.HandlerFunc) (*event.Listener, error) {
	if err := e.api.check(); err != nil {
		return nil, err
	}
	if e.bus == nil {
		return nil, fmt.Errorf("events: no bus")
	}
	l := e.bus.OnFunc(name, fn)
	e.api.track(func() { e.bus.Off(name, l) })
	return l, nil
}

// Off removes a subscription made with On.
func (e *Events) Off(name string, l *event.Listener) {
	if e.bus != nil {
		e.bus.Off(name, l)
	}
}

// Emit broadcasts name to every listener.
func (e *Events) Emit(name string, args ...any) error {
	if err := e.api.check(); err != nil {
		return err
	}
	if e.bus != nil {
		e.bus.Emit(name, args...)
	}
	return nil
}

// Settings is the settings namespace, scoped to the plugin.
type Settings struct {
	api   *API
	store *settings.Store
}

// Get returns the value for key.
func (s *Settings) Get(key string) (any, bool) {
	if s.store == nil {
		return nil, false
	}
	return s.store.Get(s.api.id, key)
}

// Set stores value under key.
func (s *Settings) Set(key string, value any) error {
	if err := s.api.check(); err != nil {
		return err
	}
	if s.store == nil {
		return fmt.Errorf("settings: no store")
	}
	return s.store.Set(s.api.id, key, value)
}

// GetAll returns a copy of every setting of the plugin.
func (s *Settings) GetAll() map[string]any {
	if s.store == nil {
		return map[string]any{}
	}
	return s.store.All(s.api.id)
}

// AI is the ai namespace.
type AI struct {
	api      *API
	provider ai.Provider
}

func (a *AI) backend() ai.Provider {
	if a.provider == nil {
		return ai.Stub{}
	}
	return a.provider
}

// Chat sends a conversation to the provider.
func (a *AI) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	if err := a.api.check(); err != nil {
		return "", err
	}
	return a.backend().Chat(ctx, messages)
}

// Summarize summarizes text.
func (a *AI) Summarize(ctx context.Context, text string) (string, error) {
	if err := a.api.check(); err != nil {
		return "", err
	}
	return a.backend().Summarize(ctx, text)
}

// Translate translates text into lang.
func (a *AI) Translate(ctx context.Context, text, lang string) (string, error) {
	if err := a.api.check(); err != nil {
		return "", err
	}
	return a.backend().Translate(ctx, text, lang)
}

// Utils is the utils namespace.
type Utils struct {
	api *API
}

// GenerateID returns a random unique id.
func (u *Utils) GenerateID() string {
	return uuid.NewString()
}

// Debounce returns call, which runs fn once wait has passed without another
// call, and cancel, which drops a pending run. Pending runs are dropped on
// Release.
func (u *Utils) Debounce(fn func(), wait time.Duration) (call func(), cancel func()) {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	cancel = func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}
	call = func() {
		if u.api.Released() {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(wait, func() {
			mu.Lock()
			timer = nil
			mu.Unlock()
			if !u.api.Released() {
				fn()
			}
		})
	}
	u.api.track(cancel)
	return call, cancel
}

// Throttle returns a function that runs fn at most once per every; calls
// in between are dropped. It reports whether fn ran.
func (u *Utils) Throttle(fn func(), every time.Duration) func() bool {
	limiter := rate.NewLimiter(rate.Every(every), 1)
	return func() bool {
		if u.api.Released() || !limiter.Allow() {
			return false
		}
		fn()
		return true
	}
}
