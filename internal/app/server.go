package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/ideshell/internal/plugin/lifecycle"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/render"
)

// pluginJSON is the wire form of PluginInfo.
type pluginJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Host        string `json:"host"`
	Status      string `json:"status"`
	HasInstance bool   `json:"hasInstance"`
	HasAPI      bool   `json:"hasApi"`
	Error       string `json:"error,omitempty"`
}

func toJSON(p PluginInfo) pluginJSON {
	out := pluginJSON{
		ID:          p.ID,
		Name:        p.Name,
		Version:     p.Version,
		Host:        p.Host,
		Status:      p.Status.String(),
		HasInstance: p.HasInstance,
		HasAPI:      p.HasAPI,
	}
	if p.Err != nil {
		out.Error = p.Err.Error()
	}
	return out
}

type workbenchJSON struct {
	ActivityBar   []workbench.ActivityBarItem `json:"activityBar"`
	Selected      string                      `json:"selected"`
	Sidebar       string                      `json:"sidebar,omitempty"`
	StatusBar     []workbench.StatusBarItem   `json:"statusBar"`
	Editor        workbench.EditorState       `json:"editor"`
	Notifications []workbench.Notification    `json:"notifications"`
}

// logPrinter adapts Logger to chi's request logger.
type logPrinter struct{ log *Logger }

func (p logPrinter) Print(v ...any) { p.log.Debug("%s", fmt.Sprint(v...)) }

// Handler returns the HTTP inspection API:
//
//	GET  /                            text rendering of the workbench
//	GET  /api/plugins                 every plugin with its status
//	GET  /api/plugins/{id}
//	POST /api/plugins/{id}/enable
//	POST /api/plugins/{id}/disable
//	GET  /api/workbench               contributed UI state
//	POST /api/activity/{id}/click     clicks an activity-bar item
//	GET  /api/metrics
func (app *Application) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logPrinter{app.log.WithComponent("http")},
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", app.handleScreen)
	r.Route("/api", func(r chi.Router) {
		r.Get("/plugins", app.handleListPlugins)
		r.Route("/plugins/{id}", func(r chi.Router) {
			r.Get("/", app.handleGetPlugin)
			r.Post("/enable", app.handleLifecycle(app.Enable))
			r.Post("/disable", app.handleLifecycle(app.Disable))
		})
		r.Get("/workbench", app.handleWorkbench)
		r.Post("/activity/{id}/click", app.handleClick)
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, app.metrics.Snapshot())
		})
	})
	return r
}

func (app *Application) handleScreen(w http.ResponseWriter, r *http.Request) {
	cfg := app.Config()
	text, err := render.Snapshot(app.wb, cfg.UI.Width, cfg.UI.Height)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, text)
}

func (app *Application) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	infos := app.Plugins()
	out := make([]pluginJSON, 0, len(infos))
	for _, p := range infos {
		out = append(out, toJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (app *Application) findPlugin(id string) (PluginInfo, bool) {
	for _, p := range app.Plugins() {
		if p.ID == id {
			return p, true
		}
	}
	return PluginInfo{}, false
}

func (app *Application) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := app.findPlugin(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("plugin %q: %w", id, ErrUnknownPlugin))
		return
	}
	writeJSON(w, http.StatusOK, toJSON(p))
}

func (app *Application) handleLifecycle(op func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := op(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		p, _ := app.findPlugin(id)
		writeJSON(w, http.StatusOK, toJSON(p))
	}
}

func (app *Application) handleWorkbench(w http.ResponseWriter, r *http.Request) {
	wb := app.wb
	out := workbenchJSON{
		ActivityBar:   wb.ActivityBar.Items(),
		Selected:      wb.ActivityBar.Selected(),
		StatusBar:     wb.StatusBar.Items(),
		Editor:        wb.Editor.State(),
		Notifications: wb.Notification.List(),
	}
	if pane, ok := wb.Sidebar.Current(); ok {
		out.Sidebar = pane.ID
	}
	writeJSON(w, http.StatusOK, out)
}

func (app *Application) handleClick(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := app.wb.ActivityBar.Click(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownPlugin),
		errors.Is(err, lifecycle.ErrPluginNotFound),
		errors.Is(err, workbench.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		var rerr *lifecycle.RuntimeError
		if errors.As(err, &rerr) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
