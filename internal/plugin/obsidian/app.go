// Package obsidian hosts plugins written against an Obsidian-style API.
//
// Unlike the primary host, plugins here are constructed at registration
// time with the shared App and their manifest, receive no per-plugin
// capability object, and are disposed on disable: everything they
// registered through Base (ribbon icons, status bar items, commands, DOM
// listeners, intervals) is torn down after onunload.
package obsidian

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/ideshell/internal/bridge"
	"github.com/dshills/ideshell/internal/event"
	"github.com/dshills/ideshell/internal/settings"
	"github.com/dshills/ideshell/internal/storage"
	"github.com/dshills/ideshell/internal/workbench"
	"github.com/dshills/ideshell/internal/workbench/dom"
)

// Errors returned by the App services.
var (
	ErrFileExists       = errors.New("vault: file already exists")
	ErrFileNotFound     = errors.New("vault: file not found")
	ErrDuplicateCommand = errors.New("command already registered")
	ErrCommandNotFound  = errors.New("command not found")
)

// Logger is the logging surface of the adapter.
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

// App is the context shared by reference with every plugin of a Host.
type App struct {
	Workspace   *Workspace
	Vault       *Vault
	FileManager *FileManager
	UI          bridge.Bridge
	Commands    *Commands
	Settings    *settings.Store
	Storage     *Storage
	Editor      *workbench.Editor

	// Document is the page plugins attach DOM listeners to.
	Document *dom.Document

	Log Logger
}

// AppConfig lists the services an App is built from. Any may be nil
// except where noted.
type AppConfig struct {
	Workbench *workbench.Workbench
	Document  *dom.Document
	Bridge    bridge.Bridge
	Bus       *event.Bus
	Settings  *settings.Store
	// Local backs Storage and the vault. Nil means memory only.
	Local  *storage.Local
	Logger Logger
}

// NewApp builds an App from cfg.
func NewApp(cfg AppConfig) *App {
	if cfg.Bus == nil {
		cfg.Bus = event.NewBus()
	}
	if cfg.Local == nil {
		cfg.Local = storage.NewMemory()
	}
	if cfg.Settings == nil {
		cfg.Settings = settings.NewStore(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	app := &App{
		Workspace: &Workspace{wb: cfg.Workbench, bus: cfg.Bus},
		Vault:     NewVault(cfg.Local),
		UI:        cfg.Bridge,
		Commands:  NewCommands(),
		Settings:  cfg.Settings,
		Storage:   &Storage{local: cfg.Local},
		Document:  cfg.Document,
		Log:       cfg.Logger,
	}
	app.FileManager = &FileManager{vault: app.Vault, workspace: app.Workspace}
	if cfg.Workbench != nil {
		app.Editor = cfg.Workbench.Editor
	}
	return app
}

// Workspace carries workspace events and the UI framework.
type Workspace struct {
	wb  *workbench.Workbench
	bus *event.Bus
}

// Workspace event names.
const (
	EventFileOpen   = "file-open"
	EventFileRename = "rename"
	EventFileDelete = "delete"
)

func workspaceEvent(name string) string {
	return "workspace:" + name
}

// On registers fn for the workspace event name.
func (w *Workspace) On(name string, fn event.HandlerFunc) *event.Listener {
	return w.bus.OnFunc(workspaceEvent(name), fn)
}

// Off removes a listener registered with On.
func (w *Workspace) Off(name string, l *event.Listener) {
	w.bus.Off(workspaceEvent(name), l)
}

// Trigger emits the workspace event name.
func (w *Workspace) Trigger(name string, args ...any) {
	w.bus.Emit(workspaceEvent(name), args...)
}

// Workbench returns the UI framework, or nil when it is unavailable.
func (w *Workspace) Workbench() *workbench.Workbench {
	return w.wb
}

// ActiveFile returns the id of the current editor tab.
func (w *Workspace) ActiveFile() (string, bool) {
	if w.wb == nil || w.wb.Editor == nil {
		return "", false
	}
	tab, ok := w.wb.Editor.CurrentTab()
	return tab.ID, ok
}

// Notice shows message as an info toast. Without a notification service
// it is logged instead.
func (a *App) Notice(message string) {
	wb := a.Workspace.wb
	if wb == nil || wb.Notification == nil {
		a.Log.Info("notice: %s", message)
		return
	}
	err := wb.Notification.Open(workbench.Notification{
		ID:      "notice-" + uuid.NewString(),
		Level:   workbench.NotificationInfo,
		Message: message,
	})
	if err != nil {
		a.Log.Warn("notice %q: %v", message, err)
	}
}

// Vault is a flat store of text files keyed by path.
type Vault struct {
	local *storage.Local
}

// NewVault creates a vault over local.
func NewVault(local *storage.Local) *Vault {
	return &Vault{local: local}
}

const vaultPrefix = "vault:"

// Create adds a file. It fails if path exists.
func (v *Vault) Create(path, content string) error {
	if _, ok := v.local.Raw(vaultPrefix + path); ok {
		return fmt.Errorf("%s: %w", path, ErrFileExists)
	}
	return v.local.Save(vaultPrefix+path, content)
}

// Read returns the content of path.
func (v *Vault) Read(path string) (string, error) {
	var content string
	ok, err := v.local.Load(vaultPrefix+path, &content)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}
	return content, nil
}

// Modify replaces the content of an existing file.
func (v *Vault) Modify(path, content string) error {
	if !v.Exists(path) {
		return fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}
	return v.local.Save(vaultPrefix+path, content)
}

// Delete removes path.
func (v *Vault) Delete(path string) error {
	if !v.Exists(path) {
		return fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}
	return v.local.Remove(vaultPrefix + path)
}

// Exists reports whether path is in the vault.
func (v *Vault) Exists(path string) bool {
	_, ok := v.local.Raw(vaultPrefix + path)
	return ok
}

// Files returns every path in the vault, sorted.
func (v *Vault) Files() []string {
	var files []string
	for _, key := range v.local.Keys() {
		if strings.HasPrefix(key, vaultPrefix) {
			files = append(files, strings.TrimPrefix(key, vaultPrefix))
		}
	}
	sort.Strings(files)
	return files
}

// FileManager performs vault operations that other plugins observe.
type FileManager struct {
	vault     *Vault
	workspace *Workspace
}

// RenameFile moves a file and triggers the rename workspace event with the
// new and old paths.
func (f *FileManager) RenameFile(oldPath, newPath string) error {
	content, err := f.vault.Read(oldPath)
	if err != nil {
		return err
	}
	if err := f.vault.Create(newPath, content); err != nil {
		return err
	}
	if err := f.vault.Delete(oldPath); err != nil {
		return err
	}
	f.workspace.Trigger(EventFileRename, newPath, oldPath)
	return nil
}

// TrashFile deletes a file and triggers the delete workspace event.
func (f *FileManager) TrashFile(path string) error {
	if err := f.vault.Delete(path); err != nil {
		return err
	}
	f.workspace.Trigger(EventFileDelete, path)
	return nil
}

// Command is a named action plugins contribute.
type Command struct {
	ID       string
	Name     string
	Callback func()
}

// Commands is the command palette registry.
type Commands struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewCommands creates an empty command registry.
func NewCommands() *Commands {
	return &Commands{commands: make(map[string]Command)}
}

// Add registers cmd.
func (c *Commands) Add(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.commands[cmd.ID]; exists {
		return fmt.Errorf("%s: %w", cmd.ID, ErrDuplicateCommand)
	}
	c.commands[cmd.ID] = cmd
	return nil
}

// Remove drops the command id.
func (c *Commands) Remove(id string) {
	c.mu.Lock()
	delete(c.commands, id)
	c.mu.Unlock()
}

// Execute runs the command id. A panic in the callback is returned as an error.
func (c *Commands) Execute(id string) error {
	c.mu.RLock()
	cmd, ok := c.commands[id]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrCommandNotFound)
	}
	if cmd.Callback == nil {
		return nil
	}
	return event.Dispatch(func(...any) error {
		cmd.Callback()
		return nil
	})
}

// List returns every command sorted by id.
func (c *Commands) List() []Command {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := make([]Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		list = append(list, cmd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Storage is the persistent key-value store with JSON values.
type Storage struct {
	local *storage.Local
}

// LoadLocalStorage returns the decoded value at key, or nil when it is missing.
func (s *Storage) LoadLocalStorage(key string) (any, error) {
	var v any
	if _, err := s.local.Load(key, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// SaveLocalStorage stores value at key. A nil value removes the key.
func (s *Storage) SaveLocalStorage(key string, value any) error {
	if value == nil {
		return s.local.Remove(key)
	}
	return s.local.Save(key, value)
}
