package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/ideshell/internal/plugin/lua"
)

// DefaultPluginPaths returns the default script plugin search paths, in
// priority order.
func DefaultPluginPaths() []string {
	paths := make([]string, 0, 3)

	// Project plugins: .ideshell/plugins/
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".ideshell", "plugins"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		// User plugins: ~/.config/ideshell/plugins/
		paths = append(paths, filepath.Join(home, ".config", "ideshell", "plugins"))
		// User data plugins: ~/.local/share/ideshell/plugins/
		paths = append(paths, filepath.Join(home, ".local", "share", "ideshell", "plugins"))
	}

	return paths
}

// LoadScripts discovers script plugins in dirs and registers each one that
// is valid and not yet registered. Skipped plugins are logged and their
// errors returned joined; the found list includes them.
func (m *Manager) LoadScripts(dirs ...string) ([]lua.Found, error) {
	found, err := lua.Discover(dirs...)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, f := range found {
		if f.Err != nil {
			m.log.Warn("skipping script plugin %s (%s): %v", f.ID, f.Path, f.Err)
			errs = append(errs, fmt.Errorf("plugin %q: %w", f.ID, f.Err))
			continue
		}
		if _, err := m.RegisterScript(f.Manifest); err != nil {
			m.log.Warn("skipping script plugin %s: %v", f.ID, err)
			errs = append(errs, err)
			continue
		}
		m.log.Debug("found script plugin %s at %s", f.ID, f.Path)
	}
	return found, errors.Join(errs...)
}
