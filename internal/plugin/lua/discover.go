package lua

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/ideshell/internal/plugin/lifecycle"
)

// Found is one script plugin located by Discover.
type Found struct {
	ID       string
	Path     string
	Manifest *lifecycle.Manifest
	Err      error
}

// Discover finds script plugins in dirs. A plugin is either a directory
// holding a manifest (plugin.json, plugin.yaml, ...) or an init.lua, or a
// single name.lua file. When two directories provide the same id, the
// earlier directory wins. Results are sorted by id; entries that could not
// be loaded carry Err.
func Discover(dirs ...string) ([]Found, error) {
	found := make(map[string]Found)

	for _, dir := range dirs {
		if err := discoverInDir(dir, found); err != nil {
			return nil, err
		}
	}

	result := make([]Found, 0, len(found))
	for _, f := range found {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func discoverInDir(dir string, found map[string]Found) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Missing search paths are not errors
		}
		return fmt.Errorf("discover %s: %w", dir, err)
	}

	for _, entry := range entries {
		var f Found
		if entry.IsDir() {
			f = inspect(entry.Name(), filepath.Join(dir, entry.Name()))
		} else if filepath.Ext(entry.Name()) == ".lua" {
			id := strings.TrimSuffix(entry.Name(), ".lua")
			m := lifecycle.NewManifestMinimal(id, dir)
			m.Main = entry.Name()
			f = Found{ID: id, Path: dir, Manifest: m, Err: m.Validate()}
		} else {
			continue
		}

		if _, exists := found[f.ID]; !exists {
			found[f.ID] = f
		}
	}
	return nil
}

// inspect examines a plugin directory.
func inspect(name, path string) Found {
	f := Found{ID: name, Path: path}

	m, err := lifecycle.LoadManifestFromDir(path)
	switch {
	case err == nil:
		if m.Main == "" {
			m.Main = "init.lua"
		}
		f.ID = m.ID
		f.Manifest = m
		if _, err := os.Stat(m.MainPath()); err != nil {
			f.Err = fmt.Errorf("%s: %w", m.MainPath(), ErrNoEntryPoint)
		}
		return f
	case !errors.Is(err, os.ErrNotExist):
		f.Err = fmt.Errorf("invalid manifest: %w", err)
		return f
	}

	for _, main := range []string{"init.lua", "plugin.lua"} {
		if _, err := os.Stat(filepath.Join(path, main)); err == nil {
			m := lifecycle.NewManifestMinimal(name, path)
			m.Main = main
			f.Manifest = m
			f.Err = m.Validate()
			return f
		}
	}

	f.Err = ErrNoEntryPoint
	return f
}
