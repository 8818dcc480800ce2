package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes a plugin package. It is immutable once registered:
// the registry keeps its own clone.
type Manifest struct {
	// Identity
	ID          string `json:"id" yaml:"id"`                   // Unique key (e.g., "hello-plugin")
	Name        string `json:"name" yaml:"name"`               // Human-readable name
	Version     string `json:"version" yaml:"version"`         // Semver (e.g., "1.0.0")
	Description string `json:"description" yaml:"description"` // Short description
	Author      string `json:"author" yaml:"author"`           // Author name or org

	// Requirements
	Dependencies  []string `json:"dependencies" yaml:"dependencies"`   // Plugin ids that must be enabled first
	MinAppVersion string   `json:"minAppVersion" yaml:"minAppVersion"` // Minimum host version
	IsDesktopOnly bool     `json:"isDesktopOnly" yaml:"isDesktopOnly"`

	// Main is the script entry point for script plugins. Empty for
	// plugins compiled into the host.
	Main string `json:"main,omitempty" yaml:"main,omitempty"`

	// Settings holds default setting values.
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Internal: directory the manifest was loaded from
	path string
}

// Validation errors.
var (
	ErrMissingID      = errors.New("manifest: id is required")
	ErrInvalidID      = errors.New("manifest: id must be lowercase alphanumeric with hyphens")
	ErrInvalidVersion = errors.New("manifest: version must be valid semver")
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file")
	ErrSelfDependency = errors.New("manifest: plugin cannot depend on itself")
)

// idPattern validates plugin ids.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// manifestFiles are the file names looked up in a plugin directory, in order.
var manifestFiles = []string{"plugin.json", "plugin.yaml", "plugin.yml", "manifest.json"}

// LoadManifest reads a manifest file. JSON and YAML are accepted, chosen by extension.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
		}
	}

	m.path = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFromDir loads the first manifest file found in dir.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	for _, name := range manifestFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadManifest(p)
		}
	}
	return nil, fmt.Errorf("no manifest in %s: %w", dir, os.ErrNotExist)
}

// NewManifestMinimal creates a manifest for a script plugin that ships no
// manifest file. The entry point defaults to init.lua in dir.
func NewManifestMinimal(id, dir string) *Manifest {
	m := &Manifest{ID: id, Main: "init.lua", path: dir}
	m.applyDefaults()
	return m
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Name == "" {
		m.Name = m.ID
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is usable.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: %s", ErrInvalidID, m.ID)
	}
	if m.Version != "" && !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	if m.Main != "" && filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	for _, dep := range m.Dependencies {
		if dep == m.ID {
			return fmt.Errorf("%w: %s", ErrSelfDependency, m.ID)
		}
	}
	return nil
}

// Path returns the directory the manifest was loaded from.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the script entry point.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// DisplayName returns Name, falling back to ID.
func (m *Manifest) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.DisplayName(), m.Version)
}

// Clone creates a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	clone := *m

	if m.Dependencies != nil {
		clone.Dependencies = make([]string, len(m.Dependencies))
		copy(clone.Dependencies, m.Dependencies)
	}

	if m.Settings != nil {
		clone.Settings = make(map[string]any, len(m.Settings))
		for k, v := range m.Settings {
			clone.Settings[k] = v
		}
	}

	return &clone
}
