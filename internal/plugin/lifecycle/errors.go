package lifecycle

import (
	"errors"
	"fmt"
)

// Registry errors. Structural errors are returned as-is (wrapped with the
// plugin id); plugin failures are returned as *RuntimeError.
var (
	// ErrDuplicatePlugin is returned when an id is registered twice.
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrPluginNotFound is returned when an operation names an unknown id.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrUnmetDependency is returned when a declared dependency is not enabled.
	ErrUnmetDependency = errors.New("plugin dependency not enabled")

	// ErrNilManifest is returned when a nil manifest is provided.
	ErrNilManifest = errors.New("manifest is nil")

	// ErrNilEntry is returned when a plugin is registered without an entry point.
	ErrNilEntry = errors.New("plugin has no entry point")
)

// Lifecycle phases reported in RuntimeError.
const (
	PhaseConstruct = "construct"
	PhaseLoad      = "onload"
	PhaseUnload    = "onunload"
)

// RuntimeError wraps a failure raised by plugin code.
type RuntimeError struct {
	ID    string
	Phase string
	Err   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("plugin %q %s: %v", e.ID, e.Phase, e.Err)
}

// Unwrap returns the error the plugin produced.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsRuntimeError reports whether err came from plugin code rather than
// from the registry itself.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}
