package lua

import "errors"

// Errors for Lua plugins.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call runs past its timeout.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrNoFunction is returned when a called global is not a function.
	ErrNoFunction = errors.New("lua function not found")

	// ErrNoEntryPoint is returned when a plugin directory has no script.
	ErrNoEntryPoint = errors.New("no plugin entry point found")

	// ErrNotLoaded is returned when unloading a plugin that never loaded.
	ErrNotLoaded = errors.New("lua plugin not loaded")
)
