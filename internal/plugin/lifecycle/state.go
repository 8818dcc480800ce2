package lifecycle

// Status represents the lifecycle state of a registered plugin.
type Status int

// Plugin statuses.
const (
	// StatusRegistered - manifest is known, plugin never enabled.
	StatusRegistered Status = iota

	// StatusEnabled - onload completed; instance and capability object are live.
	StatusEnabled

	// StatusDisabled - onunload completed; instance and capability object released.
	StatusDisabled

	// StatusError - onload failed. The instance is retained for inspection.
	StatusError
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusEnabled:
		return "enabled"
	case StatusDisabled:
		return "disabled"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// IsActive returns true if the plugin is enabled.
func (s Status) IsActive() bool {
	return s == StatusEnabled
}
