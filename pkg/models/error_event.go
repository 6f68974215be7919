package models

// Event sources. Frontend events arrive through the ingestion endpoint;
// backend events come from the in-process logging hook.
const (
	SourceFrontend = "frontend"
	SourceBackend  = "backend"
)

// Log levels. Only LevelError participates in deduplication and alerting.
const (
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
	LevelDebug = "debug"
)

// ErrorEvent is a raw error report. It is transient: events are folded into
// ErrorRecords by the capture pipeline and never persisted as-is.
type ErrorEvent struct {
	Source     string         `json:"source"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Module     string         `json:"module,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// ValidSource reports whether s is a known event source.
func ValidSource(s string) bool {
	return s == SourceFrontend || s == SourceBackend
}

// ValidLevel reports whether l is a known log level.
func ValidLevel(l string) bool {
	switch l {
	case LevelError, LevelWarn, LevelInfo, LevelDebug:
		return true
	}
	return false
}
