package ir

// Version constants stamped on stored runs.
const (
	// SchemaVersion is the trace/event schema version.
	SchemaVersion = "1"

	// HarnessVersion is the dishm runner version.
	HarnessVersion = "0.1.0"
)
