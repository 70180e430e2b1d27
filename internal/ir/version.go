package ir

// Version constants for the data model and engine.
const (
	// IRVersion is the definition schema version.
	IRVersion = "1"

	// EngineVersion is the choreography engine version.
	EngineVersion = "0.1.0"
)
