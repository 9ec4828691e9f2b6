package ir

// Version constants stamped on every recorded exploration run.
const (
	// IRVersion is the model IR schema version.
	IRVersion = "1"

	// EngineVersion is the absim engine version.
	EngineVersion = "0.1.0"
)
