package store

import "errors"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusComplete  = "complete"
	StatusTruncated = "truncated"
	StatusFailed    = "failed"
	StatusAborted   = "aborted"
)

var (
	// ErrNotFound is returned when a run or state does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is returned when a key prefix matches more than one state.
	ErrAmbiguous = errors.New("ambiguous key prefix")
)

// Run is one exploration of a model.
type Run struct {
	ID            string `json:"id"`
	ModelName     string `json:"model_name"`
	ModelHash     string `json:"model_hash"`
	Options       string `json:"options"` // canonical JSON object
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
	Status        string `json:"status"`
	StateCount    int    `json:"state_count"`
	Seq           int64  `json:"seq"`
}

// StateRecord is a considered state reached during a run.
type StateRecord struct {
	Key       string
	Canonical string
	Summary   []string
	Seq       int64
}

// TransitionRecord is one recorded exploration edge.
type TransitionRecord struct {
	ID    string
	From  string
	To    string
	Label string
	Info  string // canonical JSON object
	Seq   int64
}

// Finding is an evaluation problem reported at a state, such as a wait
// argument the abstraction could not determine.
type Finding struct {
	ID       string
	StateKey string
	Thread   string
	Code     string
	Message  string
	Seq      int64
}
