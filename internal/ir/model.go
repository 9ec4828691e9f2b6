package ir

// StopMode selects how stop() finishes the simulation.
type StopMode string

const (
	// StopImmediate terminates every process at once.
	StopImmediate StopMode = "immediate"
	// StopAfterDelta lets ready and event-waiting processes finish the
	// current delta cycle.
	StopAfterDelta StopMode = "after_delta"
)

// Model is a complete elaborated design: events, shared variables, primitive
// channels, ports bound to channels, processes and the functions they run.
type Model struct {
	Name      string              `json:"name"`
	Events    []string            `json:"events,omitempty"`
	Globals   map[string]Literal  `json:"globals,omitempty"`
	Channels  []Channel           `json:"channels,omitempty"`
	Ports     []Port              `json:"ports,omitempty"`
	Processes []Process           `json:"processes"`
	Functions map[string]Function `json:"functions"`
	Config    Config              `json:"config"`
}

// Channel is a primitive channel whose Update function runs in the update
// phase after request_update.
type Channel struct {
	Name   string `json:"name"`
	Update string `json:"update"`
}

// Port is bound to exactly one channel.
type Port struct {
	Name    string `json:"name"`
	Channel string `json:"channel"`
}

// Process is a thread of the design. Sensitivity is the static event list a
// process re-arms on when its body ends or when it calls wait().
type Process struct {
	Name           string   `json:"name"`
	Function       string   `json:"function"`
	Sensitivity    []string `json:"sensitivity,omitempty"`
	Receiver       *Literal `json:"receiver,omitempty"`
	DontInitialize bool     `json:"dont_initialize,omitempty"`
}

// Config carries analysis settings stored with the model.
//
// ConsideredEvents lists the events whose notifications are tracked. A nil
// list means every declared event is tracked; an empty list means none are.
type Config struct {
	StopMode         StopMode `json:"stop_mode,omitempty"`
	ConsideredEvents []string `json:"considered_events"`
}

// Process returns the named process.
func (m *Model) Process(name string) (Process, bool) {
	for _, p := range m.Processes {
		if p.Name == name {
			return p, true
		}
	}
	return Process{}, false
}

// Channel returns the named channel.
func (m *Model) Channel(name string) (Channel, bool) {
	for _, c := range m.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return Channel{}, false
}

// Port returns the named port.
func (m *Model) Port(name string) (Port, bool) {
	for _, p := range m.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Function returns the named function.
func (m *Model) Function(name string) (Function, bool) {
	f, ok := m.Functions[name]
	return f, ok
}

// IsGlobal reports whether name is a shared variable.
func (m *Model) IsGlobal(name string) bool {
	_, ok := m.Globals[name]
	return ok
}

// IsEvent reports whether name is a declared event.
func (m *Model) IsEvent(name string) bool {
	for _, e := range m.Events {
		if e == name {
			return true
		}
	}
	return false
}

// ProcessNames returns process names in declaration order.
func (m *Model) ProcessNames() []string {
	names := make([]string, len(m.Processes))
	for i, p := range m.Processes {
		names[i] = p.Name
	}
	return names
}
