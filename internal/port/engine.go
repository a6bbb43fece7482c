package port

import "context"

// CommandResult is the outcome of one completed child process
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// CommandRunner runs external programs
type CommandRunner interface {
	// Run executes name with args and waits for it to exit.
	// A non-zero exit is reported through ExitCode, not as an error.
	// An error means the process could not be spawned or was killed.
	Run(ctx context.Context, name string, args ...string) (*CommandResult, error)
}

// EngineProcess describes one running engine process
type EngineProcess struct {
	PID  int32  `json:"pid"`
	Name string `json:"name"`
}

// ProcessProbe lists running processes of the engine binary
type ProcessProbe interface {
	// FindByName returns processes whose executable name matches name
	FindByName(ctx context.Context, name string) ([]EngineProcess, error)
}
