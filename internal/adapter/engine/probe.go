package engine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/vertextoedge/localai-desktop/internal/port"
)

// ProcessProbe finds running engine processes with gopsutil
type ProcessProbe struct{}

// Ensure ProcessProbe implements port.ProcessProbe
var _ port.ProcessProbe = (*ProcessProbe)(nil)

// NewProcessProbe creates a new ProcessProbe
func NewProcessProbe() *ProcessProbe {
	return &ProcessProbe{}
}

// FindByName returns processes whose executable name matches name
func (p *ProcessProbe) FindByName(ctx context.Context, name string) ([]port.EngineProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	want := normalizeName(name)
	var found []port.EngineProcess
	for _, proc := range procs {
		// Processes can exit or deny access between listing and inspection
		procName, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if normalizeName(procName) == want {
			found = append(found, port.EngineProcess{PID: proc.Pid, Name: procName})
		}
	}
	return found, nil
}

func normalizeName(name string) string {
	name = strings.ToLower(filepath.Base(name))
	return strings.TrimSuffix(name, ".exe")
}
