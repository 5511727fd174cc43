package probe

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo is one node in a process ancestry chain
type ProcessInfo struct {
	PID  int32  `json:"pid"`
	Name string `json:"name"`
}

// ProcessTree walks from the given pid up to the root of its ancestry
// and returns the chain ordered root first. A parent that disappears or
// denies access mid-walk truncates the chain instead of failing it.
func ProcessTree(ctx context.Context, pid int32) ([]ProcessInfo, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("process with PID %d not found: %w", pid, err)
	}

	var chain []ProcessInfo
	for proc != nil {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			break
		}
		chain = append(chain, ProcessInfo{PID: proc.Pid, Name: name})

		parent, err := proc.ParentWithContext(ctx)
		if err != nil {
			break
		}
		proc = parent
	}

	// Reverse: collected leaf → root, callers want root → leaf
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain, nil
}
