package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// SystemTable reads the live process table through gopsutil.
type SystemTable struct{}

func (SystemTable) Processes(ctx context.Context) ([]Proc, error) {
	ps, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Proc, 0, len(ps))
	for _, p := range ps {
		// entries vanish or deny access mid-scan; skip them
		name, nerr := p.NameWithContext(ctx)
		args, cerr := p.CmdlineSliceWithContext(ctx)
		if nerr != nil && cerr != nil {
			continue
		}
		out = append(out, Proc{PID: p.Pid, Name: name, Cmdline: strings.Join(args, " "), Args: args})
	}

	return out, nil
}

func (SystemTable) Terminate(ctx context.Context, pid int32, grace time.Duration) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil // already gone
	}

	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminate %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		alive, err := p.IsRunningWithContext(ctx)
		if err != nil || !alive {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}
