package prevention

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shirou/gopsutil/v3/process"
)

// Terminator sends SIGTERM to a process by pid. A process that is already
// gone or is a zombie is not an error: the threat no longer runs. Only a
// live process that refuses the signal (typically EPERM) surfaces an
// error, and callers are expected to log it and move on.
type Terminator struct {
	log *slog.Logger
}

func NewTerminator(logger *slog.Logger) *Terminator {
	return &Terminator{log: logger}
}

func (t *Terminator) Terminate(ctx context.Context, pid int32) error {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			t.log.Info("process already exited", "pid", pid)
			return nil
		}
		return err
	}
	if statuses, err := proc.StatusWithContext(ctx); err == nil {
		for _, s := range statuses {
			if s == process.Zombie {
				t.log.Info("process is a zombie, nothing to terminate", "pid", pid)
				return nil
			}
		}
	}
	if err := proc.TerminateWithContext(ctx); err != nil {
		return err
	}
	t.log.Info("terminated process", "pid", pid)
	return nil
}
