package netmon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"procwatch/internal/db"
	"procwatch/internal/models"
)

// Monitor samples outbound connections on a fixed interval and records
// connections not seen in the previous cycle. It is a stateless observer
// with respect to the detection core; it only feeds the history repo.
type Monitor struct {
	repo   *db.Repository
	log    *slog.Logger
	known  map[string]struct{}
	warned bool
}

func NewMonitor(repo *db.Repository, logger *slog.Logger) *Monitor {
	return &Monitor{repo: repo, log: logger}
}

func (m *Monitor) Tick(ctx context.Context) {
	conns, err := gnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		if !m.warned {
			m.warned = true
			m.log.Warn("connection listing unavailable, elevated privileges may be required", "err", err)
		}
		return
	}

	first := m.known == nil
	current := make(map[string]struct{}, len(conns))
	for _, c := range conns {
		if c.Raddr.IP == "" {
			continue
		}
		local := fmt.Sprintf("%s:%d", c.Laddr.IP, c.Laddr.Port)
		remote := fmt.Sprintf("%s:%d", c.Raddr.IP, c.Raddr.Port)
		key := fmt.Sprintf("%d|%s|%s", c.Pid, local, remote)
		current[key] = struct{}{}
		if first {
			continue
		}
		if _, seen := m.known[key]; seen {
			continue
		}
		sample := models.ConnSample{
			TS:          time.Now().UTC(),
			PID:         c.Pid,
			ProcessName: processName(ctx, c.Pid),
			LocalAddr:   local,
			RemoteAddr:  remote,
			Status:      c.Status,
		}
		m.log.Info("new connection",
			"pid", sample.PID,
			"process", sample.ProcessName,
			"local", sample.LocalAddr,
			"remote", sample.RemoteAddr,
		)
		if m.repo != nil {
			if err := m.repo.InsertConnSample(ctx, sample); err != nil {
				m.log.Error("insert connection sample", "err", err)
			}
		}
	}
	// dropped connections fall out of the set to bound memory
	m.known = current
}

func processName(ctx context.Context, pid int32) string {
	if pid == 0 {
		return "unknown"
	}
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "unknown"
	}
	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return "unknown"
	}
	return name
}
