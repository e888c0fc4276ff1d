package collector

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"procwatch/internal/db"
	"procwatch/internal/engine"
	"procwatch/internal/models"
)

// Service scans running processes on a fixed interval and hands every
// newly started process to the evaluator. Deduplication happens here: a
// pid is evaluated once, when it first appears. The first tick only
// establishes the baseline pid set.
type Service struct {
	repo  *db.Repository
	eval  *engine.Evaluator
	log   *slog.Logger
	known map[int32]struct{}
}

func NewService(repo *db.Repository, eval *engine.Evaluator, logger *slog.Logger) *Service {
	return &Service{repo: repo, eval: eval, log: logger}
}

func (s *Service) Tick(ctx context.Context) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		s.log.Warn("list processes", "err", err)
		return
	}
	current := make(map[int32]struct{}, len(pids))
	for _, pid := range pids {
		current[pid] = struct{}{}
	}
	if s.known == nil {
		s.known = current
		s.log.Info("process baseline recorded", "count", len(current))
		return
	}

	for _, pid := range pids {
		if _, seen := s.known[pid]; seen {
			continue
		}
		obs, ok := snapshot(ctx, pid)
		if !ok {
			// vanished between listing and inspection
			continue
		}
		s.log.Info("new process",
			"pid", obs.PID,
			"name", obs.Name,
			"cpu", obs.CPU,
			"memory_mb", obs.Memory,
			"path", obs.Path,
		)
		if s.repo != nil {
			sample := models.ProcessSample{TS: time.Now().UTC(), PID: obs.PID, Name: obs.Name, CPU: obs.CPU, Memory: obs.Memory, Path: obs.Path}
			if err := s.repo.InsertProcessSample(ctx, sample); err != nil {
				s.log.Error("insert process sample", "pid", obs.PID, "err", err)
			}
		}
		s.eval.Evaluate(ctx, obs)
	}
	s.known = current
}

// snapshot collects one observation for pid. An unreadable executable
// path is reported as absent, not as a failure; a process that is gone
// entirely is skipped.
func snapshot(ctx context.Context, pid int32) (models.Observation, bool) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return models.Observation{}, false
	}
	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return models.Observation{}, false
	}
	obs := models.Observation{PID: pid, Name: name}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		obs.CPU = round2(cpu)
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		obs.Memory = round2(float64(mem.RSS) / (1024 * 1024))
	}
	if path, err := proc.ExeWithContext(ctx); err == nil {
		obs.Path = path
	}
	return obs, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
