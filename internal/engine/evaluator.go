package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"procwatch/internal/config"
	"procwatch/internal/db"
	"procwatch/internal/models"
	"procwatch/internal/notifier"
	"procwatch/internal/store"
)

// Terminator kills a process by pid. Failures are the callee's to absorb;
// the evaluator only logs them.
type Terminator interface {
	Terminate(ctx context.Context, pid int32) error
}

// Evaluator drives one observation through the chain, grades positives,
// persists the alert and, when enabled, triggers auto-prevention for
// high-level threats. A failing side effect never fails the evaluation.
type Evaluator struct {
	det     *Detector
	store   *store.Store
	term    Terminator
	notify  *notifier.Webhook
	repo    *db.Repository
	runtime *config.Runtime
	log     *slog.Logger
	now     func() time.Time
}

func NewEvaluator(det *Detector, st *store.Store, term Terminator, notify *notifier.Webhook, repo *db.Repository, runtime *config.Runtime, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		det:     det,
		store:   st,
		term:    term,
		notify:  notify,
		repo:    repo,
		runtime: runtime,
		log:     logger,
		now:     time.Now,
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, obs models.Observation) {
	suspicious, ruleName := e.det.Classify(obs)
	if !suspicious {
		return
	}

	s := e.runtime.Current()
	trusted := e.det.Trusted(obs.Name)
	score := e.det.Score(obs, trusted)
	level := Level(score, s)

	alert := models.Alert{
		Timestamp: e.now().UTC().Format(models.TimestampFormat),
		PID:       obs.PID,
		Name:      obs.Name,
		CPU:       obs.CPU,
		Memory:    obs.Memory,
		Path:      obs.Path,
		Score:     score,
		Level:     level,
	}
	e.store.Append(alert)
	e.log.Warn("suspicious process",
		"pid", obs.PID,
		"name", obs.Name,
		"rule", ruleName,
		"score", score,
		"level", level,
	)

	if level != models.LevelHigh {
		return
	}
	if e.notify != nil && e.notify.Enabled() {
		e.sendNotification(ctx, alert)
	}
	if s.AutoPrevention && e.term != nil {
		if err := e.term.Terminate(ctx, obs.PID); err != nil {
			e.log.Warn("auto-prevention terminate failed", "pid", obs.PID, "err", err)
			return
		}
		e.log.Error("auto-prevention terminated process", "pid", obs.PID, "name", obs.Name, "score", score)
	}
}

// EnrichAlert fills in score and level for records written before scoring
// existed, recomputing them from the stored attributes. Current records
// pass through untouched.
func (e *Evaluator) EnrichAlert(a models.Alert) models.Alert {
	if a.Level != "" {
		return a
	}
	obs := models.Observation{PID: a.PID, Name: a.Name, Path: a.Path, CPU: a.CPU, Memory: a.Memory}
	a.Score = e.det.Score(obs, e.det.Trusted(a.Name))
	a.Level = Level(a.Score, e.runtime.Current())
	return a
}

func (e *Evaluator) EnrichAlerts(alerts []models.Alert) []models.Alert {
	out := make([]models.Alert, len(alerts))
	for i, a := range alerts {
		out[i] = e.EnrichAlert(a)
	}
	return out
}

func (e *Evaluator) sendNotification(ctx context.Context, a models.Alert) {
	msg := fmt.Sprintf("ALERT %s level=%s score=%d pid=%d cpu=%.1f%% mem=%.1fMB path=%s",
		a.Name, a.Level, a.Score, a.PID, a.CPU, a.Memory, a.Path)
	attempts := 0
	var err error
	for attempts < 3 {
		attempts++
		err = e.notify.Send(ctx, msg)
		if err == nil {
			if e.repo != nil {
				now := e.now().UTC()
				_ = e.repo.InsertNotificationEvent(ctx, a.Timestamp, "webhook", "sent", attempts, "", &now)
			}
			return
		}
		time.Sleep(time.Duration(attempts) * 300 * time.Millisecond)
	}
	if e.repo != nil {
		_ = e.repo.InsertNotificationEvent(ctx, a.Timestamp, "webhook", "failed", attempts, err.Error(), nil)
	}
	e.log.Warn("notify failed", "err", err)
}
