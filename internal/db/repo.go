package db

import (
	"context"
	"database/sql"
	"time"

	"procwatch/internal/models"
)

// Repository holds the observational history the dashboard reads: process
// scan samples, connection samples and file events. Alerts live in the
// JSON alert store, not here.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) InsertProcessSample(ctx context.Context, s models.ProcessSample) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO process_samples (ts, pid, name, cpu_pct, mem_mb, path) VALUES (?,?,?,?,?,?)`,
		s.TS, s.PID, s.Name, s.CPU, s.Memory, s.Path)
	return err
}

func (r *Repository) RecentProcessSamples(ctx context.Context, from time.Time, limit int) ([]models.ProcessSample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ts, pid, name, cpu_pct, mem_mb, path FROM process_samples
		 WHERE ts >= ? ORDER BY ts DESC LIMIT ?`, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ProcessSample
	for rows.Next() {
		var s models.ProcessSample
		if err := rows.Scan(&s.TS, &s.PID, &s.Name, &s.CPU, &s.Memory, &s.Path); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) InsertConnSample(ctx context.Context, c models.ConnSample) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO net_connections (ts, pid, process_name, local_addr, remote_addr, status) VALUES (?,?,?,?,?,?)`,
		c.TS, c.PID, c.ProcessName, c.LocalAddr, c.RemoteAddr, c.Status)
	return err
}

func (r *Repository) RecentConnSamples(ctx context.Context, from time.Time, limit int) ([]models.ConnSample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ts, pid, process_name, local_addr, remote_addr, status FROM net_connections
		 WHERE ts >= ? ORDER BY ts DESC LIMIT ?`, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ConnSample
	for rows.Next() {
		var c models.ConnSample
		if err := rows.Scan(&c.TS, &c.PID, &c.ProcessName, &c.LocalAddr, &c.RemoteAddr, &c.Status); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) InsertFileEvent(ctx context.Context, e models.FileEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO file_events (ts, event, path) VALUES (?,?,?)`, e.TS, e.Event, e.Path)
	return err
}

func (r *Repository) RecentFileEvents(ctx context.Context, from time.Time, limit int) ([]models.FileEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ts, event, path FROM file_events WHERE ts >= ? ORDER BY ts DESC LIMIT ?`, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.FileEvent
	for rows.Next() {
		var e models.FileEvent
		if err := rows.Scan(&e.TS, &e.Event, &e.Path); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) InsertNotificationEvent(ctx context.Context, alertTS, channel, status string, attempts int, lastError string, sentAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_events (alert_ts, channel, status, attempts, last_error, sent_ts_nullable) VALUES (?,?,?,?,?,?)`,
		alertTS, channel, status, attempts, lastError, sentAt)
	return err
}

// DeleteOlderThan prunes history rows past the retention cutoff. The
// alert store is append-only and never pruned.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	for _, table := range []string{"process_samples", "net_connections", "file_events"} {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < ?`, cutoff); err != nil {
			return err
		}
	}
	return nil
}
