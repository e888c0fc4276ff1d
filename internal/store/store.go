package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"procwatch/internal/models"
)

// Store is the append-only alert collection, persisted as a JSON array.
// One mutex serializes every reader and writer; alert volume is low and
// correctness dominates throughput here. The store assumes a single
// owning process; there is no inter-process lock.
type Store struct {
	path string
	log  *slog.Logger

	mu             sync.Mutex
	writeErrLogged bool
}

func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, log: logger}
}

// Append reads the persisted collection, adds a and writes the whole
// collection back, all under the lock. Unreadable or malformed content is
// discarded and reinitialized: a corrupted history must never block a new
// detection.
func (s *Store) Append(a models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alerts := s.readLocked()
	alerts = append(alerts, a)
	s.writeLocked(alerts)
}

// ReadAll returns every persisted alert in append order. Malformed
// content yields an empty slice, never an error.
func (s *Store) ReadAll() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Store) readLocked() []models.Alert {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("alert file unreadable, starting empty", "path", s.path, "err", err)
		}
		return nil
	}
	var alerts []models.Alert
	if err := json.Unmarshal(b, &alerts); err != nil {
		s.log.Warn("alert file corrupted, prior alerts lost", "path", s.path, "err", err)
		return nil
	}
	return alerts
}

func (s *Store) writeLocked(alerts []models.Alert) {
	b, err := json.MarshalIndent(alerts, "", "  ")
	if err != nil {
		s.reportWriteFailure(err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.reportWriteFailure(err)
		return
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		s.reportWriteFailure(err)
		return
	}
	s.writeErrLogged = false
}

// reportWriteFailure logs an unwritable store once instead of on every
// evaluation at the polling interval.
func (s *Store) reportWriteFailure(err error) {
	if s.writeErrLogged {
		return
	}
	s.writeErrLogged = true
	s.log.Error("alert file write failed, alerts are not being persisted", "path", s.path, "err", err)
}
