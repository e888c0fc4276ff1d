package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"procwatch/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func alertN(n int) models.Alert {
	return models.Alert{
		Timestamp: fmt.Sprintf("2026-02-21T12:00:%02d.000000Z", n),
		PID:       int32(n),
		Name:      fmt.Sprintf("proc-%d", n),
		CPU:       float64(n),
		Memory:    float64(n) * 1.5,
		Path:      fmt.Sprintf("/tmp/proc-%d", n),
		Score:     40,
		Level:     models.LevelMedium,
	}
}

func TestRoundTripPreservesOrderAndFields(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "alerts.json"), testLogger())
	want := []models.Alert{alertN(1), alertN(2), alertN(3)}
	for _, a := range want {
		s.Append(a)
	}
	got := s.ReadAll()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestReadAllMissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "alerts.json"), testLogger())
	if got := s.ReadAll(); len(got) != 0 {
		t.Fatalf("ReadAll on missing file = %d records, want 0", len(got))
	}
}

func TestReadAllMalformedFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.json")
	if err := os.WriteFile(path, []byte(`{"not": "an array"`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(path, testLogger())
	if got := s.ReadAll(); len(got) != 0 {
		t.Fatalf("ReadAll on malformed file = %d records, want 0", len(got))
	}
}

func TestAppendRecoversFromCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.json")
	if err := os.WriteFile(path, []byte(`[{"timestamp": "tru`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(path, testLogger())
	a := alertN(7)
	s.Append(a)

	got := s.ReadAll()
	if len(got) != 1 || !reflect.DeepEqual(got[0], a) {
		t.Fatalf("after corruption recovery got %+v, want exactly [%+v]", got, a)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var onDisk []models.Alert
	if err := json.Unmarshal(b, &onDisk); err != nil {
		t.Fatalf("rewritten file must be valid JSON: %v", err)
	}
	if len(onDisk) != 1 {
		t.Fatalf("on-disk records = %d, want 1", len(onDisk))
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "alerts.json"), testLogger())
	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(alertN(i))
		}(i)
	}
	wg.Wait()

	got := s.ReadAll()
	if len(got) != n {
		t.Fatalf("records = %d, want %d", len(got), n)
	}
	seen := map[int32]bool{}
	for _, a := range got {
		if seen[a.PID] {
			t.Fatalf("pid %d appended twice", a.PID)
		}
		seen[a.PID] = true
	}
}

func TestLegacyRecordsSurviveUnchangedOnRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.json")
	legacy := `[{"timestamp":"2024-01-01T00:00:00.000000Z","pid":9,"name":"old","cpu":50,"memory":100,"path":"/tmp/old"}]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(path, testLogger())
	got := s.ReadAll()
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	if got[0].Score != 0 || got[0].Level != "" {
		t.Fatalf("store must not invent score/level, got %d/%q", got[0].Score, got[0].Level)
	}

	s.Append(alertN(1))
	got = s.ReadAll()
	if len(got) != 2 || got[0].Name != "old" {
		t.Fatalf("append must preserve legacy records, got %+v", got)
	}
}

func TestWriteFailureLoggedOnce(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	var buf bytes.Buffer
	s := New(filepath.Join(blocker, "alerts.json"), slog.New(slog.NewJSONHandler(&buf, nil)))
	s.Append(alertN(1))
	s.Append(alertN(2))
	s.Append(alertN(3))

	count := bytes.Count(buf.Bytes(), []byte("alert file write failed"))
	if count != 1 {
		t.Fatalf("write failure logged %d times, want once", count)
	}
}
