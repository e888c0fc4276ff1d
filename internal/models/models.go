package models

import "time"

// TimestampFormat is the fixed-precision UTC layout written into alert records.
const TimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// Observation is one snapshot of a running process at evaluation time.
// Path is empty when the executable could not be resolved; an absent path
// is itself a risk signal.
type Observation struct {
	PID    int32
	Name   string
	Path   string
	CPU    float64 // percent
	Memory float64 // resident set, MB
}

// Alert is one persisted positive verdict. Records written before scoring
// existed carry no score/level; readers recompute those on the fly.
type Alert struct {
	Timestamp string  `json:"timestamp"`
	PID       int32   `json:"pid"`
	Name      string  `json:"name"`
	CPU       float64 `json:"cpu"`
	Memory    float64 `json:"memory"`
	Path      string  `json:"path,omitempty"`
	Score     int     `json:"score,omitempty"`
	Level     string  `json:"level,omitempty"`
}

type ProcessSample struct {
	TS     time.Time
	PID    int32
	Name   string
	CPU    float64
	Memory float64
	Path   string
}

type ConnSample struct {
	TS          time.Time
	PID         int32
	ProcessName string
	LocalAddr   string
	RemoteAddr  string
	Status      string
}

type FileEvent struct {
	TS    time.Time
	Event string // created, modified, deleted
	Path  string
}
