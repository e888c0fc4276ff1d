package engine

import (
	"procwatch/internal/config"
	"procwatch/internal/models"
)

// Additive risk points. The raw maximum is 140; the final score clamps
// to 100.
const (
	pointsSuspiciousDir = 40
	pointsUntrusted     = 30
	pointsNoPath        = 20
	pointsCPU           = 30
	pointsMemory        = 20
)

// Score grades an observation independently of the chain's verdict, so a
// binary positive gets a graded severity. trusted is the observation
// name's trust-list membership.
func (d *Detector) Score(obs models.Observation, trusted bool) int {
	s := d.runtime.Current()
	score := 0
	if d.inSuspiciousPath(obs.Path) {
		score += pointsSuspiciousDir
	}
	if !trusted {
		score += pointsUntrusted
	}
	if obs.Path == "" {
		score += pointsNoPath
	}
	if obs.CPU > s.CPUThreshold {
		score += pointsCPU
	}
	if obs.Memory > s.MemThresholdMB {
		score += pointsMemory
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Level maps a score to a severity tier using the configured cut-offs.
func Level(score int, s config.Settings) string {
	switch {
	case score >= s.HighScore:
		return models.LevelHigh
	case score >= s.MediumScore:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}
