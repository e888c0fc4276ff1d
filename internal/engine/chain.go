package engine

import (
	"os"
	"path/filepath"
	"strings"

	"procwatch/internal/config"
	"procwatch/internal/models"
	"procwatch/internal/trust"
)

// Directories whose processes are unconditionally benign, and directories
// from which execution is always flagged. Matching is a plain prefix test
// on the raw path; symlinks are not resolved.
var trustedDirs = []string{
	"/System/",
	"/usr/",
	"/Applications/",
	"/Library/",
	"/opt/homebrew/",
}

var suspiciousDirs = []string{
	"/tmp/",
	"/var/tmp/",
	"/private/tmp/",
}

// Substrings identifying browser/OS helper subprocesses: high-volume,
// frequently spawned, benign.
var helperPatterns = []string{
	"Helper",
	"Renderer",
	"GPU",
	"WebKit",
	"mdworker",
}

// Detector classifies process observations as suspicious or benign and
// grades positives with an additive threat score. The heuristic chain is
// an ordered decision table: the first matching rule decides and
// evaluation stops. Reordering changes outcomes.
type Detector struct {
	trust   *trust.Cache
	runtime *config.Runtime
	rules   []rule

	trustedDirs    []string
	suspiciousDirs []string

	// injectable for tests
	pathAccessible func(string) bool
}

type rule struct {
	name string
	eval func(d *Detector, obs models.Observation) (decided, suspicious bool)
}

func NewDetector(tc *trust.Cache, runtime *config.Runtime) *Detector {
	d := &Detector{
		trust:          tc,
		runtime:        runtime,
		trustedDirs:    trustedDirs,
		suspiciousDirs: suspiciousDirs,
		pathAccessible: pathAccessible,
	}
	if home, err := os.UserHomeDir(); err == nil {
		d.trustedDirs = append(d.trustedDirs, filepath.Join(home, "Library")+"/")
		d.suspiciousDirs = append(d.suspiciousDirs, filepath.Join(home, "Downloads")+"/")
	}
	d.rules = []rule{
		{"trusted-path", ruleTrustedPath},
		{"helper-name", ruleHelperName},
		{"trusted-name-resources", ruleTrustedNameResources},
		{"suspicious-path", ruleSuspiciousPath},
		{"trust-list-miss", ruleTrustMiss},
		{"resource-threshold", ruleResourceThreshold},
	}
	return d
}

// IsSuspicious runs the heuristic chain and returns the verdict.
func (d *Detector) IsSuspicious(obs models.Observation) bool {
	suspicious, _ := d.Classify(obs)
	return suspicious
}

// Classify returns the verdict and the name of the rule that decided it.
// When no rule matches the verdict is benign with rule name "default".
func (d *Detector) Classify(obs models.Observation) (bool, string) {
	for _, r := range d.rules {
		if decided, suspicious := r.eval(d, obs); decided {
			return suspicious, r.name
		}
	}
	return false, "default"
}

// Trusted reports trust-list membership for name.
func (d *Detector) Trusted(name string) bool {
	return d.trust.IsTrusted(name)
}

func ruleTrustedPath(d *Detector, obs models.Observation) (bool, bool) {
	if d.inTrustedDir(obs.Path) {
		return true, false
	}
	return false, false
}

func ruleHelperName(d *Detector, obs models.Observation) (bool, bool) {
	for _, p := range helperPatterns {
		if strings.Contains(obs.Name, p) {
			return true, false
		}
	}
	return false, false
}

// A trusted, reachable binary in a sane location is benign unless it is
// behaving abnormally; runaway resource use still flags it.
func ruleTrustedNameResources(d *Detector, obs models.Observation) (bool, bool) {
	if !d.pathAccessible(obs.Path) || d.inSuspiciousPath(obs.Path) {
		return false, false
	}
	if !d.trust.IsTrusted(obs.Name) {
		return false, false
	}
	return true, d.overThreshold(obs)
}

func ruleSuspiciousPath(d *Detector, obs models.Observation) (bool, bool) {
	if d.inSuspiciousPath(obs.Path) {
		return true, true
	}
	return false, false
}

func ruleTrustMiss(d *Detector, obs models.Observation) (bool, bool) {
	if !d.trust.IsTrusted(obs.Name) && !d.inTrustedDir(obs.Path) {
		return true, true
	}
	return false, false
}

func ruleResourceThreshold(d *Detector, obs models.Observation) (bool, bool) {
	if d.overThreshold(obs) {
		return true, true
	}
	return false, false
}

func (d *Detector) overThreshold(obs models.Observation) bool {
	s := d.runtime.Current()
	return obs.CPU > s.CPUThreshold || obs.Memory > s.MemThresholdMB
}

func (d *Detector) inTrustedDir(path string) bool {
	if path == "" {
		return false
	}
	for _, dir := range d.trustedDirs {
		if strings.HasPrefix(path, dir) {
			return true
		}
	}
	return false
}

// inSuspiciousPath treats a missing path as suspicious: a process whose
// executable cannot be located has no verifiable identity.
func (d *Detector) inSuspiciousPath(path string) bool {
	if path == "" {
		return true
	}
	return d.inSuspiciousDir(path)
}

func (d *Detector) inSuspiciousDir(path string) bool {
	for _, dir := range d.suspiciousDirs {
		if strings.HasPrefix(path, dir) {
			return true
		}
	}
	return false
}

func pathAccessible(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}
