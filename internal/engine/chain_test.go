package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"procwatch/internal/config"
	"procwatch/internal/models"
	"procwatch/internal/trust"
)

func testSettings() config.Settings {
	return config.Settings{
		CPUThreshold:   85,
		MemThresholdMB: 800,
		HighScore:      70,
		MediumScore:    30,
	}
}

// newTestDetector builds a detector over a real trust-list file and a
// stubbed path-accessibility check so results do not depend on the test
// host's filesystem.
func newTestDetector(t *testing.T, trusted []string, accessible bool) (*Detector, *config.Runtime) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whitelist.json")
	list := `{"whitelist": [`
	for i, n := range trusted {
		if i > 0 {
			list += ","
		}
		list += fmt.Sprintf("%q", n)
	}
	list += `]}`
	if err := os.WriteFile(path, []byte(list), 0o644); err != nil {
		t.Fatalf("write trust list: %v", err)
	}
	tc := trust.New(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	runtime := config.NewRuntime(testSettings())
	d := NewDetector(tc, runtime)
	d.pathAccessible = func(p string) bool { return accessible && p != "" }
	return d, runtime
}

func TestTrustedPathWinsRegardlessOfResources(t *testing.T) {
	d, _ := newTestDetector(t, nil, true)
	obs := models.Observation{PID: 1, Name: "nginx", Path: "/usr/sbin/nginx", CPU: 99, Memory: 9000}
	if d.IsSuspicious(obs) {
		t.Fatal("trusted path must win before resource checks are consulted")
	}
	suspicious, rule := d.Classify(obs)
	if suspicious || rule != "trusted-path" {
		t.Fatalf("got (%v, %s), want (false, trusted-path)", suspicious, rule)
	}
}

func TestHelperNameIsBenign(t *testing.T) {
	d, _ := newTestDetector(t, nil, false)
	for _, name := range []string{"Chrome Helper", "Renderer Process", "GPU worker", "WebKitNetworking", "mdworker_shared"} {
		obs := models.Observation{Name: name, Path: "/home/user/apps/thing", CPU: 99}
		if d.IsSuspicious(obs) {
			t.Fatalf("%q should match the helper bypass", name)
		}
	}
}

func TestSuspiciousDirWinsOverTrustList(t *testing.T) {
	d, _ := newTestDetector(t, []string{"bash"}, true)
	obs := models.Observation{Name: "bash", Path: "/tmp/bash", CPU: 1, Memory: 10}
	suspicious, rule := d.Classify(obs)
	if !suspicious || rule != "suspicious-path" {
		t.Fatalf("got (%v, %s), want (true, suspicious-path)", suspicious, rule)
	}
}

func TestAllSuspiciousDirsFlag(t *testing.T) {
	d, _ := newTestDetector(t, nil, true)
	for _, path := range []string{"/tmp/x", "/var/tmp/x", "/private/tmp/x"} {
		if !d.IsSuspicious(models.Observation{Name: "x", Path: path}) {
			t.Fatalf("%q should be flagged", path)
		}
	}
}

func TestTrustedNameAccessiblePathAppliesThresholds(t *testing.T) {
	d, _ := newTestDetector(t, []string{"worker"}, true)

	busy := models.Observation{Name: "worker", Path: "/home/user/bin/worker", CPU: 90, Memory: 100}
	suspicious, rule := d.Classify(busy)
	if !suspicious || rule != "trusted-name-resources" {
		t.Fatalf("got (%v, %s), want (true, trusted-name-resources)", suspicious, rule)
	}

	hungry := models.Observation{Name: "worker", Path: "/home/user/bin/worker", CPU: 5, Memory: 900}
	if !d.IsSuspicious(hungry) {
		t.Fatal("memory over threshold should flag a trusted process")
	}

	idle := models.Observation{Name: "worker", Path: "/home/user/bin/worker", CPU: 5, Memory: 100}
	if d.IsSuspicious(idle) {
		t.Fatal("trusted process at a sane path with normal usage must be benign")
	}
}

func TestTrustListMissGuard(t *testing.T) {
	d, _ := newTestDetector(t, []string{"worker"}, false)
	obs := models.Observation{Name: "mystery", Path: "/home/user/bin/mystery", CPU: 1, Memory: 10}
	suspicious, rule := d.Classify(obs)
	if !suspicious || rule != "trust-list-miss" {
		t.Fatalf("got (%v, %s), want (true, trust-list-miss)", suspicious, rule)
	}
}

func TestResourceFallbackForTrustedNameAtUnreachablePath(t *testing.T) {
	d, _ := newTestDetector(t, []string{"worker"}, false)

	busy := models.Observation{Name: "worker", Path: "/home/user/bin/worker", CPU: 90, Memory: 100}
	suspicious, rule := d.Classify(busy)
	if !suspicious || rule != "resource-threshold" {
		t.Fatalf("got (%v, %s), want (true, resource-threshold)", suspicious, rule)
	}

	idle := models.Observation{Name: "worker", Path: "/home/user/bin/worker", CPU: 5, Memory: 100}
	suspicious, rule = d.Classify(idle)
	if suspicious || rule != "default" {
		t.Fatalf("got (%v, %s), want (false, default)", suspicious, rule)
	}
}

func TestAbsentPathIsSuspicious(t *testing.T) {
	d, _ := newTestDetector(t, []string{"ghost"}, false)
	obs := models.Observation{Name: "ghost", Path: "", CPU: 1, Memory: 10}
	suspicious, rule := d.Classify(obs)
	if !suspicious || rule != "suspicious-path" {
		t.Fatalf("got (%v, %s), want (true, suspicious-path)", suspicious, rule)
	}
}

func TestThresholdChangesTakeEffectImmediately(t *testing.T) {
	d, runtime := newTestDetector(t, []string{"worker"}, true)
	obs := models.Observation{Name: "worker", Path: "/home/user/bin/worker", CPU: 50, Memory: 100}
	if d.IsSuspicious(obs) {
		t.Fatal("CPU under the default threshold should be benign")
	}

	s := runtime.Current()
	s.CPUThreshold = 40
	runtime.Replace(s)
	if !d.IsSuspicious(obs) {
		t.Fatal("lowered threshold must apply on the next evaluation")
	}
}

func TestScenarioTmpEvil(t *testing.T) {
	d, _ := newTestDetector(t, nil, true)
	obs := models.Observation{PID: 999, Name: "evil", Path: "/tmp/evil", CPU: 95, Memory: 10}
	if !d.IsSuspicious(obs) {
		t.Fatal("binary in /tmp must be suspicious")
	}
	score := d.Score(obs, d.Trusted(obs.Name))
	if score != 100 {
		t.Fatalf("score = %d, want 100 (40 path + 30 untrusted + 30 cpu)", score)
	}
	if got := Level(score, testSettings()); got != models.LevelHigh {
		t.Fatalf("level = %s, want high", got)
	}
}

func TestScenarioTrustedNginx(t *testing.T) {
	d, _ := newTestDetector(t, []string{"nginx"}, true)
	obs := models.Observation{Name: "nginx", Path: "/usr/sbin/nginx", CPU: 10, Memory: 50}
	suspicious, rule := d.Classify(obs)
	if suspicious || rule != "trusted-path" {
		t.Fatalf("got (%v, %s), want the trusted-path fast-path", suspicious, rule)
	}
}

func TestScenarioBusyWhitelistedWorker(t *testing.T) {
	d, _ := newTestDetector(t, []string{"worker"}, true)
	obs := models.Observation{Name: "worker", Path: "/home/user/bin/worker", CPU: 90, Memory: 100}
	if !d.IsSuspicious(obs) {
		t.Fatal("worker over the CPU threshold must be flagged")
	}
	score := d.Score(obs, d.Trusted(obs.Name))
	if score != 30 {
		t.Fatalf("score = %d, want 30 (CPU only)", score)
	}
	if got := Level(score, testSettings()); got != models.LevelMedium {
		t.Fatalf("level = %s, want medium", got)
	}
}
