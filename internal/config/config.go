package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr          string
	DataDir       string
	DBPath        string
	AlertsPath    string
	TrustListPath string
	WatchDir      string
	ScanInterval  time.Duration
	NetInterval   time.Duration
	WatchInterval time.Duration
	RetentionDays int
	WebhookURL    string
	Settings      Settings
}

// Settings holds the tunables the evaluation path reads on every call.
// They are replaced wholesale through Runtime, never mutated in place.
type Settings struct {
	CPUThreshold   float64 `json:"cpu_threshold"`    // percent
	MemThresholdMB float64 `json:"mem_threshold_mb"` // resident set, MB
	HighScore      int     `json:"high_score"`
	MediumScore    int     `json:"medium_score"`
	AutoPrevention bool    `json:"auto_prevention"`
}

func Load() Config {
	dataDir := getenv("PW_DATA_DIR", "./data")
	return Config{
		Addr:          getenv("PW_ADDR", ":8080"),
		DataDir:       dataDir,
		DBPath:        getenv("PW_DB_PATH", dataDir+"/history.db"),
		AlertsPath:    getenv("PW_ALERTS_PATH", dataDir+"/alerts.json"),
		TrustListPath: getenv("PW_TRUST_PATH", "./whitelist.json"),
		WatchDir:      os.Getenv("PW_WATCH_DIR"),
		ScanInterval:  getenvDuration("PW_SCAN_INTERVAL", 2*time.Second),
		NetInterval:   getenvDuration("PW_NET_INTERVAL", 5*time.Second),
		WatchInterval: getenvDuration("PW_WATCH_INTERVAL", 5*time.Second),
		RetentionDays: getenvInt("PW_RETENTION_DAYS", 14),
		WebhookURL:    os.Getenv("PW_WEBHOOK_URL"),
		Settings: Settings{
			CPUThreshold:   getenvFloat("PW_CPU_THRESHOLD", 85.0),
			MemThresholdMB: getenvFloat("PW_MEM_THRESHOLD_MB", 800.0),
			HighScore:      getenvInt("PW_SCORE_HIGH", 70),
			MediumScore:    getenvInt("PW_SCORE_MEDIUM", 30),
			AutoPrevention: getenvBool("PW_AUTO_PREVENT", false),
		},
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return d
	}
	return f
}

func getenvDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}

func getenvBool(k string, d bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(k)))
	if v == "" {
		return d
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	return d
}
