package web

import (
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"procwatch/internal/config"
	"procwatch/internal/db"
	"procwatch/internal/engine"
	"procwatch/internal/models"
	"procwatch/internal/notifier"
	"procwatch/internal/store"

	"html/template"
)

//go:embed templates/*.html
var webFS embed.FS

// Server is the read-only reporting surface plus the settings endpoint.
// It never writes alerts; it reads them through the store and enriches
// legacy records with recomputed score/level.
type Server struct {
	alerts  *store.Store
	eval    *engine.Evaluator
	repo    *db.Repository
	runtime *config.Runtime
	notify  *notifier.Webhook
	log     *slog.Logger
	tpl     *template.Template
}

func NewServer(alerts *store.Store, eval *engine.Evaluator, repo *db.Repository, runtime *config.Runtime, notify *notifier.Webhook, logger *slog.Logger) *Server {
	tpl := template.Must(template.ParseFS(webFS, "templates/*.html"))
	return &Server{alerts: alerts, eval: eval, repo: repo, runtime: runtime, notify: notify, log: logger, tpl: tpl}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/alerts/summary", s.handleAlertsSummary)
	mux.HandleFunc("/api/processes", s.handleProcesses)
	mux.HandleFunc("/api/connections", s.handleConnections)
	mux.HandleFunc("/api/files", s.handleFileEvents)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/notify/test", s.handleNotifyTest)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	return logMiddleware(mux, s.log)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	alerts := s.eval.EnrichAlerts(s.alerts.ReadAll())
	// newest first for display
	for i, j := 0, len(alerts)-1; i < j; i, j = i+1, j-1 {
		alerts[i], alerts[j] = alerts[j], alerts[i]
	}
	if err := s.tpl.ExecuteTemplate(w, "index.html", map[string]any{"alerts": alerts}); err != nil {
		http.Error(w, err.Error(), 500)
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.eval.EnrichAlerts(s.alerts.ReadAll()))
}

func (s *Server) handleAlertsSummary(w http.ResponseWriter, r *http.Request) {
	alerts := s.eval.EnrichAlerts(s.alerts.ReadAll())
	counts := map[string]int{models.LevelHigh: 0, models.LevelMedium: 0, models.LevelLow: 0}
	for _, a := range alerts {
		counts[a.Level]++
	}
	last := ""
	if len(alerts) > 0 {
		last = alerts[len(alerts)-1].Timestamp
	}
	writeJSON(w, map[string]any{
		"total":      len(alerts),
		"by_level":   counts,
		"last_alert": last,
	})
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	from, limit := queryWindow(r)
	samples, err := s.repo.RecentProcessSamples(r.Context(), from, limit)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, samples)
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	from, limit := queryWindow(r)
	samples, err := s.repo.RecentConnSamples(r.Context(), from, limit)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, samples)
}

func (s *Server) handleFileEvents(w http.ResponseWriter, r *http.Request) {
	from, limit := queryWindow(r)
	events, err := s.repo.RecentFileEvents(r.Context(), from, limit)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, events)
}

// handleSettings reads or replaces the live Settings snapshot. A POST body
// may carry any subset of fields; unspecified fields keep their current
// values, and the snapshot is swapped in one step.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.runtime.Current())
	case http.MethodPost:
		cur := s.runtime.Current()
		if err := json.NewDecoder(r.Body).Decode(&cur); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if cur.CPUThreshold <= 0 || cur.MemThresholdMB <= 0 || cur.HighScore < cur.MediumScore {
			http.Error(w, "invalid settings", 400)
			return
		}
		s.runtime.Replace(cur)
		s.log.Info("settings updated",
			"cpu_threshold", cur.CPUThreshold,
			"mem_threshold_mb", cur.MemThresholdMB,
			"auto_prevention", cur.AutoPrevention,
		)
		writeJSON(w, cur)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.notify.Send(r.Context(), "procwatch test alert: webhook integration is working"); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DB().PingContext(r.Context()); err != nil {
		http.Error(w, "db not ready", 503)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func queryWindow(r *http.Request) (time.Time, int) {
	rng := time.Hour
	if v := r.URL.Query().Get("range"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			rng = d
		}
	}
	limit := 500
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return time.Now().UTC().Add(-rng), limit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
