// Package api serves the read-only dashboard: JSON endpoints over the store,
// a live websocket feed, and an embedded index page.
package api

import (
	"context"
	_ "embed"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/export"
	"github.com/phelix001/ISPFCCComplainer/model"
	"github.com/phelix001/ISPFCCComplainer/report"
	"github.com/phelix001/ISPFCCComplainer/storage"
)

//go:embed index.html
var indexHTML []byte

// RunFunc triggers one speed test and persists the result.
type RunFunc func(ctx context.Context) (*model.SpeedTest, error)

type Server struct {
	cfg   *config.Config
	store *storage.Store
	run   RunFunc
	hub   *Hub
}

func NewServer(cfg *config.Config, store *storage.Store, run RunFunc) *Server {
	return &Server{
		cfg:   cfg,
		store: store,
		run:   run,
		hub:   NewHub(),
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/complaints", s.handleComplaints)
	mux.HandleFunc("/api/export/day.json", s.handleExportDay)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/ws", s.handleWS)
	mux.HandleFunc("/", s.handleIndex)
}

// BroadcastSpeedTest pushes a new sample to every websocket client.
func (s *Server) BroadcastSpeedTest(t *model.SpeedTest) {
	s.hub.Broadcast(map[string]any{
		"type": "speed_test",
		"data": t,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// windowStats is the dashboard view of a report.Aggregate.
type windowStats struct {
	Count        int     `json:"count"`
	MeanDownload float64 `json:"mean_download_mbps"`
	MinDownload  float64 `json:"min_download_mbps"`
	MaxDownload  float64 `json:"max_download_mbps"`
	MeanUpload   float64 `json:"mean_upload_mbps"`
	MeanPing     float64 `json:"mean_ping_ms"`
	FailedCount  int     `json:"failed_count"`
	FailureRate  float64 `json:"failure_rate"`
	MeanPercent  float64 `json:"mean_percent_of_advertised"`
}

type summaryResponse struct {
	AdvertisedMbps float64                `json:"advertised_mbps"`
	ThresholdMbps  float64                `json:"threshold_mbps"`
	ThresholdPct   int                    `json:"threshold_percent"`
	Latest         *model.SpeedTest       `json:"latest,omitempty"`
	Windows        map[string]windowStats `json:"windows"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	tests, err := s.store.RecentSpeedTests(r.Context(), 1000)
	if err != nil {
		logrus.WithError(err).Error("load summary")
		http.Error(w, "failed to load results", http.StatusInternalServerError)
		return
	}

	resp := summaryResponse{
		AdvertisedMbps: s.cfg.AdvertisedSpeedMbps,
		ThresholdMbps:  s.cfg.ThresholdSpeedMbps(),
		ThresholdPct:   s.cfg.ThresholdPercent,
		Windows:        make(map[string]windowStats),
	}
	if len(tests) > 0 {
		latest := tests[0]
		resp.Latest = &latest
	}

	now := time.Now()
	startToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windows := []struct {
		name string
		from time.Time
		to   time.Time
	}{
		{"today", startToday, startToday.AddDate(0, 0, 1)},
		{"yesterday", startToday.AddDate(0, 0, -1), startToday},
		{"last7days", startToday.AddDate(0, 0, -7), startToday.AddDate(0, 0, 1)},
		{"last30days", startToday.AddDate(0, 0, -30), startToday.AddDate(0, 0, 1)},
	}

	for _, win := range windows {
		var subset []model.SpeedTest
		for _, t := range tests {
			if !t.Timestamp.Before(win.from) && t.Timestamp.Before(win.to) {
				subset = append(subset, t)
			}
		}
		if len(subset) == 0 {
			resp.Windows[win.name] = windowStats{}
			continue
		}
		agg := report.Compute(s.cfg, subset)
		resp.Windows[win.name] = windowStats{
			Count:        agg.Total,
			MeanDownload: agg.MeanDownload,
			MinDownload:  agg.MinDownload,
			MaxDownload:  agg.MaxDownload,
			MeanUpload:   agg.MeanUpload,
			MeanPing:     agg.MeanPing,
			FailedCount:  len(agg.Failed),
			FailureRate:  agg.FailureRate,
			MeanPercent:  agg.MeanPercent,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	tests, err := s.store.RecentSpeedTests(r.Context(), limit)
	if err != nil {
		logrus.WithError(err).Error("load history")
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if tests == nil {
		tests = []model.SpeedTest{}
	}
	writeJSON(w, http.StatusOK, tests)
}

func (s *Server) handleComplaints(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	complaints, err := s.store.RecentComplaints(r.Context(), limit)
	if err != nil {
		logrus.WithError(err).Error("load complaints")
		http.Error(w, "failed to load complaints", http.StatusInternalServerError)
		return
	}
	if complaints == nil {
		complaints = []model.Complaint{}
	}
	writeJSON(w, http.StatusOK, complaints)
}

func (s *Server) handleExportDay(w http.ResponseWriter, r *http.Request) {
	date := time.Now().AddDate(0, 0, -1)
	if v := r.URL.Query().Get("date"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = t
	}

	tests, err := s.store.SpeedTestsForDate(r.Context(), date)
	if err != nil {
		logrus.WithError(err).Error("load export day")
		http.Error(w, "failed to load day", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, export.Build(s.cfg, date, tests))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.run == nil {
		http.Error(w, "speed test runner not configured", http.StatusInternalServerError)
		return
	}

	result, err := s.run(r.Context())
	if err != nil {
		logrus.WithError(err).Error("manual speed test")
		http.Error(w, "speed test failed", http.StatusInternalServerError)
		return
	}
	s.BroadcastSpeedTest(result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func queryLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 1000 {
		return def
	}
	return n
}
