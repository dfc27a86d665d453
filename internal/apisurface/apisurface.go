// Package apisurface exposes the supervisor's authenticated HTTP control
// surface (spec §4.1, §6 "Supervisor HTTP"): spawn/pause/resume/kill/status/
// list/health, plus an optional websocket status stream. Grounded on
// internal/api/server.go's net/http.ServeMux + pattern-routing idiom
// (Go 1.22+ method+path patterns), generalized from engine-level
// start/stop/pause/resume to per-job control.
package apisurface

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/siteprobe/siteprobe/internal/backend"
	"github.com/siteprobe/siteprobe/internal/jobtypes"
	"github.com/siteprobe/siteprobe/internal/observability"
	"github.com/siteprobe/siteprobe/internal/supervisor"
)

// Server is the supervisor's HTTP control surface.
type Server struct {
	mux     *http.ServeMux
	sup     *supervisor.Supervisor
	be      *backend.Client
	apiKey  string
	logger  *slog.Logger
	metrics *observability.SupervisorMetrics

	upgrader websocket.Upgrader
}

// New builds a Server. apiKey, when non-empty, is required as a bearer token
// on every route except GET /health and GET /metrics (spec §6 "Supervisor
// HTTP... JSON in/out... Error responses... 401").
func New(sup *supervisor.Supervisor, be *backend.Client, apiKey string, logger *slog.Logger) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		sup:     sup,
		be:      be,
		apiKey:  apiKey,
		logger:  logger.With("component", "api_surface"),
		metrics: observability.NewSupervisorMetrics(sup.GaugeSnapshot, logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler (suitable for http.ListenAndServe).
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics)
	s.mux.HandleFunc("POST /spawn", s.auth(s.handleSpawn))
	s.mux.HandleFunc("POST /pause/{id}", s.auth(s.handlePause))
	s.mux.HandleFunc("POST /resume/{id}", s.auth(s.handleResume))
	s.mux.HandleFunc("POST /kill/{id}", s.auth(s.handleKill))
	s.mux.HandleFunc("GET /status/{id}", s.auth(s.handleStatus))
	s.mux.HandleFunc("GET /list", s.auth(s.handleList))
	s.mux.HandleFunc("GET /status/{id}/stream", s.auth(s.handleStream))
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next(w, r)
			return
		}
		got := r.Header.Get("Authorization")
		if got != "Bearer "+s.apiKey {
			s.jsonError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.JobID == "" {
		s.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	job, err := s.be.GetJob(ctx, body.JobID)
	if err != nil {
		s.jsonError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := s.sup.Spawn(r.Context(), job); err != nil {
		s.jsonError(w, http.StatusConflict, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "spawned", "job_id": job.ID})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sup.Pause(id); err != nil {
		s.jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	s.notifyStatus(r.Context(), id, jobtypes.StatusPaused)
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sup.Resume(id); err != nil {
		s.jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	s.notifyStatus(r.Context(), id, jobtypes.StatusRunning)
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sup.Kill(id); err != nil {
		s.jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "killed"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, lines, ok := s.sup.Status(id)
	if !ok {
		s.jsonError(w, http.StatusNotFound, "job not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"job_id":      rec.JobID,
		"pid":         rec.PID,
		"status":      rec.Status,
		"started_at":  rec.StartedAt,
		"finished_at": rec.FinishedAt,
		"exit_code":   rec.ExitCode,
		"log_tail":    lines,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.sup.List())
}

// handleStream upgrades to a websocket and periodically pushes the job's
// status/log tail until the client disconnects (spec: optional status
// stream, no framing format mandated by §4.1 beyond JSON messages).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		rec, lines, ok := s.sup.Status(id)
		if !ok {
			return
		}
		msg := map[string]any{"job_id": rec.JobID, "status": rec.Status, "log_tail": lines}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
		if rec.Status == jobtypes.StatusCompleted || rec.Status == jobtypes.StatusFailed || rec.Status == jobtypes.StatusKilled {
			return
		}
	}
}

func (s *Server) notifyStatus(ctx context.Context, jobID string, status jobtypes.Status) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.be.PostStatus(ctx, jobID, status); err != nil {
		s.logger.Warn("status callback failed", "job_id", jobID, "error", err)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
