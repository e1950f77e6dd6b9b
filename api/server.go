package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/crosstrack/crosstrack/internal/count"
	"github.com/crosstrack/crosstrack/internal/monitoring"
	"github.com/crosstrack/crosstrack/internal/track"
	"github.com/crosstrack/crosstrack/internal/trackdb"
	"github.com/crosstrack/crosstrack/internal/version"
)

// Server exposes the tracker and counter state over HTTP. The store is
// optional; session endpoints return 404 when persistence is disabled.
type Server struct {
	tracker *track.Tracker
	counter *count.Counter
	store   *trackdb.SessionStore
}

func NewServer(tracker *track.Tracker, counter *count.Counter, store *trackdb.SessionStore) *Server {
	return &Server{
		tracker: tracker,
		counter: counter,
		store:   store,
	}
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("crosstrack server\n"))
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.statusHandler)
	mux.HandleFunc("/api/tracks", s.tracksHandler)
	mux.HandleFunc("/api/sessions", s.sessionsHandler)
	mux.HandleFunc("/api/events", s.eventsHandler)
	mux.HandleFunc("/api/reset", s.resetHandler)
	mux.HandleFunc("/charts/counts", s.countsChartHandler)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("api: failed to encode response: %v", err)
	}
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active, lost, potential := s.tracker.Counts()
	status := map[string]interface{}{
		"version":          version.Version,
		"frame":            s.tracker.Frame(),
		"active_tracks":    active,
		"lost_tracks":      lost,
		"potential_tracks": potential,
		"tracks_created":   s.tracker.Created(),
		"camera_motion":    s.tracker.CameraMotion(),
		"count_total":      s.counter.Total(),
	}
	s.writeJSON(w, status)
}

func (s *Server) tracksHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.tracker.Snapshot())
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "Persistence not enabled", http.StatusNotFound)
		return
	}

	sessions, err := s.store.ListSessions()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list sessions: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, sessions)
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "Persistence not enabled", http.StatusNotFound)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	events, err := s.store.ListEvents(sessionID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list events: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, events)
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.tracker.Reset()
	s.counter.Reset()
	monitoring.Logf("api: tracker and counter state reset")
	s.writeJSON(w, map[string]string{"status": "ok"})
}
