package trackdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session represents one counting run: a stretch of frames processed with a
// fixed tracker configuration, accumulating a crossing count.
type Session struct {
	SessionID  string          `json:"session_id"`
	Source     string          `json:"source"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at,omitempty"`
	Frames     int             `json:"frames"`
	Total      int             `json:"total"`
	ConfigJSON json.RawMessage `json:"config_json,omitempty"`
}

// CountEvent is a single crossing recorded during a session. Delta is +1 for
// a forward crossing and -1 for a reverse crossing.
type CountEvent struct {
	SessionID      string `json:"session_id"`
	Frame          int    `json:"frame"`
	TrackID        int    `json:"track_id"`
	ThresholdIndex int    `json:"threshold_index"`
	Delta          int    `json:"delta"`
	CreatedAt      int64  `json:"created_at"`
}

// TrackSummary is the per-track rollup persisted when a session finishes.
type TrackSummary struct {
	SessionID   string  `json:"session_id"`
	TrackID     int     `json:"track_id"`
	Label       string  `json:"label"`
	StartFrame  int     `json:"start_frame"`
	EndFrame    int     `json:"end_frame"`
	TrackletLen int     `json:"tracklet_len"`
	Score       float64 `json:"score"`
	Counted     bool    `json:"counted"`
}

// SessionStore provides persistence for counting sessions and their events.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db.DB}
}

// CreateSession persists a new session. If SessionID is empty, a UUID is
// generated and written back into the struct.
func (s *SessionStore) CreateSession(sess *Session) error {
	if sess.SessionID == "" {
		sess.SessionID = uuid.New().String()
	}
	if sess.StartedAt == 0 {
		sess.StartedAt = time.Now().UnixNano()
	}

	var configStr interface{}
	if len(sess.ConfigJSON) > 0 {
		configStr = string(sess.ConfigJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO count_sessions (
				session_id, source, started_at, finished_at, frames, total, config_json
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.SessionID, sess.Source, sess.StartedAt, sess.FinishedAt,
			sess.Frames, sess.Total, configStr,
		)
		return err
	})
}

// FinishSession records the final frame count and total for a session.
func (s *SessionStore) FinishSession(sessionID string, frames, total int) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			UPDATE count_sessions
			SET finished_at = ?, frames = ?, total = ?
			WHERE session_id = ?`,
			time.Now().UnixNano(), frames, total, sessionID,
		)
		return err
	})
}

// GetSession returns a single session by ID.
func (s *SessionStore) GetSession(sessionID string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT session_id, source, started_at, finished_at, frames, total, config_json
		FROM count_sessions
		WHERE session_id = ?`, sessionID)

	var sess Session
	var configStr sql.NullString
	err := row.Scan(
		&sess.SessionID, &sess.Source, &sess.StartedAt, &sess.FinishedAt,
		&sess.Frames, &sess.Total, &configStr,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if configStr.Valid {
		sess.ConfigJSON = json.RawMessage(configStr.String)
	}
	return &sess, nil
}

// ListSessions returns all sessions ordered by start time descending.
func (s *SessionStore) ListSessions() ([]*Session, error) {
	rows, err := s.db.Query(`
		SELECT session_id, source, started_at, finished_at, frames, total, config_json
		FROM count_sessions
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var configStr sql.NullString
		if err := rows.Scan(
			&sess.SessionID, &sess.Source, &sess.StartedAt, &sess.FinishedAt,
			&sess.Frames, &sess.Total, &configStr,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if configStr.Valid {
			sess.ConfigJSON = json.RawMessage(configStr.String)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// InsertEvent persists a single crossing event.
func (s *SessionStore) InsertEvent(ev *CountEvent) error {
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().UnixNano()
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO count_events (
				session_id, frame, track_id, threshold_index, delta, created_at
			) VALUES (?, ?, ?, ?, ?, ?)`,
			ev.SessionID, ev.Frame, ev.TrackID, ev.ThresholdIndex, ev.Delta, ev.CreatedAt,
		)
		return err
	})
}

// ListEvents returns all events for a session in frame order.
func (s *SessionStore) ListEvents(sessionID string) ([]*CountEvent, error) {
	rows, err := s.db.Query(`
		SELECT session_id, frame, track_id, threshold_index, delta, created_at
		FROM count_events
		WHERE session_id = ?
		ORDER BY frame ASC, created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*CountEvent
	for rows.Next() {
		var ev CountEvent
		if err := rows.Scan(
			&ev.SessionID, &ev.Frame, &ev.TrackID, &ev.ThresholdIndex,
			&ev.Delta, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// InsertTrackSummary persists a per-track rollup row.
func (s *SessionStore) InsertTrackSummary(ts *TrackSummary) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO track_summaries (
				session_id, track_id, label, start_frame, end_frame,
				tracklet_len, score, counted
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ts.SessionID, ts.TrackID, ts.Label, ts.StartFrame, ts.EndFrame,
			ts.TrackletLen, ts.Score, ts.Counted,
		)
		return err
	})
}

// ListTrackSummaries returns all track rollups for a session ordered by
// track ID.
func (s *SessionStore) ListTrackSummaries(sessionID string) ([]*TrackSummary, error) {
	rows, err := s.db.Query(`
		SELECT session_id, track_id, label, start_frame, end_frame,
		       tracklet_len, score, counted
		FROM track_summaries
		WHERE session_id = ?
		ORDER BY track_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query track summaries: %w", err)
	}
	defer rows.Close()

	var sums []*TrackSummary
	for rows.Next() {
		var ts TrackSummary
		if err := rows.Scan(
			&ts.SessionID, &ts.TrackID, &ts.Label, &ts.StartFrame, &ts.EndFrame,
			&ts.TrackletLen, &ts.Score, &ts.Counted,
		); err != nil {
			return nil, fmt.Errorf("scan track summary: %w", err)
		}
		sums = append(sums, &ts)
	}
	return sums, rows.Err()
}
