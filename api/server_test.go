package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosstrack/crosstrack/internal/count"
	"github.com/crosstrack/crosstrack/internal/track"
	"github.com/crosstrack/crosstrack/internal/trackdb"
)

func newTestServer(t *testing.T, withStore bool) (*Server, *track.Tracker, *count.Counter, *trackdb.SessionStore) {
	t.Helper()
	cfg := track.DefaultTrackerConfig()
	cfg.RequiredFramesForTrack = 1
	tracker := track.NewTracker(cfg)
	counter := count.NewCounter(count.DefaultConfig())

	var store *trackdb.SessionStore
	if withStore {
		db, err := trackdb.Open(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, db.MigrateUp(filepath.Join("..", "internal", "trackdb", "migrations")))
		store = trackdb.NewSessionStore(db)
	}
	return NewServer(tracker, counter, store), tracker, counter, store
}

func TestStatusHandler(t *testing.T) {
	srv, tracker, counter, _ := newTestServer(t, false)
	d := track.Detection{Box: track.BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}
	counter.Observe(tracker.Update([]track.Detection{d}))

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.EqualValues(t, 1, status["frame"])
	assert.EqualValues(t, 1, status["active_tracks"])
	assert.EqualValues(t, 1, status["tracks_created"])
	assert.EqualValues(t, 0, status["count_total"])
}

func TestTracksHandler(t *testing.T) {
	srv, tracker, _, _ := newTestServer(t, false)
	d := track.Detection{Box: track.BBox{CX: 0.3, CY: 0.4, W: 0.1, H: 0.1}, Score: 0.9, Label: "person"}
	tracker.Update([]track.Detection{d})

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tracks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var tracks []track.Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tracks))
	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].ID)
	assert.Equal(t, "person", tracks[0].Label)
}

func TestResetHandler(t *testing.T) {
	srv, tracker, _, _ := newTestServer(t, false)
	d := track.Detection{Box: track.BBox{CX: 0.5, CY: 0.5, W: 0.1, H: 0.1}, Score: 0.9}
	tracker.Update([]track.Detection{d})
	require.Equal(t, 1, tracker.Created())

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, tracker.Created())
	assert.Zero(t, tracker.Frame())
}

func TestResetHandlerRejectsGet(t *testing.T) {
	srv, _, _, _ := newTestServer(t, false)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reset", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSessionEndpointsWithoutStore(t *testing.T) {
	srv, _, _, _ := newTestServer(t, false)
	for _, path := range []string{"/api/sessions", "/api/events?session_id=x", "/charts/counts?session_id=x"} {
		rec := httptest.NewRecorder()
		srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s without store", path)
	}
}

func TestEventsHandler(t *testing.T) {
	srv, _, _, store := newTestServer(t, true)
	sess := &trackdb.Session{Source: "cam0"}
	require.NoError(t, store.CreateSession(sess))
	require.NoError(t, store.InsertEvent(&trackdb.CountEvent{
		SessionID: sess.SessionID, Frame: 7, TrackID: 3, Delta: 1,
	}))

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?session_id="+sess.SessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []trackdb.CountEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, 7, events[0].Frame)
	assert.Equal(t, 3, events[0].TrackID)
}

func TestEventsHandlerRequiresSessionID(t *testing.T) {
	srv, _, _, _ := newTestServer(t, true)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionsHandler(t *testing.T) {
	srv, _, _, store := newTestServer(t, true)
	require.NoError(t, store.CreateSession(&trackdb.Session{Source: "cam0"}))

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []trackdb.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "cam0", sessions[0].Source)
}

func TestCountsChartHandler(t *testing.T) {
	srv, _, _, store := newTestServer(t, true)
	sess := &trackdb.Session{Source: "cam0"}
	require.NoError(t, store.CreateSession(sess))
	require.NoError(t, store.InsertEvent(&trackdb.CountEvent{
		SessionID: sess.SessionID, Frame: 10, TrackID: 1, Delta: 1,
	}))

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/counts?session_id="+sess.SessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.True(t, strings.Contains(rec.Body.String(), "echarts"), "rendered chart embeds echarts")
}

func TestCountsChartHandlerNoEvents(t *testing.T) {
	srv, _, _, store := newTestServer(t, true)
	sess := &trackdb.Session{Source: "cam0"}
	require.NoError(t, store.CreateSession(sess))

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/counts?session_id="+sess.SessionID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
