package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// countsChartHandler renders a line chart (HTML) of the cumulative crossing
// count over frames for a session using go-echarts. This is a debugging-only
// endpoint to eyeball counting behaviour without a frontend.
// Query params:
//   - session_id (required)
func (s *Server) countsChartHandler(w http.ResponseWriter, r *http.Request) {
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
	if len(events) == 0 {
		http.Error(w, "No events for session", http.StatusNotFound)
		return
	}

	frames := make([]string, 0, len(events))
	data := make([]opts.LineData, 0, len(events))
	total := 0
	for _, ev := range events {
		total += ev.Delta
		frames = append(frames, strconv.Itoa(ev.Frame))
		data = append(data, opts.LineData{Value: total})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Crossing Count", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cumulative crossing count", Subtitle: fmt.Sprintf("session=%s events=%d", sessionID, len(events))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)
	line.SetXAxis(frames)
	line.AddSeries("count", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
