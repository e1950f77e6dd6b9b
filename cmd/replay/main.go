// Package main provides a replay tool for recorded detection streams.
// It feeds JSONL detection frames through the tracker and line counter,
// optionally persisting the session to sqlite and rendering a track
// trail plot.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/crosstrack/crosstrack/api"
	"github.com/crosstrack/crosstrack/internal/config"
	"github.com/crosstrack/crosstrack/internal/count"
	"github.com/crosstrack/crosstrack/internal/monitoring"
	"github.com/crosstrack/crosstrack/internal/track"
	"github.com/crosstrack/crosstrack/internal/trackdb"
	"github.com/crosstrack/crosstrack/internal/version"
)

// frameRecord is one line of the input JSONL: all detections for a frame.
type frameRecord struct {
	Detections []detectionRecord `json:"detections"`
}

type detectionRecord struct {
	CX    float64 `json:"cx"`
	CY    float64 `json:"cy"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Score float64 `json:"score"`
	Label string  `json:"label,omitempty"`
}

func main() {
	var (
		inputPath     = flag.String("input", "", "path to JSONL detection frames (required)")
		configPath    = flag.String("config", "", "path to tuning config JSON (default: built-in defaults)")
		dbPath        = flag.String("db", "", "sqlite database path for session persistence (optional)")
		migrationsDir = flag.String("migrations", "internal/trackdb/migrations", "migrations directory (used with -db)")
		plotPath      = flag.String("plot", "", "write a track trail PNG to this path (optional)")
		listenAddr    = flag.String("listen", "", "serve the HTTP API at this address after replay (optional)")
		verbose       = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	monitoring.SetDebug(*verbose)
	monitoring.Debugf("crosstrack replay %s (%s)", version.Version, version.GitSHA)

	if err := run(*inputPath, *configPath, *dbPath, *migrationsDir, *plotPath, *listenAddr); err != nil {
		monitoring.Logf("replay failed: %v", err)
		os.Exit(1)
	}
}

func run(inputPath, configPath, dbPath, migrationsDir, plotPath, listenAddr string) error {
	tuning, err := loadTuning(configPath)
	if err != nil {
		return err
	}

	tracker := track.NewTracker(track.TrackerConfigFromTuning(tuning))
	counter := count.NewCounter(count.ConfigFromTuning(tuning))

	var store *trackdb.SessionStore
	var session *trackdb.Session
	if dbPath != "" {
		db, err := trackdb.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()
		if err := db.MigrateUp(migrationsDir); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		store = trackdb.NewSessionStore(db)

		cfgJSON, _ := json.Marshal(tuning)
		session = &trackdb.Session{Source: inputPath, ConfigJSON: cfgJSON}
		if err := store.CreateSession(session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		monitoring.Logf("session %s started for %s", session.SessionID, inputPath)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	trails := newTrailRecorder()
	seen := make(map[int]*trackdb.TrackSummary)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	frames := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec frameRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("frame %d: parse: %w", frames+1, err)
		}

		dets := make([]track.Detection, 0, len(rec.Detections))
		for _, d := range rec.Detections {
			dets = append(dets, track.Detection{
				Box:   track.BBox{CX: d.CX, CY: d.CY, W: d.W, H: d.H},
				Score: d.Score,
				Label: d.Label,
			})
		}

		active := tracker.Update(dets)
		events := counter.Observe(active)
		frames++

		for _, tr := range active {
			trails.record(tr)
			summarize(seen, tr, session)
		}
		if store != nil && session != nil {
			for _, ev := range events {
				dbEv := &trackdb.CountEvent{
					SessionID:      session.SessionID,
					Frame:          ev.Frame,
					TrackID:        ev.TrackID,
					ThresholdIndex: ev.ThresholdIndex,
					Delta:          ev.Delta,
				}
				if err := store.InsertEvent(dbEv); err != nil {
					return fmt.Errorf("insert event: %w", err)
				}
			}
		}
		for _, ev := range events {
			monitoring.Debugf("frame %d: track %d crossed threshold %d (delta %+d)",
				ev.Frame, ev.TrackID, ev.ThresholdIndex, ev.Delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	created := tracker.Created()
	monitoring.Logf("replayed %d frames: %d tracks created, count total %d",
		frames, created, counter.Total())

	if store != nil && session != nil {
		for _, sum := range seen {
			if err := store.InsertTrackSummary(sum); err != nil {
				return fmt.Errorf("insert track summary: %w", err)
			}
		}
		if err := store.FinishSession(session.SessionID, frames, counter.Total()); err != nil {
			return fmt.Errorf("finish session: %w", err)
		}
		monitoring.Logf("session %s finished", session.SessionID)
	}

	if plotPath != "" {
		if err := trails.savePNG(plotPath); err != nil {
			return fmt.Errorf("save plot: %w", err)
		}
		monitoring.Logf("wrote track trail plot to %s", plotPath)
	}

	if listenAddr != "" {
		srv := api.NewServer(tracker, counter, store)
		monitoring.Logf("serving API on %s", listenAddr)
		return http.ListenAndServe(listenAddr, srv.ServeMux())
	}
	return nil
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.MustLoadDefaultConfig(), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadTuningConfig(abs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// summarize keeps the latest per-track rollup; tracks are summarized from
// their final observed state at the end of the run.
func summarize(seen map[int]*trackdb.TrackSummary, tr *track.Track, session *trackdb.Session) {
	sum, ok := seen[tr.ID]
	if !ok {
		sum = &trackdb.TrackSummary{TrackID: tr.ID, StartFrame: tr.StartFrame}
		if session != nil {
			sum.SessionID = session.SessionID
		}
		seen[tr.ID] = sum
	}
	sum.Label = tr.Label
	sum.EndFrame = tr.EndFrame
	sum.TrackletLen = tr.TrackletLen
	sum.Score = tr.Score
	sum.Counted = tr.Counted
}
