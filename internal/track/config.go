package track

import "github.com/crosstrack/crosstrack/internal/config"

// TrackerConfig holds all tunable parameters for the tracker. Values
// are hand-tuned constants with documented defaults; none are derived.
type TrackerConfig struct {
	Stage1MatchThreshold float64 // IoU-cost acceptance threshold for stage-1 matching
	Stage2MatchThreshold float64 // position-cost acceptance threshold for stage-2 matching

	TrackTTL    int // consecutive unmatched frames before a tracked track demotes to lost
	MaxTimeLost int // frames a lost track survives before removal

	MinPotentialScore      float64 // minimum detection score to enter the potential buffer
	RequiredFramesForTrack int     // observations needed to promote a potential track
	MaxMatchingDistance    float64 // base distance for matching detections to potential entries
	MaxUnmatchedFrames     int     // frames a potential entry survives unmatched

	MaxActiveTracks    int
	MaxLostTracks      int
	MaxPotentialTracks int

	MatchHistorySize int     // bounded per-track match-history set size
	HistoryBias      float64 // cost reduction for historically matched pairs
	HistoryBiasFloor float64 // minimum cost after history bias

	DedupIoUThreshold float64 // overlap above which duplicate tracks are collapsed

	MotionMatchRadius float64 // nearest-neighbour radius for camera-motion estimation
	MotionSmoothing   float64 // EMA weight of the new motion estimate
	MotionDecay       float64 // decay factor toward zero when no matches exist

	AlignmentBonus     float64 // stage-2 cost bonus for velocity-aligned displacement
	FlowAlignmentBonus float64 // extra bonus when displacement follows FlowDirection
	FlowDirection      Point   // unit vector of the configured counting direction

	// IDResetInterval resets the identity generator every N frames when
	// positive. Disabled by default: a reset while long-lived tracks
	// survive can collide identities, and nothing here proves it cannot.
	IDResetInterval int

	// UseExactSolver swaps the greedy matcher for the Hungarian solver.
	UseExactSolver bool

	MaxTrackHistoryLength int // position trail length per track

	Kalman KalmanParams
}

// DefaultTrackerConfig returns the documented default parameters.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Stage1MatchThreshold:   0.5,
		Stage2MatchThreshold:   0.15,
		TrackTTL:               3,
		MaxTimeLost:            30,
		MinPotentialScore:      0.35,
		RequiredFramesForTrack: 3,
		MaxMatchingDistance:    0.6,
		MaxUnmatchedFrames:     30,
		MaxActiveTracks:        60,
		MaxLostTracks:          60,
		MaxPotentialTracks:     40,
		MatchHistorySize:       10,
		HistoryBias:            0.2,
		HistoryBiasFloor:       0.1,
		DedupIoUThreshold:      0.6,
		MotionMatchRadius:      0.2,
		MotionSmoothing:        0.7,
		MotionDecay:            0.8,
		AlignmentBonus:         0.05,
		FlowAlignmentBonus:     0.1,
		FlowDirection:          Point{X: 0, Y: 1},
		IDResetInterval:        0,
		UseExactSolver:         false,
		MaxTrackHistoryLength:  50,
		Kalman:                 DefaultKalmanParams(),
	}
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded
// TuningConfig. Use this in production code where the TuningConfig is
// already loaded; fields absent from the JSON fall back to defaults.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	tc := DefaultTrackerConfig()
	tc.Stage1MatchThreshold = cfg.GetStage1MatchThreshold()
	tc.Stage2MatchThreshold = cfg.GetStage2MatchThreshold()
	tc.TrackTTL = cfg.GetTrackTTL()
	tc.MaxTimeLost = cfg.GetMaxTimeLost()
	tc.MinPotentialScore = cfg.GetMinPotentialScore()
	tc.RequiredFramesForTrack = cfg.GetRequiredFramesForTrack()
	tc.MaxMatchingDistance = cfg.GetMaxMatchingDistance()
	tc.MaxUnmatchedFrames = cfg.GetMaxUnmatchedFrames()
	tc.MaxActiveTracks = cfg.GetMaxActiveTracks()
	tc.MaxLostTracks = cfg.GetMaxLostTracks()
	tc.MaxPotentialTracks = cfg.GetMaxPotentialTracks()
	tc.IDResetInterval = cfg.GetIDResetInterval()
	tc.UseExactSolver = cfg.GetUseExactSolver()
	tc.Kalman.ProcessNoisePos = cfg.GetProcessNoisePos()
	tc.Kalman.ProcessNoiseVel = cfg.GetProcessNoiseVel()
	tc.Kalman.MeasurementNoise = cfg.GetMeasurementNoise()

	switch cfg.GetCountDirection() {
	case config.DirectionBottomToTop:
		tc.FlowDirection = Point{X: 0, Y: -1}
	case config.DirectionLeftToRight:
		tc.FlowDirection = Point{X: 1, Y: 0}
	case config.DirectionRightToLeft:
		tc.FlowDirection = Point{X: -1, Y: 0}
	default:
		tc.FlowDirection = Point{X: 0, Y: 1}
	}
	return tc
}
