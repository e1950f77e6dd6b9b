package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Counting direction labels accepted in tuning JSON.
const (
	DirectionTopToBottom = "top_to_bottom"
	DirectionBottomToTop = "bottom_to_top"
	DirectionLeftToRight = "left_to_right"
	DirectionRightToLeft = "right_to_left"
)

// TuningConfig represents the root configuration for tracking and
// counting parameters. Fields are pointers so a partial JSON file can
// override some values while the Get* accessors supply the documented
// defaults for the rest.
type TuningConfig struct {
	// Matching thresholds
	Stage1MatchThreshold *float64 `json:"stage1_match_threshold,omitempty"`
	Stage2MatchThreshold *float64 `json:"stage2_match_threshold,omitempty"`

	// Track lifecycle
	TrackTTL    *int `json:"track_ttl,omitempty"`
	MaxTimeLost *int `json:"max_time_lost,omitempty"`

	// Potential-track promotion
	MinPotentialScore      *float64 `json:"min_potential_score,omitempty"`
	RequiredFramesForTrack *int     `json:"required_frames_for_track,omitempty"`
	MaxMatchingDistance    *float64 `json:"max_matching_distance,omitempty"`
	MaxUnmatchedFrames     *int     `json:"max_unmatched_frames,omitempty"`

	// Collection caps
	MaxActiveTracks    *int `json:"max_active_tracks,omitempty"`
	MaxLostTracks      *int `json:"max_lost_tracks,omitempty"`
	MaxPotentialTracks *int `json:"max_potential_tracks,omitempty"`

	// Identity generator / solver selection
	IDResetInterval *int  `json:"id_reset_interval,omitempty"`
	UseExactSolver  *bool `json:"use_exact_solver,omitempty"`

	// Kalman noise
	ProcessNoisePos  *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel  *float64 `json:"process_noise_vel,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`

	// Counting
	CountThresholds      []float64 `json:"count_thresholds,omitempty"`
	CountDirection       *string   `json:"count_direction,omitempty"`
	CountBufferZone      *float64  `json:"count_buffer_zone,omitempty"`
	HistoryCheckInterval *int      `json:"history_check_interval,omitempty"`
	SweepInterval        *int      `json:"sweep_interval,omitempty"`
	MinTrackletForSweep  *int      `json:"min_tracklet_for_sweep,omitempty"`
	CountHistoryLength   *int      `json:"count_history_length,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields
// omitted from the file retain their defaults, so partial configs are
// safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory.
// Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that configuration values are in range.
func (c *TuningConfig) Validate() error {
	checkUnit := func(name string, v *float64) error {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
		return nil
	}
	if err := checkUnit("stage1_match_threshold", c.Stage1MatchThreshold); err != nil {
		return err
	}
	if err := checkUnit("stage2_match_threshold", c.Stage2MatchThreshold); err != nil {
		return err
	}
	if err := checkUnit("min_potential_score", c.MinPotentialScore); err != nil {
		return err
	}
	if err := checkUnit("count_buffer_zone", c.CountBufferZone); err != nil {
		return err
	}

	if c.MaxTimeLost != nil && *c.MaxTimeLost < 1 {
		return fmt.Errorf("max_time_lost must be positive, got %d", *c.MaxTimeLost)
	}
	if c.RequiredFramesForTrack != nil && *c.RequiredFramesForTrack < 1 {
		return fmt.Errorf("required_frames_for_track must be at least 1, got %d", *c.RequiredFramesForTrack)
	}
	if c.IDResetInterval != nil && *c.IDResetInterval < 0 {
		return fmt.Errorf("id_reset_interval must be non-negative, got %d", *c.IDResetInterval)
	}

	for i, t := range c.CountThresholds {
		if t < 0 || t > 1 {
			return fmt.Errorf("count_thresholds[%d] must be between 0 and 1, got %f", i, t)
		}
		if i > 0 && t <= c.CountThresholds[i-1] {
			return fmt.Errorf("count_thresholds must be strictly ascending")
		}
	}

	if c.CountDirection != nil {
		switch *c.CountDirection {
		case DirectionTopToBottom, DirectionBottomToTop, DirectionLeftToRight, DirectionRightToLeft:
		default:
			return fmt.Errorf("unknown count_direction %q", *c.CountDirection)
		}
	}

	return nil
}

// GetStage1MatchThreshold returns the stage-1 threshold or the default.
func (c *TuningConfig) GetStage1MatchThreshold() float64 {
	if c.Stage1MatchThreshold == nil {
		return 0.5
	}
	return *c.Stage1MatchThreshold
}

// GetStage2MatchThreshold returns the stage-2 threshold or the default.
func (c *TuningConfig) GetStage2MatchThreshold() float64 {
	if c.Stage2MatchThreshold == nil {
		return 0.15
	}
	return *c.Stage2MatchThreshold
}

// GetTrackTTL returns the track TTL or the default.
func (c *TuningConfig) GetTrackTTL() int {
	if c.TrackTTL == nil {
		return 3
	}
	return *c.TrackTTL
}

// GetMaxTimeLost returns the lost-track lifetime or the default.
func (c *TuningConfig) GetMaxTimeLost() int {
	if c.MaxTimeLost == nil {
		return 30
	}
	return *c.MaxTimeLost
}

// GetMinPotentialScore returns the potential-buffer score floor or the default.
func (c *TuningConfig) GetMinPotentialScore() float64 {
	if c.MinPotentialScore == nil {
		return 0.35
	}
	return *c.MinPotentialScore
}

// GetRequiredFramesForTrack returns the promotion threshold or the default.
func (c *TuningConfig) GetRequiredFramesForTrack() int {
	if c.RequiredFramesForTrack == nil {
		return 3
	}
	return *c.RequiredFramesForTrack
}

// GetMaxMatchingDistance returns the potential matching distance or the default.
func (c *TuningConfig) GetMaxMatchingDistance() float64 {
	if c.MaxMatchingDistance == nil {
		return 0.6
	}
	return *c.MaxMatchingDistance
}

// GetMaxUnmatchedFrames returns the potential-entry timeout or the default.
func (c *TuningConfig) GetMaxUnmatchedFrames() int {
	if c.MaxUnmatchedFrames == nil {
		return 30
	}
	return *c.MaxUnmatchedFrames
}

// GetMaxActiveTracks returns the active collection cap or the default.
func (c *TuningConfig) GetMaxActiveTracks() int {
	if c.MaxActiveTracks == nil {
		return 60
	}
	return *c.MaxActiveTracks
}

// GetMaxLostTracks returns the lost collection cap or the default.
func (c *TuningConfig) GetMaxLostTracks() int {
	if c.MaxLostTracks == nil {
		return 60
	}
	return *c.MaxLostTracks
}

// GetMaxPotentialTracks returns the potential arena cap or the default.
func (c *TuningConfig) GetMaxPotentialTracks() int {
	if c.MaxPotentialTracks == nil {
		return 40
	}
	return *c.MaxPotentialTracks
}

// GetIDResetInterval returns the identity reset interval; 0 disables it.
func (c *TuningConfig) GetIDResetInterval() int {
	if c.IDResetInterval == nil {
		return 0
	}
	return *c.IDResetInterval
}

// GetUseExactSolver reports whether Hungarian assignment replaces the
// greedy matcher.
func (c *TuningConfig) GetUseExactSolver() bool {
	if c.UseExactSolver == nil {
		return false
	}
	return *c.UseExactSolver
}

// GetProcessNoisePos returns the position process noise or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 1e-4
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the velocity process noise or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 1e-5
	}
	return *c.ProcessNoiseVel
}

// GetMeasurementNoise returns the measurement noise or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 1e-3
	}
	return *c.MeasurementNoise
}

// GetCountThresholds returns the ordered counting thresholds or the default.
func (c *TuningConfig) GetCountThresholds() []float64 {
	if len(c.CountThresholds) == 0 {
		return []float64{0.5}
	}
	out := make([]float64, len(c.CountThresholds))
	copy(out, c.CountThresholds)
	return out
}

// GetCountDirection returns the counting direction label or the default.
func (c *TuningConfig) GetCountDirection() string {
	if c.CountDirection == nil {
		return DirectionTopToBottom
	}
	return *c.CountDirection
}

// GetCountBufferZone returns the hysteresis buffer or the default.
func (c *TuningConfig) GetCountBufferZone() float64 {
	if c.CountBufferZone == nil {
		return 0.02
	}
	return *c.CountBufferZone
}

// GetHistoryCheckInterval returns the skip-detection interval or the default.
func (c *TuningConfig) GetHistoryCheckInterval() int {
	if c.HistoryCheckInterval == nil {
		return 5
	}
	return *c.HistoryCheckInterval
}

// GetSweepInterval returns the catch-up sweep interval or the default.
func (c *TuningConfig) GetSweepInterval() int {
	if c.SweepInterval == nil {
		return 30
	}
	return *c.SweepInterval
}

// GetMinTrackletForSweep returns the sweep tracklet floor or the default.
func (c *TuningConfig) GetMinTrackletForSweep() int {
	if c.MinTrackletForSweep == nil {
		return 90
	}
	return *c.MinTrackletForSweep
}

// GetCountHistoryLength returns the counter history window or the default.
func (c *TuningConfig) GetCountHistoryLength() int {
	if c.CountHistoryLength == nil {
		return 10
	}
	return *c.CountHistoryLength
}
