package tempo

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is wrapped by every configuration validation error,
// so callers can test with errors.Is.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config controls every stage of the tempo engine. Use DefaultConfig as a
// starting point; all thresholds are tunable but the defaults are the values
// the engine was calibrated with.
type Config struct {
	SampleRate    int     `json:"sample_rate"`
	FrameSize     int     `json:"frame_size"` // must be a power of two
	WindowSeconds float64 `json:"window_seconds"`
	MinBpm        float64 `json:"min_bpm"`
	MaxBpm        float64 `json:"max_bpm"`

	Onset    OnsetConfig    `json:"onset"`
	Tracking TrackingConfig `json:"tracking"`
	Lock     LockConfig     `json:"lock"`
	Rescue   RescueConfig   `json:"rescue"`
	Clamp    ClampConfig    `json:"clamp"`
	Report   ReportConfig   `json:"report"`
}

// OnsetConfig tunes the frame accumulator and onset detector
type OnsetConfig struct {
	// SpectralFlux selects spectral-flux onset strength; when false a plain
	// energy-delta detector is used instead
	SpectralFlux bool `json:"spectral_flux"`

	// Whitening enables the per-bin smoothed magnitude reference. When false
	// the detector falls back to raw frame-to-frame magnitude deltas.
	Whitening      bool    `json:"whitening"`
	WhiteningAlpha float64 `json:"whitening_alpha"`

	Sensitivity            float64 `json:"sensitivity"`
	MedianFilterSize       int     `json:"median_filter_size"`
	AdaptiveThresholdRatio float64 `json:"adaptive_threshold_ratio"`

	// MinEnergyDb gates tempo re-estimation: frames quieter than this still
	// enter the onset curve but do not trigger analysis
	MinEnergyDb float64 `json:"min_energy_db"`

	// DCRemoval runs a DC blocking filter over incoming samples
	DCRemoval bool `json:"dc_removal"`
}

// TrackingConfig tunes the three-slot hypothesis tracker
type TrackingConfig struct {
	Decay            float64 `json:"decay"`
	SwitchThreshold  float64 `json:"switch_threshold"`
	SwitchHoldFrames int     `json:"switch_hold_frames"`
	BlendWeight      float64 `json:"blend_weight"`
	ScoreCeiling     float64 `json:"score_ceiling"`

	// FamilyRatioTolerance is the relative band around each octave/fifth
	// ratio used when grouping candidates into families
	FamilyRatioTolerance float64 `json:"family_ratio_tolerance"`
}

// LockConfig tunes the lock state machine and post-lock refinement
type LockConfig struct {
	StabilityHi float64 `json:"stability_hi"`
	StabilityLo float64 `json:"stability_lo"`

	BeatsToLock   float64 `json:"beats_to_lock"`
	BeatsToUnlock float64 `json:"beats_to_unlock"`

	MinFrames     int     `json:"min_frames"`
	MinConfidence float64 `json:"min_confidence"`
	MinAcfSupport float64 `json:"min_acf_support"`

	// CompetitorRatio blocks lock entry when the top autocorrelation peak is
	// an unrelated tempo whose support exceeds this multiple of the
	// candidate's own support
	CompetitorRatio float64 `json:"competitor_ratio"`

	EmergencyFrames     int     `json:"emergency_frames"`
	EmergencyStability  float64 `json:"emergency_stability"`
	EmergencyConfidence float64 `json:"emergency_confidence"`

	// Pre-lock half-tempo validation
	HalfTempoScore float64 `json:"half_tempo_score"`
	HalfTempoBand  float64 `json:"half_tempo_band"`

	DisagreeBpm    float64 `json:"disagree_bpm"`
	DisagreeFrames int     `json:"disagree_frames"`

	PostLockRefinementWindow int     `json:"post_lock_refinement_window"`
	MaxPostLockDrift         float64 `json:"max_post_lock_drift"`
	RefineRate               float64 `json:"refine_rate"`
}

// RescueConfig tunes octave-error correction
type RescueConfig struct {
	HistorySize       int     `json:"history_size"`
	Tolerance         float64 `json:"tolerance"`
	TightTolerance    float64 `json:"tight_tolerance"`
	TightConfidence   float64 `json:"tight_confidence"`
	CorroborationPct  float64 `json:"corroboration_pct"`
	CorroborationBand float64 `json:"corroboration_band"`
	CandidateMemory   int     `json:"candidate_memory"`
}

// ClampConfig tunes the optional metronome clamp. Disabled by default; when
// enabled the engine may snap to the nearest target BPM and treat it as an
// immediate synthetic lock.
type ClampConfig struct {
	Enabled   bool      `json:"enabled"`
	Targets   []float64 `json:"targets"`
	RadiusBpm float64   `json:"radius_bpm"`
	MinScore  float64   `json:"min_score"`
}

// ReportConfig tunes output smoothing, the deadband and quantization
type ReportConfig struct {
	SmoothingAlpha float64 `json:"smoothing_alpha"`

	// Deadband radii are expressed as a fraction of one autocorrelation lag
	// frame, converted to a BPM radius at the current value
	DeadbandLagFrac       float64 `json:"deadband_lag_frac"`
	DeadbandLagFracLocked float64 `json:"deadband_lag_frac_locked"`

	QuantizeStep       float64 `json:"quantize_step"`
	QuantizeStepLocked float64 `json:"quantize_step_locked"`

	StabilityWindow int `json:"stability_window"`

	UseKalman                    bool    `json:"use_kalman"`
	KalmanProcessNoise           float64 `json:"kalman_process_noise"`
	KalmanMeasurementNoise       float64 `json:"kalman_measurement_noise"`
	KalmanProcessNoiseLocked     float64 `json:"kalman_process_noise_locked"`
	KalmanMeasurementNoiseLocked float64 `json:"kalman_measurement_noise_locked"`
}

// Calibration narrows the BPM search range at the next frame boundary. It is
// the typed replacement for host-supplied range hints.
type Calibration struct {
	MinBpm float64 `json:"min_bpm"`
	MaxBpm float64 `json:"max_bpm"`
}

// DefaultConfig returns the calibration defaults for 44.1 kHz input
func DefaultConfig() Config {
	return Config{
		SampleRate:    44100,
		FrameSize:     1024,
		WindowSeconds: 10.0,
		MinBpm:        60.0,
		MaxBpm:        200.0,

		Onset: OnsetConfig{
			SpectralFlux:           true,
			Whitening:              true,
			WhiteningAlpha:         0.95,
			Sensitivity:            1.0,
			MedianFilterSize:       120,
			AdaptiveThresholdRatio: 1.1,
			MinEnergyDb:            -55.0,
			DCRemoval:              true,
		},

		Tracking: TrackingConfig{
			Decay:                0.94,
			SwitchThreshold:      1.15,
			SwitchHoldFrames:     12,
			BlendWeight:          0.6,
			ScoreCeiling:         12.0,
			FamilyRatioTolerance: 0.05,
		},

		Lock: LockConfig{
			StabilityHi:              0.85,
			StabilityLo:              0.55,
			BeatsToLock:              4.0,
			BeatsToUnlock:            8.0,
			MinFrames:                20,
			MinConfidence:            0.65,
			MinAcfSupport:            0.35,
			CompetitorRatio:          1.5,
			EmergencyFrames:          1290,
			EmergencyStability:       0.92,
			EmergencyConfidence:      0.60,
			HalfTempoScore:           0.55,
			HalfTempoBand:            0.07,
			DisagreeBpm:              15.0,
			DisagreeFrames:           40,
			PostLockRefinementWindow: 860,
			MaxPostLockDrift:         2.0,
			RefineRate:               0.02,
		},

		Rescue: RescueConfig{
			HistorySize:       24,
			Tolerance:         0.08,
			TightTolerance:    0.04,
			TightConfidence:   0.6,
			CorroborationPct:  0.6,
			CorroborationBand: 0.05,
			CandidateMemory:   20,
		},

		Clamp: ClampConfig{
			Enabled:   false,
			RadiusBpm: 3.0,
			MinScore:  0.5,
		},

		Report: ReportConfig{
			SmoothingAlpha:               0.12,
			DeadbandLagFrac:              0.15,
			DeadbandLagFracLocked:        0.35,
			QuantizeStep:                 0.1,
			QuantizeStepLocked:           0.5,
			StabilityWindow:              16,
			UseKalman:                    false,
			KalmanProcessNoise:           0.01,
			KalmanMeasurementNoise:       0.5,
			KalmanProcessNoiseLocked:     0.001,
			KalmanMeasurementNoiseLocked: 2.0,
		},
	}
}

// Validate checks the configuration, wrapping every failure with
// ErrInvalidConfiguration
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfiguration, c.SampleRate)
	}
	if c.FrameSize <= 0 || c.FrameSize&(c.FrameSize-1) != 0 {
		return fmt.Errorf("%w: frame size must be a positive power of two, got %d", ErrInvalidConfiguration, c.FrameSize)
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("%w: window seconds must be positive, got %g", ErrInvalidConfiguration, c.WindowSeconds)
	}
	if c.MinBpm <= 0 || c.MaxBpm <= 0 || c.MinBpm >= c.MaxBpm {
		return fmt.Errorf("%w: BPM range must satisfy 0 < min < max, got [%g, %g]", ErrInvalidConfiguration, c.MinBpm, c.MaxBpm)
	}
	if c.Onset.Sensitivity <= 0 {
		return fmt.Errorf("%w: onset sensitivity must be positive, got %g", ErrInvalidConfiguration, c.Onset.Sensitivity)
	}
	if c.Onset.MedianFilterSize <= 0 {
		return fmt.Errorf("%w: median filter size must be positive, got %d", ErrInvalidConfiguration, c.Onset.MedianFilterSize)
	}
	if c.Tracking.Decay <= 0 || c.Tracking.Decay >= 1 {
		return fmt.Errorf("%w: tracking decay must be in (0, 1), got %g", ErrInvalidConfiguration, c.Tracking.Decay)
	}
	if c.Tracking.SwitchThreshold <= 1 {
		return fmt.Errorf("%w: switch threshold must exceed 1, got %g", ErrInvalidConfiguration, c.Tracking.SwitchThreshold)
	}
	if c.Tracking.SwitchHoldFrames <= 0 {
		return fmt.Errorf("%w: switch hold frames must be positive, got %d", ErrInvalidConfiguration, c.Tracking.SwitchHoldFrames)
	}
	if c.Lock.StabilityHi <= c.Lock.StabilityLo {
		return fmt.Errorf("%w: lock stability thresholds must satisfy lo < hi, got [%g, %g]", ErrInvalidConfiguration, c.Lock.StabilityLo, c.Lock.StabilityHi)
	}
	if c.Clamp.Enabled && len(c.Clamp.Targets) == 0 {
		return fmt.Errorf("%w: metronome clamp enabled without targets", ErrInvalidConfiguration)
	}
	if c.Report.StabilityWindow < 4 {
		return fmt.Errorf("%w: stability window must be at least 4, got %d", ErrInvalidConfiguration, c.Report.StabilityWindow)
	}
	return nil
}

// Validate checks a calibration range
func (cal Calibration) Validate() error {
	if cal.MinBpm <= 0 || cal.MaxBpm <= 0 || cal.MinBpm >= cal.MaxBpm {
		return fmt.Errorf("%w: calibration range must satisfy 0 < min < max, got [%g, %g]", ErrInvalidConfiguration, cal.MinBpm, cal.MaxBpm)
	}
	return nil
}
