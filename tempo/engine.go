// Package tempo implements a streaming tempo (BPM) estimation engine: onset
// detection over fixed-size analysis frames, time-weighted autocorrelation
// periodicity estimation, octave-family candidate grouping, multi-hypothesis
// tracking, a lock/unlock state machine with drift-anchored post-lock
// refinement, and a smoothed, deadbanded reporting layer.
//
// The engine is single-threaded and frame-driven: all processing for a pushed
// buffer runs to completion before Push returns. Callers must serialize calls
// into one engine instance; there is no internal synchronization.
package tempo

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-tempo/algorithms/common"
	"github.com/RyanBlaney/sonido-tempo/logging"
)

// Engine owns the full tempo-tracking pipeline for one audio stream. Create
// with New, feed with Push, read with Estimate and Snapshot, recycle with
// Reset.
type Engine struct {
	cfg    Config
	logger logging.Logger

	onset       *onsetStage
	periodicity *periodicityEstimator
	tracker     *hypothesisTracker
	lock        *lockMachine
	rescue      *octaveRescue
	clamp       *metronomeClamp
	refiner     *postLockRefiner
	reporter    *reporter

	curve           []float64
	framesPerWindow int
	framesProcessed int
	lastPeaks       []Peak
	lastStability   float64

	minBpm     float64
	maxBpm     float64
	pendingCal *Calibration

	clampLocked bool
	lockedValue float64

	estimate    Estimate
	hasEstimate bool
}

// New constructs an engine, validating the configuration eagerly. An invalid
// configuration is fatal: the engine cannot exist in a broken state.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	framesPerWindow := int(cfg.WindowSeconds * float64(cfg.SampleRate) / float64(cfg.FrameSize))
	if framesPerWindow < minCurveFrames {
		return nil, fmt.Errorf("%w: analysis window of %gs holds only %d frames, need at least %d",
			ErrInvalidConfiguration, cfg.WindowSeconds, framesPerWindow, minCurveFrames)
	}

	logger := logging.GetGlobalLogger().WithFields(logging.Fields{"component": "tempo_engine"})

	return &Engine{
		cfg:             cfg,
		logger:          logger,
		onset:           newOnsetStage(cfg.Onset, cfg.SampleRate, cfg.FrameSize),
		periodicity:     newPeriodicityEstimator(cfg.SampleRate, cfg.FrameSize),
		tracker:         newHypothesisTracker(cfg.Tracking),
		lock:            newLockMachine(cfg.Lock, cfg.SampleRate, cfg.FrameSize, logger),
		rescue:          newOctaveRescue(cfg.Rescue, logger),
		clamp:           &metronomeClamp{cfg: cfg.Clamp},
		refiner:         &postLockRefiner{cfg: cfg.Lock},
		reporter:        newReporter(cfg.Report, cfg.SampleRate, cfg.FrameSize),
		curve:           make([]float64, 0, framesPerWindow),
		framesPerWindow: framesPerWindow,
		minBpm:          cfg.MinBpm,
		maxBpm:          cfg.MaxBpm,
	}, nil
}

// Push feeds raw interleaved little-endian PCM into the engine: 16-bit signed
// integer samples, or IEEE-754 float32 when float32Samples is set. Malformed
// buffers (empty, non-positive channel count, length not aligned to the
// sample stride) are dropped silently; the caller owns format correctness.
func (e *Engine) Push(data []byte, channels int, float32Samples bool) {
	if len(data) == 0 || channels <= 0 {
		return
	}

	width := 2
	if float32Samples {
		width = 4
	}
	stride := width * channels
	if len(data)%stride != 0 {
		return
	}

	frames := len(data) / stride
	for i := 0; i < frames; i++ {
		base := i * stride
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			off := base + ch*width
			if float32Samples {
				bits := binary.LittleEndian.Uint32(data[off:])
				sum += float64(math.Float32frombits(bits))
			} else {
				sum += float64(int16(binary.LittleEndian.Uint16(data[off:]))) / 32768.0
			}
		}

		if fr, ok := e.onset.push(sum / float64(channels)); ok {
			e.processFrame(fr)
		}
	}
}

// processFrame runs the full pipeline for one completed analysis frame. The
// externally visible estimate is replaced atomically at the end; any early
// short-circuit leaves the previous estimate in place.
func (e *Engine) processFrame(fr frameResult) {
	e.framesProcessed++

	if e.pendingCal != nil {
		e.minBpm = e.pendingCal.MinBpm
		e.maxBpm = e.pendingCal.MaxBpm
		e.pendingCal = nil
	}

	// Silent frames still extend the onset curve but never re-estimate
	e.curve = append(e.curve, fr.onset)
	if len(e.curve) > e.framesPerWindow {
		e.curve = e.curve[1:]
	}
	if fr.silent || len(e.curve) < minCurveFrames {
		return
	}

	peaks := e.periodicity.estimate(e.curve, e.minBpm, e.maxBpm)
	if len(peaks) == 0 {
		return
	}
	e.lastPeaks = peaks

	cands := make([]candidate, len(peaks))
	for i, p := range peaks {
		cands[i] = candidate{bpm: p.Bpm, score: p.Score}
	}

	fams := groupFamilies(cands, e.lockedValue, e.lock.locked, e.cfg.Tracking.FamilyRatioTolerance)
	e.rescue.recordCandidates(fams)

	protect := e.lock.locked
	e.tracker.decay(protect)
	feed := fams
	if len(feed) > 3 {
		feed = feed[:3]
	}
	e.tracker.observe(feed, e.lock.locked && e.lastStability > 0.90)
	e.tracker.commit(protect)

	selected := e.tracker.slots[0].Bpm
	if selected <= 0 {
		return
	}
	confidence := e.tracker.confidence()

	if !e.lock.locked && !e.clampLocked {
		selected = e.rescue.apply(selected, e.reporter.smoothed, confidence)

		if target, snapped := e.clamp.apply(selected, fams, peaks); snapped {
			selected = target
			e.clampLocked = true
			e.lock.forceLock(target, e.framesProcessed)
			e.reporter.seed(target)
			e.lockedValue = target
			e.logger.Info("metronome clamp lock", logging.Fields{"bpm": target})
		}
	}
	e.rescue.recordAccepted(selected)

	smoothed := e.reporter.smooth(selected)
	stability := e.reporter.stability()
	e.lastStability = stability

	if !e.clampLocked {
		target, entered, released := e.lock.update(lockInputs{
			stability:  stability,
			confidence: confidence,
			acfSupport: acfSupportFor(selected, peaks),
			selected:   selected,
			rawTop:     fams[0].bpm,
			smoothed:   smoothed,
			frameIndex: e.framesProcessed,
			peaks:      peaks,
		})
		if entered {
			e.lockedValue = target
			e.reporter.seed(target)
		} else if released {
			e.lockedValue = 0
		}
	} else {
		// A clamp lock releases through the same disagreement/stability
		// machinery as a normal lock
		_, _, released := e.lock.update(lockInputs{
			stability:  stability,
			confidence: confidence,
			acfSupport: acfSupportFor(selected, peaks),
			selected:   selected,
			rawTop:     fams[0].bpm,
			smoothed:   smoothed,
			frameIndex: e.framesProcessed,
			peaks:      peaks,
		})
		if released {
			e.lockedValue = 0
			e.clampLocked = false
		}
	}

	var value float64
	if e.lock.locked {
		e.lockedValue = e.refiner.refine(e.lockedValue, e.lock.originalLockBpm,
			e.framesProcessed-e.lock.lockFrame, peaks)
		value = e.lockedValue
	} else {
		value = smoothed
	}

	if e.clampLocked && confidence < 0.85 {
		confidence = 0.85
	}

	final := e.reporter.finalize(value, e.lock.locked)
	final = common.Clamp(final, e.minBpm, e.maxBpm)

	e.estimate = Estimate{
		Bpm:        final,
		Stability:  stability,
		Confidence: confidence,
		Locked:     e.lock.locked,
	}
	e.hasEstimate = true
}

// Estimate returns the current tempo estimate. ok is false until enough
// history has accumulated for a first estimate.
func (e *Engine) Estimate() (Estimate, bool) {
	return e.estimate, e.hasEstimate
}

// Snapshot returns a diagnostics copy of the engine internals
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		FramesProcessed: e.framesProcessed,
		OnsetCurveLen:   len(e.curve),
		Hypotheses:      e.tracker.slots,
		GoodFrames:      e.lock.goodFrames,
		BadFrames:       e.lock.badFrames,
		DisagreeFrames:  e.lock.disagreeFrames,
		Locked:          e.lock.locked,
		ClampLocked:     e.clampLocked,
		LockFrame:       e.lock.lockFrame,
		OriginalLockBpm: e.lock.originalLockBpm,
	}
	snap.TopPeaks = make([]Peak, len(e.lastPeaks))
	copy(snap.TopPeaks, e.lastPeaks)
	return snap
}

// Calibrate narrows the BPM search range starting at the next frame boundary
func (e *Engine) Calibrate(cal Calibration) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	c := cal
	e.pendingCal = &c
	return nil
}

// Reset synchronously returns the engine to its just-constructed state,
// keeping the configuration. Safe to call between pushes at any point.
func (e *Engine) Reset() {
	e.onset.reset()
	e.tracker.reset()
	e.lock.reset()
	e.rescue.reset()
	e.reporter.reset()

	e.curve = e.curve[:0]
	e.framesProcessed = 0
	e.lastPeaks = nil
	e.lastStability = 0
	e.minBpm = e.cfg.MinBpm
	e.maxBpm = e.cfg.MaxBpm
	e.pendingCal = nil
	e.clampLocked = false
	e.lockedValue = 0
	e.estimate = Estimate{}
	e.hasEstimate = false
}
