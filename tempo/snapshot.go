package tempo

// Estimate is the engine's externally visible output, updated atomically once
// per fully processed frame. The BPM always lies within the configured range
// once an estimate exists.
type Estimate struct {
	Bpm        float64 `json:"bpm"`
	Stability  float64 `json:"stability"`
	Confidence float64 `json:"confidence"`
	Locked     bool    `json:"locked"`
}

// Snapshot is a read-only diagnostics view of the engine's internals,
// intended for tuning and visualization. It is decoupled from the engine's
// operational state: every slice is a copy.
type Snapshot struct {
	FramesProcessed int `json:"frames_processed"`
	OnsetCurveLen   int `json:"onset_curve_len"`

	Hypotheses [3]Hypothesis `json:"hypotheses"`
	TopPeaks   []Peak        `json:"top_peaks"`

	GoodFrames     int `json:"good_frames"`
	BadFrames      int `json:"bad_frames"`
	DisagreeFrames int `json:"disagree_frames"`

	Locked          bool    `json:"locked"`
	ClampLocked     bool    `json:"clamp_locked"`
	LockFrame       int     `json:"lock_frame"`
	OriginalLockBpm float64 `json:"original_lock_bpm"`
}
