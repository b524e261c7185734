// Package transcode turns audio files into the interleaved PCM byte stream
// the tempo engine consumes. Only WAV input is supported; anything else
// should be converted upstream.
package transcode

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-tempo/logging"
)

// StreamInfo describes the decoded audio stream
type StreamInfo struct {
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bit_depth"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// ChunkFrames is how many sample frames each emitted chunk carries
	ChunkFrames int `json:"chunk_frames"`
}

// DefaultDecoderConfig returns the default decoder configuration
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{ChunkFrames: 8192}
}

// Decoder streams a WAV file as int16 little-endian PCM chunks
type Decoder struct {
	cfg    DecoderConfig
	logger logging.Logger

	file    *os.File
	decoder *wav.Decoder
	info    StreamInfo
}

// Open validates the file header and prepares a streaming decoder. The caller
// owns the returned Decoder and must Close it.
func Open(path string, cfg DecoderConfig) (*Decoder, error) {
	if cfg.ChunkFrames <= 0 {
		cfg.ChunkFrames = DefaultDecoderConfig().ChunkFrames
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}

	format := dec.Format()
	info := StreamInfo{
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
		BitDepth:   int(dec.BitDepth),
	}
	if d, err := dec.Duration(); err == nil {
		info.Duration = d
	}

	return &Decoder{
		cfg:     cfg,
		logger:  logging.WithFields(logging.Fields{"component": "transcode", "file": path}),
		file:    f,
		decoder: dec,
		info:    info,
	}, nil
}

// Info returns the stream parameters read from the header
func (d *Decoder) Info() StreamInfo {
	return d.info
}

// Stream decodes the whole file, invoking emit once per chunk with
// interleaved int16 little-endian PCM. The byte slice is reused between
// calls; the callback must not retain it. Decoding stops early when the
// context is canceled or the callback returns an error.
func (d *Decoder) Stream(ctx context.Context, emit func(pcm []byte) error) error {
	buf := &audio.IntBuffer{
		Format: d.decoder.Format(),
		Data:   make([]int, d.cfg.ChunkFrames*d.info.Channels),
	}
	pcm := make([]byte, 0, 2*len(buf.Data))

	d.logger.Debug("stream start", logging.Fields{
		"sample_rate": d.info.SampleRate,
		"channels":    d.info.Channels,
		"bit_depth":   d.info.BitDepth,
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := d.decoder.PCMBuffer(buf)
		if err != nil {
			return fmt.Errorf("decoding PCM: %w", err)
		}
		if n == 0 {
			return nil
		}

		pcm = pcm[:0]
		for _, s := range buf.Data[:n] {
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(rescaleInt16(s, d.info.BitDepth)))
		}
		if err := emit(pcm); err != nil {
			return err
		}
	}
}

// Close releases the underlying file
func (d *Decoder) Close() error {
	return d.file.Close()
}

// rescaleInt16 converts a decoded integer sample of the given bit depth to
// a full-scale int16. 8-bit WAV PCM is unsigned with a 128 midpoint and must
// be recentered before shifting.
func rescaleInt16(s, bitDepth int) int16 {
	switch {
	case bitDepth > 16:
		return int16(s >> (bitDepth - 16))
	case bitDepth <= 8:
		return int16((s - 128) << 8)
	case bitDepth < 16:
		return int16(s << (16 - bitDepth))
	default:
		return int16(s)
	}
}
