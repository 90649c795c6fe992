// Package audio turns raw PCM samples into a log-magnitude spectrogram
// (spec component A) and provides the narrow decoder interface that keeps
// compressed-format handling out of the fingerprinting core.
package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a compressed audio container understood by a Loader.
type Format string

const (
	WAV  Format = "wav"
	MP3  Format = "mp3"
	FLAC Format = "flac"
)

// PCM is a decoded audio buffer: interleaved float64 samples in [-1, 1],
// the sample rate they were captured/decoded at, and the channel count.
// This is the boundary type between the external decoder collaborator and
// the fingerprinting core.
type PCM struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// Duration returns the buffer's length in seconds.
func (p *PCM) Duration() float64 {
	if p.Channels == 0 || p.SampleRate == 0 {
		return 0
	}
	frames := len(p.Samples) / p.Channels
	return float64(frames) / float64(p.SampleRate)
}

// Loader decodes one compressed format into PCM. Implementations must not
// retain the reader after Load returns.
type Loader interface {
	Load(ctx context.Context, r io.Reader) (*PCM, error)
}

// Decoder dispatches to the Loader registered for a Format, matching the
// spec's "narrow decoder interface" design note: a single capability,
// decode(reader, format) -> PCM, with file/byte/stream variants handled by
// the caller choosing what reader to pass in.
type Decoder struct {
	loaders map[Format]Loader
}

// NewDecoder builds a Decoder with the WAV, MP3, and FLAC loaders this
// module ships.
func NewDecoder() *Decoder {
	return &Decoder{
		loaders: map[Format]Loader{
			WAV:  NewWAVLoader(),
			MP3:  NewMP3Loader(),
			FLAC: NewFLACLoader(),
		},
	}
}

// DecodePath opens the file at path and decodes it using the format
// implied by its extension.
func (d *Decoder) DecodePath(ctx context.Context, path string) (*PCM, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()
	return d.DecodeReader(ctx, f, format)
}

// DecodeReader decodes from an already-open reader, for in-memory or
// streamed sources (the decoder contract's "bytes | stream" variants).
func (d *Decoder) DecodeReader(ctx context.Context, r io.Reader, format Format) (*PCM, error) {
	loader, ok := d.loaders[format]
	if !ok {
		return nil, fmt.Errorf("audio: unsupported format %q", format)
	}
	return loader.Load(ctx, r)
}

// FormatFromPath infers a Format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	ext = strings.TrimPrefix(ext, ".")
	switch Format(ext) {
	case WAV, MP3, FLAC:
		return Format(ext), nil
	default:
		return "", fmt.Errorf("audio: cannot infer format from extension %q", ext)
	}
}
