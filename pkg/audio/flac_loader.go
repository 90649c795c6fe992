package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/mewkiz/flac"
)

// FLACLoader implements Loader for FLAC streams via mewkiz/flac.
type FLACLoader struct{}

// NewFLACLoader creates a new FLAC loader.
func NewFLACLoader() *FLACLoader {
	return &FLACLoader{}
}

// Load reads and decodes a FLAC stream into PCM samples.
func (l *FLACLoader) Load(ctx context.Context, reader io.Reader) (*PCM, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("audio: read flac data: %w", err)
	}

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("audio: create flac decoder: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	sampleRate := int(info.SampleRate)
	channels := int(info.NChannels)
	maxValue := math.Pow(2, float64(info.BitsPerSample-1)) - 1

	samples := make([]float64, 0, int(info.NSamples)*channels)
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("audio: decode flac: %w", ctx.Err())
		default:
		}

		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("audio: parse flac frame: %w", err)
		}

		numFrameSamples := len(frame.Subframes[0].Samples)
		for j := 0; j < numFrameSamples; j++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float64(frame.Subframes[ch].Samples[j])/maxValue)
			}
		}
	}

	return &PCM{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}
