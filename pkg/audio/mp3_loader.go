package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Loader implements Loader for MPEG-1/2 Layer III via hajimehoshi/go-mp3.
type MP3Loader struct{}

// NewMP3Loader creates a new MP3 loader.
func NewMP3Loader() *MP3Loader {
	return &MP3Loader{}
}

// Load reads and decodes an MP3 stream into PCM samples.
func (l *MP3Loader) Load(ctx context.Context, reader io.Reader) (*PCM, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("audio: read mp3 data: %w", err)
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("audio: create mp3 decoder: %w", err)
	}

	sampleRate := decoder.SampleRate()
	channels := 2 // go-mp3 always decodes to interleaved stereo

	pcmData, err := io.ReadAll(decoder)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("audio: read mp3 PCM: %w", err)
	}

	numSamples := len(pcmData) / 4 // 2 bytes/sample * 2 channels
	samples := make([]float64, numSamples*channels)
	for i := 0; i < numSamples; i++ {
		for ch := 0; ch < channels; ch++ {
			idx := i*4 + ch*2
			sample := int16(pcmData[idx]) | (int16(pcmData[idx+1]) << 8)
			samples[i*channels+ch] = float64(sample) / 32768.0
		}
	}

	return &PCM{
		Samples:    samples,
		SampleRate: int(sampleRate),
		Channels:   channels,
	}, nil
}
