package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
)

// WAVLoader implements Loader for RIFF/WAVE containers via go-audio/wav.
type WAVLoader struct{}

// NewWAVLoader creates a new WAV loader.
func NewWAVLoader() *WAVLoader {
	return &WAVLoader{}
}

// Load reads and decodes a WAV file into PCM samples.
func (l *WAVLoader) Load(ctx context.Context, reader io.Reader) (*PCM, error) {
	// go-audio/wav needs a ReadSeeker; buffer the whole file.
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("audio: read wav data: %w", err)
	}

	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("audio: invalid WAV file")
	}

	audioFormat := decoder.Format()
	sampleRate := int(audioFormat.SampleRate)
	channels := int(audioFormat.NumChannels)
	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}

	decoder.FwdToPCM()
	samplesInt, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: read wav PCM: %w", err)
	}

	maxValue := math.Pow(2, float64(bitDepth-1))
	samples := make([]float64, len(samplesInt.Data))
	for i, sample := range samplesInt.Data {
		samples[i] = float64(sample) / maxValue
	}

	return &PCM{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}
