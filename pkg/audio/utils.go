package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
)

// Pipeline chains decoding with the mono/resample/normalize preprocessing
// every pipeline stage after component A expects.
type Pipeline struct {
	Decoder   *Decoder
	Processor *PCMProcessor
}

// NewPipeline builds a Pipeline targeting sampleRate.
func NewPipeline(sampleRate int) *Pipeline {
	return &Pipeline{
		Decoder:   NewDecoder(),
		Processor: NewPCMProcessor(sampleRate),
	}
}

// LoadAndPreprocess decodes the file at path and returns mono, resampled,
// peak-normalized PCM ready for the spectrogram processor.
func (p *Pipeline) LoadAndPreprocess(ctx context.Context, path string) (*PCM, error) {
	data, err := p.Decoder.DecodePath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	return p.preprocess(data)
}

// LoadAndPreprocessReader is the in-memory counterpart of LoadAndPreprocess.
func (p *Pipeline) LoadAndPreprocessReader(ctx context.Context, format Format, data []byte) (*PCM, error) {
	pcm, err := p.Decoder.DecodeReader(ctx, bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("audio: decode stream: %w", err)
	}
	return p.preprocess(pcm)
}

func (p *Pipeline) preprocess(data *PCM) (*PCM, error) {
	mono, err := p.Processor.ConvertToMono(data)
	if err != nil {
		return nil, fmt.Errorf("audio: convert to mono: %w", err)
	}

	resampled, err := p.Processor.Resample(mono, p.Processor.TargetSampleRate)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}

	normalized, err := p.Processor.Normalize(resampled)
	if err != nil {
		return nil, fmt.Errorf("audio: normalize: %w", err)
	}

	if err := Validate(normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// CalculateRMS returns the root-mean-square level of samples. Validate uses
// it to reject silent input.
func CalculateRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0.0
	}
	sumSquares := 0.0
	for _, s := range samples {
		sumSquares += s * s
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
