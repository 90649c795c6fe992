package audio

import (
	"math"

	"github.com/shoresong/audioid/pkg/audioerr"
)

// minDuration is the shortest clip the pipeline will process. Below this
// there isn't enough signal for a single FFT window's worth of peaks.
const minDuration = 0.1 // seconds

// minRMS is the quietest buffer Validate will accept. Below this the clip
// carries no usable signal for peak extraction.
const minRMS = 1e-6

// PCMProcessor normalizes decoded audio into the canonical mono,
// fixed-sample-rate form the spectrogram processor expects.
type PCMProcessor struct {
	TargetSampleRate int
}

// NewPCMProcessor creates a processor targeting the given sample rate.
func NewPCMProcessor(targetSampleRate int) *PCMProcessor {
	return &PCMProcessor{TargetSampleRate: targetSampleRate}
}

// ConvertToMono averages stereo channels down to one. Mono input passes
// through unchanged.
func (p *PCMProcessor) ConvertToMono(data *PCM) (*PCM, error) {
	if data.Channels == 1 {
		return data, nil
	}
	if data.Channels != 2 {
		return nil, audioerr.Input("unsupported channel count", nil)
	}

	monoSamples := make([]float64, len(data.Samples)/2)
	for i := range monoSamples {
		monoSamples[i] = (data.Samples[i*2] + data.Samples[i*2+1]) / 2.0
	}

	return &PCM{Samples: monoSamples, SampleRate: data.SampleRate, Channels: 1}, nil
}

// Normalize scales samples so the peak absolute amplitude is 1.0. Silent
// input is left untouched rather than divided by zero.
func (p *PCMProcessor) Normalize(data *PCM) (*PCM, error) {
	if len(data.Samples) == 0 {
		return data, nil
	}

	maxAbs := 0.0
	for _, s := range data.Samples {
		if abs := math.Abs(s); abs > maxAbs {
			maxAbs = abs
		}
	}
	if maxAbs < 1e-9 {
		return data, nil
	}

	normalized := make([]float64, len(data.Samples))
	for i, s := range data.Samples {
		normalized[i] = s / maxAbs
	}
	return &PCM{Samples: normalized, SampleRate: data.SampleRate, Channels: data.Channels}, nil
}

// Resample converts mono audio to the target sample rate. Downsampling
// runs a single-pole low-pass filter first to suppress aliasing above the
// new Nyquist frequency, then resamples by linear interpolation.
func (p *PCMProcessor) Resample(data *PCM, targetSampleRate int) (*PCM, error) {
	if data.Channels != 1 {
		return nil, audioerr.Input("resample requires mono input", nil)
	}
	if data.SampleRate == targetSampleRate {
		return data, nil
	}

	samples := data.Samples
	if targetSampleRate < data.SampleRate {
		samples = lowPassFilter(samples, data.SampleRate, float64(targetSampleRate)/2.0)
	}

	ratio := float64(targetSampleRate) / float64(data.SampleRate)
	origFrames := len(samples)
	newFrames := int(float64(origFrames) * ratio)
	resampled := make([]float64, newFrames)

	for i := 0; i < newFrames; i++ {
		origPos := float64(i) / ratio
		idx1 := int(math.Floor(origPos))
		idx2 := idx1 + 1
		frac := origPos - float64(idx1)
		if idx1 >= origFrames {
			idx1 = origFrames - 1
		}
		if idx2 >= origFrames {
			idx2 = origFrames - 1
		}
		resampled[i] = samples[idx1]*(1-frac) + samples[idx2]*frac
	}

	return &PCM{Samples: resampled, SampleRate: targetSampleRate, Channels: 1}, nil
}

// lowPassFilter applies a first-order RC low-pass filter with cutoff cutoffHz,
// used as an anti-aliasing stage ahead of downsampling.
func lowPassFilter(samples []float64, sampleRate int, cutoffHz float64) []float64 {
	if len(samples) == 0 {
		return samples
	}
	dt := 1.0 / float64(sampleRate)
	rc := 1.0 / (2.0 * math.Pi * cutoffHz)
	alpha := dt / (rc + dt)

	out := make([]float64, len(samples))
	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = out[i-1] + alpha*(samples[i]-out[i-1])
	}
	return out
}

// Validate rejects input too short or too degenerate to fingerprint:
// sub-100ms clips, silent clips, and buffers containing non-finite samples.
func Validate(data *PCM) error {
	if data.SampleRate <= 0 || data.Channels <= 0 {
		return audioerr.Input("invalid PCM header", nil)
	}
	if data.Duration() < minDuration {
		return audioerr.Input("clip shorter than minimum duration", nil)
	}
	for _, s := range data.Samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return audioerr.Processing("non-finite sample in PCM buffer", nil)
		}
	}
	if CalculateRMS(data.Samples) < minRMS {
		return audioerr.Input("clip is silent", nil)
	}
	return nil
}
