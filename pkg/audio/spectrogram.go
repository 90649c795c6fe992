package audio

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/shoresong/audioid/pkg/audioerr"
)

// Spectrogram is a log-magnitude time-frequency representation: Data[t][f]
// is the dB level of frequency bin f at time frame t, floored at DBFloor.
type Spectrogram struct {
	Data       [][]float64
	FreqBins   int
	TimeBins   int
	TimePoints []float64 // seconds, one per time bin
	FreqPoints []float64 // Hz, one per frequency bin
}

// SpectrogramProcessor computes a deterministic STFT spectrogram from mono
// PCM: frame, Hann-window, FFT, magnitude, convert to dB relative to the
// buffer's peak, then floor (spec component A).
type SpectrogramProcessor struct {
	WindowSize int // W
	HopSize    int // H
	DBFloor    float64
}

// NewSpectrogramProcessor builds a processor for the given window, hop, and
// noise floor.
func NewSpectrogramProcessor(windowSize, hopSize int, dbFloor float64) *SpectrogramProcessor {
	return &SpectrogramProcessor{WindowSize: windowSize, HopSize: hopSize, DBFloor: dbFloor}
}

// hannWindow returns the precomputed Hann coefficients for size n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// Compute runs the STFT over mono PCM and returns a floored, dB-scaled
// spectrogram. The final frame is zero-padded rather than dropped: the
// frame count is ceil((N-W)/H)+1 so any trailing samples past the last
// full window still get their own, zero-padded frame.
func (s *SpectrogramProcessor) Compute(data *PCM) (*Spectrogram, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	if data.Channels != 1 {
		return nil, audioerr.Input("spectrogram requires mono input", nil)
	}

	samples := data.Samples
	numFrames := 1
	if len(samples) > s.WindowSize {
		remaining := len(samples) - s.WindowSize
		numFrames = 1 + (remaining+s.HopSize-1)/s.HopSize
	}

	window := hannWindow(s.WindowSize)
	numBins := s.WindowSize/2 + 1
	spectrogramData := make([][]float64, numFrames)
	peakMag := 0.0

	magnitudes := make([][]float64, numFrames)
	for t := 0; t < numFrames; t++ {
		start := t * s.HopSize
		frame := make([]float64, s.WindowSize)
		end := start + s.WindowSize
		if end > len(samples) {
			end = len(samples)
		}
		copy(frame, samples[start:end])

		complexFrame := make([]complex128, s.WindowSize)
		for i, v := range frame {
			complexFrame[i] = complex(v*window[i], 0)
		}

		fftResult := fft.FFT(complexFrame)
		mags := make([]float64, numBins)
		for f := 0; f < numBins; f++ {
			mag := cmplx.Abs(fftResult[f])
			mags[f] = mag
			if mag > peakMag {
				peakMag = mag
			}
		}
		magnitudes[t] = mags
	}

	for t := 0; t < numFrames; t++ {
		row := make([]float64, numBins)
		for f := 0; f < numBins; f++ {
			row[f] = toDB(magnitudes[t][f], peakMag, s.DBFloor)
		}
		spectrogramData[t] = row
	}

	timePoints := make([]float64, numFrames)
	for t := 0; t < numFrames; t++ {
		timePoints[t] = float64(t*s.HopSize) / float64(data.SampleRate)
	}
	freqPoints := make([]float64, numBins)
	for f := 0; f < numBins; f++ {
		freqPoints[f] = float64(f) * float64(data.SampleRate) / float64(s.WindowSize)
	}

	return &Spectrogram{
		Data:       spectrogramData,
		FreqBins:   numBins,
		TimeBins:   numFrames,
		TimePoints: timePoints,
		FreqPoints: freqPoints,
	}, nil
}

// toDB converts a magnitude to dB relative to peak, clamped at floorDB.
// A silent buffer (peak 0) maps every bin to floorDB.
func toDB(mag, peak, floorDB float64) float64 {
	if peak < 1e-12 {
		return floorDB
	}
	db := 20 * math.Log10(mag/peak+1e-12)
	if db < floorDB {
		return floorDB
	}
	return db
}
