// Package fingerprint turns a spectrogram into spectral peaks (component B)
// and peaks into locality-sensitive hashes (component C).
package fingerprint

import (
	"math"
	"sort"

	"github.com/shoresong/audioid/pkg/audio"
	"github.com/shoresong/audioid/pkg/audioerr"
)

// Peak is one constellation-map point: a time-frequency bin whose energy
// exceeds its neighborhood and the adaptive threshold.
type Peak struct {
	TimeIndex int     // time frame index
	FreqIndex int     // frequency bin index
	Magnitude float64 // dB level at (TimeIndex, FreqIndex)
}

// PeakExtractor finds local maxima in a spectrogram using a
// (2*FreqNeighborhood+1) x (2*TimeNeighborhood+1) window and an adaptive
// threshold of mean + ThresholdSigma*stddev, capped at PeaksPerSecondCap
// peaks for every second of audio.
type PeakExtractor struct {
	FreqNeighborhood  int
	TimeNeighborhood  int
	ThresholdSigma    float64
	PeaksPerSecondCap int
	DBFloor           float64
}

// NewPeakExtractor builds an extractor from the given parameters.
func NewPeakExtractor(freqNB, timeNB int, thresholdSigma float64, peaksPerSecondCap int, dbFloor float64) *PeakExtractor {
	return &PeakExtractor{
		FreqNeighborhood:  freqNB,
		TimeNeighborhood:  timeNB,
		ThresholdSigma:    thresholdSigma,
		PeaksPerSecondCap: peaksPerSecondCap,
		DBFloor:           dbFloor,
	}
}

// Extract returns the peaks of spectrogram, sorted lexicographically by
// (TimeIndex, FreqIndex) and capped globally by PeaksPerSecondCap scaled to
// the spectrogram's duration.
func (p *PeakExtractor) Extract(spectrogram *audio.Spectrogram) ([]Peak, error) {
	if spectrogram == nil || len(spectrogram.Data) == 0 || len(spectrogram.Data[0]) == 0 {
		return nil, audioerr.Input("empty spectrogram", nil)
	}

	threshold := p.adaptiveThreshold(spectrogram)

	var peaks []Peak
	for t := 0; t < spectrogram.TimeBins; t++ {
		for f := 0; f < spectrogram.FreqBins; f++ {
			mag := spectrogram.Data[t][f]
			if mag < threshold {
				continue
			}
			if p.isLocalMaximum(spectrogram, t, f) {
				peaks = append(peaks, Peak{TimeIndex: t, FreqIndex: f, Magnitude: mag})
			}
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].TimeIndex != peaks[j].TimeIndex {
			return peaks[i].TimeIndex < peaks[j].TimeIndex
		}
		return peaks[i].FreqIndex < peaks[j].FreqIndex
	})

	return p.capByMagnitude(peaks, spectrogram), nil
}

// adaptiveThreshold computes mean + ThresholdSigma*stddev over all bins,
// floored at the spectrogram's own noise floor so a near-silent clip
// doesn't produce peaks out of quantization noise.
func (p *PeakExtractor) adaptiveThreshold(spectrogram *audio.Spectrogram) float64 {
	var sum, sumSq float64
	n := 0
	for _, row := range spectrogram.Data {
		for _, v := range row {
			sum += v
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return p.DBFloor
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	stddev := math.Sqrt(variance)

	threshold := mean + p.ThresholdSigma*stddev
	if threshold < p.DBFloor {
		return p.DBFloor
	}
	return threshold
}

// isLocalMaximum checks whether (t, f) is >= every bin in its neighborhood,
// with ties broken in favor of the lexicographically smallest (f, t) — an
// equal-magnitude neighbor at a lower frequency bin, or at the same bin in
// an earlier frame, suppresses this one.
func (p *PeakExtractor) isLocalMaximum(spectrogram *audio.Spectrogram, t, f int) bool {
	mag := spectrogram.Data[t][f]
	for dt := -p.TimeNeighborhood; dt <= p.TimeNeighborhood; dt++ {
		nt := t + dt
		if nt < 0 || nt >= spectrogram.TimeBins {
			continue
		}
		for df := -p.FreqNeighborhood; df <= p.FreqNeighborhood; df++ {
			nf := f + df
			if nf < 0 || nf >= spectrogram.FreqBins {
				continue
			}
			if dt == 0 && df == 0 {
				continue
			}
			neighbor := spectrogram.Data[nt][nf]
			if neighbor > mag {
				return false
			}
			if neighbor == mag && (nf < f || (nf == f && nt < t)) {
				return false
			}
		}
	}
	return true
}

// capByMagnitude enforces the global peak budget: PeaksPerSecondCap times
// the spectrogram's duration in seconds, keeping the largest-magnitude
// peaks and restoring (TimeIndex, FreqIndex) order afterward.
func (p *PeakExtractor) capByMagnitude(peaks []Peak, spectrogram *audio.Spectrogram) []Peak {
	duration := 0.0
	if n := len(spectrogram.TimePoints); n > 0 {
		duration = spectrogram.TimePoints[n-1]
		if n > 1 {
			duration += spectrogram.TimePoints[1] - spectrogram.TimePoints[0]
		}
	}

	maxPeaks := int(math.Ceil(duration * float64(p.PeaksPerSecondCap)))
	if maxPeaks < p.PeaksPerSecondCap {
		maxPeaks = p.PeaksPerSecondCap
	}
	if len(peaks) <= maxPeaks {
		return peaks
	}

	byMag := make([]Peak, len(peaks))
	copy(byMag, peaks)
	sort.Slice(byMag, func(i, j int) bool {
		return byMag[i].Magnitude > byMag[j].Magnitude
	})
	kept := byMag[:maxPeaks]

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].TimeIndex != kept[j].TimeIndex {
			return kept[i].TimeIndex < kept[j].TimeIndex
		}
		return kept[i].FreqIndex < kept[j].FreqIndex
	})
	return kept
}
