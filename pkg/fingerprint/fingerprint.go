package fingerprint

import (
	"sort"

	"github.com/shoresong/audioid/pkg/audioerr"
)

// Fingerprint is one landmark hash: the packed (anchor freq, target freq,
// delta time) triple and the anchor's time frame, which the Index Store
// keeps alongside the hash for offset reconstruction during matching.
type Fingerprint struct {
	Hash       uint32
	AnchorTime int
}

// Generator pairs each peak (anchor) with up to FanValue peaks in its
// target zone and packs each pair into a single hash (component C).
type Generator struct {
	FanValue      int
	TargetZoneMin int // T_MIN, frames
	TargetZoneMax int // T_MAX, frames
	AnchorBits    int
	TargetBits    int
	DeltaBits     int
}

// NewGenerator builds a Generator from fingerprint configuration.
func NewGenerator(fanValue, targetZoneMin, targetZoneMax, anchorBits, targetBits, deltaBits int) *Generator {
	return &Generator{
		FanValue:      fanValue,
		TargetZoneMin: targetZoneMin,
		TargetZoneMax: targetZoneMax,
		AnchorBits:    anchorBits,
		TargetBits:    targetBits,
		DeltaBits:     deltaBits,
	}
}

// Generate produces fingerprints for peaks, which must already be sorted
// by (TimeIndex, FreqIndex) as PeakExtractor.Extract returns them.
func (g *Generator) Generate(peaks []Peak) ([]Fingerprint, error) {
	if len(peaks) == 0 {
		return nil, audioerr.Input("no peaks to fingerprint", nil)
	}

	var out []Fingerprint
	for i, anchor := range peaks {
		targets := g.targetZone(peaks, i)
		for _, target := range targets {
			deltaT := target.TimeIndex - anchor.TimeIndex
			hash, err := g.pack(anchor.FreqIndex, target.FreqIndex, deltaT)
			if err != nil {
				return nil, err
			}
			out = append(out, Fingerprint{Hash: hash, AnchorTime: anchor.TimeIndex})
		}
	}
	return out, nil
}

// targetZone collects the candidates within [TargetZoneMin, TargetZoneMax]
// frames after the anchor at index i, and returns up to FanValue of them
// ordered by ascending delta-t then ascending |delta-f|.
func (g *Generator) targetZone(peaks []Peak, i int) []Peak {
	anchor := peaks[i]
	var candidates []Peak
	for j := i + 1; j < len(peaks); j++ {
		dt := peaks[j].TimeIndex - anchor.TimeIndex
		if dt < g.TargetZoneMin {
			continue
		}
		if dt > g.TargetZoneMax {
			break // peaks is time-sorted, nothing further qualifies
		}
		candidates = append(candidates, peaks[j])
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		dtA := candidates[a].TimeIndex - anchor.TimeIndex
		dtB := candidates[b].TimeIndex - anchor.TimeIndex
		if dtA != dtB {
			return dtA < dtB
		}
		dfA := absInt(candidates[a].FreqIndex - anchor.FreqIndex)
		dfB := absInt(candidates[b].FreqIndex - anchor.FreqIndex)
		return dfA < dfB
	})

	if len(candidates) > g.FanValue {
		candidates = candidates[:g.FanValue]
	}
	return candidates
}

// pack bit-packs (anchorFreq, targetFreq, deltaT) into a uint32: anchorFreq
// occupies the top AnchorBits, targetFreq the next TargetBits, deltaT the
// low DeltaBits.
func (g *Generator) pack(anchorFreq, targetFreq, deltaT int) (uint32, error) {
	if deltaT < 0 {
		return 0, audioerr.Processing("negative target delta", nil)
	}
	maxAnchor := 1 << g.AnchorBits
	maxTarget := 1 << g.TargetBits
	maxDelta := 1 << g.DeltaBits
	if anchorFreq >= maxAnchor || targetFreq >= maxTarget || deltaT >= maxDelta {
		return 0, audioerr.Processing("fingerprint field overflow", nil)
	}

	hash := uint32(anchorFreq)
	hash = (hash << uint(g.TargetBits)) | uint32(targetFreq)
	hash = (hash << uint(g.DeltaBits)) | uint32(deltaT)
	return hash, nil
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
