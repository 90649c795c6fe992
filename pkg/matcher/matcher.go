// Package matcher implements the offset-histogram voting matcher (spec
// component E): given a query's fingerprints, find which indexed track
// shares the most fingerprints at a single consistent time offset.
package matcher

import (
	"context"
	"sort"

	"github.com/shoresong/audioid/pkg/audioerr"
	"github.com/shoresong/audioid/pkg/fingerprint"
	"github.com/shoresong/audioid/pkg/index"
)

// Lookup is the subset of the Index Store the Matcher depends on, kept
// narrow so tests can supply an in-memory fake instead of a real database.
type Lookup interface {
	LookupMany(ctx context.Context, hashes []uint32) (map[uint32][]index.HashMatch, error)
}

// Result is a candidate identification: a track, its vote score, the
// estimated frame offset between the query and the reference, and the
// total number of query hashes that matched it at any offset (used only to
// break score ties).
type Result struct {
	TrackID      string
	Score        int
	Offset       int
	TotalMatched int
}

// Matcher holds the acceptance thresholds from spec component E.
type Matcher struct {
	ScoreMin           int
	Margin             float64
	OffsetQuantization int
}

// New builds a Matcher from configuration. offsetQuantization buckets raw
// frame offsets into coarser histogram bins before voting; 1 means no
// quantization.
func New(scoreMin int, margin float64, offsetQuantization int) *Matcher {
	if offsetQuantization < 1 {
		offsetQuantization = 1
	}
	return &Matcher{ScoreMin: scoreMin, Margin: margin, OffsetQuantization: offsetQuantization}
}

// Match votes every (track, offset) pair implied by the query's
// fingerprints into a histogram and returns every candidate track ranked by
// score descending, ties broken by larger total matched hashes then smaller
// track-id (rule 4). The ranked list is accepted (non-empty) only if the
// top candidate's score clears ScoreMin and either it's the only candidate
// past ScoreMin or it beats the runner-up by at least Margin (rule 5); a
// rejected match returns a nil slice, not an error.
func (m *Matcher) Match(ctx context.Context, lookup Lookup, queryFPs []fingerprint.Fingerprint) ([]Result, error) {
	if len(queryFPs) == 0 {
		return nil, audioerr.Input("no fingerprints to match", nil)
	}

	hashes := make([]uint32, len(queryFPs))
	anchorByHash := make(map[uint32][]int, len(queryFPs))
	for i, fp := range queryFPs {
		hashes[i] = fp.Hash
		anchorByHash[fp.Hash] = append(anchorByHash[fp.Hash], fp.AnchorTime)
	}

	matches, err := lookup.LookupMany(ctx, hashes)
	if err != nil {
		return nil, audioerr.Storage("lookup query fingerprints", err)
	}

	// histogram[trackID][offset] = vote count
	histogram := make(map[string]map[int]int)
	for hash, queryAnchors := range anchorByHash {
		for _, ref := range matches[hash] {
			for _, queryAnchor := range queryAnchors {
				delta := ref.AnchorTime - queryAnchor
				offset := delta / m.OffsetQuantization
				if delta%m.OffsetQuantization < 0 {
					offset-- // floor division, so every bin spans OffsetQuantization frames
				}
				if histogram[ref.TrackID] == nil {
					histogram[ref.TrackID] = make(map[int]int)
				}
				histogram[ref.TrackID][offset]++
			}
		}
	}

	if len(histogram) == 0 {
		return nil, nil
	}

	var ranked []Result
	for trackID, offsets := range histogram {
		bestOffset, bestScore, total := 0, 0, 0
		for offset, count := range offsets {
			total += count
			if count > bestScore || (count == bestScore && offset < bestOffset) {
				bestScore = count
				bestOffset = offset
			}
		}
		ranked = append(ranked, Result{TrackID: trackID, Offset: bestOffset * m.OffsetQuantization, Score: bestScore, TotalMatched: total})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].TotalMatched != ranked[j].TotalMatched {
			return ranked[i].TotalMatched > ranked[j].TotalMatched
		}
		return ranked[i].TrackID < ranked[j].TrackID
	})

	top := ranked[0]
	if top.Score < m.ScoreMin {
		return nil, nil
	}

	clearingScoreMin := 0
	for _, r := range ranked {
		if r.Score >= m.ScoreMin {
			clearingScoreMin++
		}
	}
	if clearingScoreMin > 1 {
		second := ranked[1]
		if second.Score > 0 && float64(top.Score)/float64(second.Score) < m.Margin {
			return nil, nil
		}
	}

	return ranked, nil
}
