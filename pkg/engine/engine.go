// Package engine implements the Engine (spec component F): the orchestrator
// that runs decoded audio through the spectrogram, peak, and fingerprint
// stages and drives the Index Store and Matcher. The Engine holds no state
// of its own beyond a reference to the Index Store.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/shoresong/audioid/internal/config"
	"github.com/shoresong/audioid/internal/logx"
	"github.com/shoresong/audioid/pkg/audio"
	"github.com/shoresong/audioid/pkg/audioerr"
	"github.com/shoresong/audioid/pkg/fingerprint"
	"github.com/shoresong/audioid/pkg/index"
	"github.com/shoresong/audioid/pkg/matcher"
)

// IdentifyResult is what Identify returns for an accepted match, including
// the track metadata the caller needs without a second round trip and the
// full ranked candidate list the matcher produced.
type IdentifyResult struct {
	Track      index.Track
	Score      int
	OffsetSec  float64
	QueryTitle string
	Candidates []matcher.Result
}

// Engine wires the pipeline stages together. Construct one with New and
// reuse it across calls; it is safe for concurrent Ingest and Identify
// calls because all shared state lives in the Index Store.
type Engine struct {
	cfg   config.Config
	log   logx.Logger
	store *index.Store

	pipeline *audio.Pipeline
	spec     *audio.SpectrogramProcessor
	peaks    *fingerprint.PeakExtractor
	gen      *fingerprint.Generator
	match    *matcher.Matcher
}

// New builds an Engine from configuration, a logger, and an opened Index
// Store. The Engine does not own the Store's lifecycle; call store.Close
// separately.
func New(cfg config.Config, log logx.Logger, store *index.Store) *Engine {
	return &Engine{
		cfg:      cfg,
		log:      log,
		store:    store,
		pipeline: audio.NewPipeline(cfg.Audio.SampleRate),
		spec:     audio.NewSpectrogramProcessor(cfg.Audio.FFTSize, cfg.Audio.HopLength, cfg.Audio.DBFloor),
		peaks: fingerprint.NewPeakExtractor(
			cfg.Peak.FreqNeighborhood, cfg.Peak.TimeNeighborhood,
			cfg.Peak.ThresholdSigma, cfg.Peak.PeaksPerSecondCap, cfg.Audio.DBFloor,
		),
		gen: fingerprint.NewGenerator(
			cfg.Fingerprint.FanValue, cfg.Fingerprint.TargetZoneMin, cfg.Fingerprint.TargetZoneMax,
			cfg.Fingerprint.AnchorFreqBits, cfg.Fingerprint.TargetFreqBits, cfg.Fingerprint.DeltaTimeBits,
		),
		match: matcher.New(cfg.Matcher.ScoreMin, cfg.Matcher.Margin, cfg.Matcher.OffsetQuantization),
	}
}

// fingerprintPath runs the shared A -> B -> C pipeline on decoded PCM.
func (e *Engine) fingerprintPath(data *audio.PCM) ([]fingerprint.Fingerprint, int, error) {
	spectrogram, err := e.spec.Compute(data)
	if err != nil {
		return nil, 0, err
	}
	peaks, err := e.peaks.Extract(spectrogram)
	if err != nil {
		return nil, 0, err
	}
	fps, err := e.gen.Generate(peaks)
	if err != nil {
		return nil, 0, err
	}
	return fps, spectrogram.TimeBins, nil
}

// Ingest decodes the file at path, fingerprints it, and stores it as a new
// track with the given title and artist. If fingerprint insertion fails,
// Ingest deletes the partially created track so a failed ingest never
// leaves a visible, incomplete entry (the atomic-ingest invariant).
func (e *Engine) Ingest(ctx context.Context, path, title, artist string) (string, error) {
	data, err := e.pipeline.LoadAndPreprocess(ctx, path)
	if err != nil {
		return "", err
	}

	fps, durationFrames, err := e.fingerprintPath(data)
	if err != nil {
		return "", err
	}

	trackID, err := newTrackID()
	if err != nil {
		return "", audioerr.Processing("generate track id", err)
	}

	if err := e.store.CreateTrack(ctx, trackID, title, artist, durationFrames); err != nil {
		return "", err
	}

	if err := e.store.InsertFingerprints(ctx, trackID, fps, e.cfg.Index.BatchSize); err != nil {
		if delErr := e.store.DeleteTrack(context.WithoutCancel(ctx), trackID); delErr != nil {
			e.log.Errorf("ingest: compensating delete of track %s failed: %v", trackID, delErr)
		}
		return "", err
	}

	e.log.Infof("ingested track %s (%q by %q, %d fingerprints)", trackID, title, artist, len(fps))
	return trackID, nil
}

// Identify decodes the file at path, fingerprints it, and returns the best
// matching indexed track, or nil if nothing clears the matcher's
// acceptance thresholds. It is bounded by the configured identify timeout.
func (e *Engine) Identify(ctx context.Context, path string) (*IdentifyResult, error) {
	timeout := time.Duration(e.cfg.Engine.IdentifyTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := e.pipeline.LoadAndPreprocess(ctx, path)
	if err != nil {
		return nil, err
	}

	fps, _, err := e.fingerprintPath(data)
	if err != nil {
		return nil, err
	}

	candidates, err := e.match.Match(ctx, e.store, fps)
	if err != nil {
		if ctx.Err() != nil {
			return nil, audioerr.Timeout("identify timed out", ctx.Err())
		}
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	top := candidates[0]
	track, err := e.store.GetTrack(ctx, top.TrackID)
	if err != nil {
		return nil, err
	}

	offsetSec := float64(top.Offset*e.cfg.Audio.HopLength) / float64(e.cfg.Audio.SampleRate)
	return &IdentifyResult{Track: *track, Score: top.Score, OffsetSec: offsetSec, Candidates: candidates}, nil
}

// Delete removes a track by ID, matching the Index Store's idempotent
// delete contract.
func (e *Engine) Delete(ctx context.Context, trackID string) error {
	return e.store.DeleteTrack(ctx, trackID)
}

// List returns metadata for every ingested track.
func (e *Engine) List(ctx context.Context) ([]index.Track, error) {
	return e.store.ListTracks(ctx)
}

// Stats reports aggregate counts from the Index Store.
func (e *Engine) Stats(ctx context.Context) (index.Stats, error) {
	return e.store.Stats(ctx)
}

// IngestBatch runs Ingest over many files concurrently, bounded by
// cfg.Engine.IngestWorkers, matching the worker-pool concurrency model for
// batch ingest.
func (e *Engine) IngestBatch(ctx context.Context, jobs []IngestJob) []IngestOutcome {
	outcomes := make([]IngestOutcome, len(jobs))
	workers := e.cfg.Engine.IngestWorkers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job IngestJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			trackID, err := e.Ingest(ctx, job.Path, job.Title, job.Artist)
			outcomes[i] = IngestOutcome{Job: job, TrackID: trackID, Err: err}
		}(i, job)
	}
	wg.Wait()
	return outcomes
}

// IngestJob describes one file to ingest in a batch.
type IngestJob struct {
	Path   string
	Title  string
	Artist string
}

// IngestOutcome is the per-job result of IngestBatch.
type IngestOutcome struct {
	Job     IngestJob
	TrackID string
	Err     error
}

func newTrackID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("trk_%s", hex.EncodeToString(buf)), nil
}
