package engine

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shoresong/audioid/internal/config"
	"github.com/shoresong/audioid/internal/logx"
	"github.com/shoresong/audioid/pkg/index"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	store, err := index.Open(filepath.Join(t.TempDir(), "engine_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(cfg, logx.Nop(), store)
}

// writeSineWAV writes a mono 16-bit PCM WAV file of a single sine tone.
func writeSineWAV(t *testing.T, path string, sampleRate int, freq float64, seconds float64) {
	t.Helper()
	numSamples := int(float64(sampleRate) * seconds)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	dataSize := numSamples * 2
	writeStr := func(s string) { f.WriteString(s) }
	writeU32 := func(v uint32) {
		f.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	}
	writeU16 := func(v uint16) {
		f.Write([]byte{byte(v), byte(v >> 8)})
	}

	writeStr("RIFF")
	writeU32(uint32(36 + dataSize))
	writeStr("WAVE")
	writeStr("fmt ")
	writeU32(16)
	writeU16(1)
	writeU16(1)
	writeU32(uint32(sampleRate))
	writeU32(uint32(sampleRate * 2))
	writeU16(2)
	writeU16(16)
	writeStr("data")
	writeU32(uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		tt := float64(i) / float64(sampleRate)
		sample := int16(0.6 * 32767 * math.Sin(2*math.Pi*freq*tt))
		f.Write([]byte{byte(sample), byte(sample >> 8)})
	}
}

// melodySegment is one constant-frequency span of a synthesized test track.
type melodySegment struct {
	freq    float64
	seconds float64
}

// generateMelody synthesizes a mono signal made of back-to-back constant
// tones, tracking phase continuously across segment boundaries so each
// segment still carries distinct, time-localized spectral content for
// landmark fingerprinting to key off.
func generateMelody(sampleRate int, segments []melodySegment) []float64 {
	var samples []float64
	phase := 0.0
	for _, seg := range segments {
		n := int(seg.seconds * float64(sampleRate))
		step := 2 * math.Pi * seg.freq / float64(sampleRate)
		for i := 0; i < n; i++ {
			samples = append(samples, 0.6*math.Sin(phase))
			phase += step
		}
	}
	return samples
}

// addNoise returns a copy of samples with uniform noise of the given
// peak amplitude added, seeded deterministically for reproducible tests.
func addNoise(samples []float64, amplitude float64) []float64 {
	r := rand.New(rand.NewSource(1))
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s + amplitude*(2*r.Float64()-1)
	}
	return out
}

// writeWAVSamples writes samples (in [-1, 1]) as a mono 16-bit PCM WAV file.
func writeWAVSamples(t *testing.T, path string, sampleRate int, samples []float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	dataSize := len(samples) * 2
	writeStr := func(s string) { f.WriteString(s) }
	writeU32 := func(v uint32) {
		f.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
	}
	writeU16 := func(v uint16) {
		f.Write([]byte{byte(v), byte(v >> 8)})
	}

	writeStr("RIFF")
	writeU32(uint32(36 + dataSize))
	writeStr("WAVE")
	writeStr("fmt ")
	writeU32(16)
	writeU16(1)
	writeU16(1)
	writeU32(uint32(sampleRate))
	writeU32(uint32(sampleRate * 2))
	writeU16(2)
	writeU16(16)
	writeStr("data")
	writeU32(uint32(dataSize))

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		sample := int16(s * 32767)
		f.Write([]byte{byte(sample), byte(sample >> 8)})
	}
}

func TestIngestThenIdentifySameClip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "song.wav")
	writeSineWAV(t, path, 22050, 440.0, 5.0)

	trackID, err := e.Ingest(ctx, path, "Test Song", "Test Artist")
	require.NoError(t, err)
	require.NotEmpty(t, trackID)

	result, err := e.Identify(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, result, "expected identical clip to be identified")
	require.Equal(t, trackID, result.Track.ID)
	require.Equal(t, "Test Song", result.Track.Title)
}

func TestIdentifyWithNoIngestedTracksReturnsNil(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "query.wav")
	writeSineWAV(t, path, 22050, 523.25, 3.0)

	result, err := e.Identify(ctx, path)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestIngestFailureDoesNotLeaveOrphanTrack(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// too short to produce any peaks/fingerprints
	path := filepath.Join(t.TempDir(), "silence.wav")
	writeSineWAV(t, path, 22050, 0, 0.01)

	_, err := e.Ingest(ctx, path, "Too Short", "Nobody")
	require.Error(t, err)

	tracks, err := e.List(ctx)
	require.NoError(t, err)
	require.Empty(t, tracks, "a failed ingest must not leave a partial track behind")
}

func TestDeleteThenIdentifyNoLongerMatches(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "song.wav")
	writeSineWAV(t, path, 22050, 660.0, 5.0)

	trackID, err := e.Ingest(ctx, path, "Gone Soon", "Artist")
	require.NoError(t, err)

	require.NoError(t, e.Delete(ctx, trackID))
	require.NoError(t, e.Delete(ctx, trackID), "delete must be idempotent")

	result, err := e.Identify(ctx, path)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestIngestBatchRunsConcurrently(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	jobs := make([]IngestJob, 0, 3)
	freqs := []float64{440.0, 554.37, 659.25}
	for i, freq := range freqs {
		path := filepath.Join(t.TempDir(), "song.wav")
		writeSineWAV(t, path, 22050, freq, 5.0)
		jobs = append(jobs, IngestJob{Path: path, Title: "Song", Artist: "Batch"})
		_ = i
	}

	outcomes := e.IngestBatch(ctx, jobs)
	require.Len(t, outcomes, len(jobs))
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		require.NotEmpty(t, o.TrackID)
	}

	tracks, err := e.List(ctx)
	require.NoError(t, err)
	require.Len(t, tracks, len(jobs))
}

func TestIdentifySubClipRecoversOffset(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sampleRate := 22050

	segments := []melodySegment{
		{freq: 440.0, seconds: 2.0},
		{freq: 554.37, seconds: 2.0},
		{freq: 659.25, seconds: 2.0},
		{freq: 783.99, seconds: 2.0},
		{freq: 880.0, seconds: 2.0},
	}
	full := generateMelody(sampleRate, segments)

	refPath := filepath.Join(t.TempDir(), "reference.wav")
	writeWAVSamples(t, refPath, sampleRate, full)

	trackID, err := e.Ingest(ctx, refPath, "Scale", "Test Artist")
	require.NoError(t, err)

	const startSec = 4.0
	const clipSec = 3.0
	start := int(startSec * float64(sampleRate))
	end := start + int(clipSec*float64(sampleRate))
	clip := full[start:end]

	queryPath := filepath.Join(t.TempDir(), "query.wav")
	writeWAVSamples(t, queryPath, sampleRate, clip)

	result, err := e.Identify(ctx, queryPath)
	require.NoError(t, err)
	require.NotNil(t, result, "expected sub-clip to be identified")
	require.Equal(t, trackID, result.Track.ID)
	require.InDelta(t, startSec, result.OffsetSec, 0.25, "expected recovered offset near the sub-clip's start time")
}

func TestIdentifyDisambiguatesBetweenTwoTracks(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sampleRate := 22050

	trackASegments := []melodySegment{
		{freq: 440.0, seconds: 2.0},
		{freq: 554.37, seconds: 2.0},
		{freq: 659.25, seconds: 2.0},
		{freq: 783.99, seconds: 2.0},
		{freq: 880.0, seconds: 2.0},
	}
	trackBSegments := []melodySegment{
		{freq: 440.0, seconds: 2.0}, // shared opening with track A
		{freq: 329.63, seconds: 2.0},
		{freq: 246.94, seconds: 2.0},
		{freq: 196.0, seconds: 2.0},
		{freq: 164.81, seconds: 2.0},
	}

	pathA := filepath.Join(t.TempDir(), "track-a.wav")
	samplesA := generateMelody(sampleRate, trackASegments)
	writeWAVSamples(t, pathA, sampleRate, samplesA)
	trackIDA, err := e.Ingest(ctx, pathA, "Ascending", "Artist A")
	require.NoError(t, err)

	pathB := filepath.Join(t.TempDir(), "track-b.wav")
	writeWAVSamples(t, pathB, sampleRate, generateMelody(sampleRate, trackBSegments))
	_, err = e.Ingest(ctx, pathB, "Descending", "Artist B")
	require.NoError(t, err)

	// Query a clip unique to track A (its third and fourth segments), well
	// past the shared opening, so the matcher must disambiguate correctly.
	start := 4 * sampleRate
	end := start + 3*sampleRate
	queryPath := filepath.Join(t.TempDir(), "query.wav")
	writeWAVSamples(t, queryPath, sampleRate, samplesA[start:end])

	result, err := e.Identify(ctx, queryPath)
	require.NoError(t, err)
	require.NotNil(t, result, "expected the unique segment to match its source track")
	require.Equal(t, trackIDA, result.Track.ID)
}

func TestIdentifyToleratesAdditiveNoise(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sampleRate := 22050

	segments := []melodySegment{
		{freq: 440.0, seconds: 2.0},
		{freq: 554.37, seconds: 2.0},
		{freq: 659.25, seconds: 2.0},
	}
	clean := generateMelody(sampleRate, segments)

	refPath := filepath.Join(t.TempDir(), "reference.wav")
	writeWAVSamples(t, refPath, sampleRate, clean)
	trackID, err := e.Ingest(ctx, refPath, "Noisy Test", "Artist")
	require.NoError(t, err)

	noisy := addNoise(clean, 0.05)
	noisyPath := filepath.Join(t.TempDir(), "noisy.wav")
	writeWAVSamples(t, noisyPath, sampleRate, noisy)

	result, err := e.Identify(ctx, noisyPath)
	require.NoError(t, err)
	require.NotNil(t, result, "expected a noisy copy of an indexed track to still match")
	require.Equal(t, trackID, result.Track.ID)
}
