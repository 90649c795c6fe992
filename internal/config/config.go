// Package config defines the immutable configuration surface for the
// audioid pipeline. A Config is built once — via DefaultConfig or
// LoadConfig — and passed to pkg/engine.New; no stage reads package-level
// mutable state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AudioConfig controls the spectrogram processor (component A).
type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate"` // canonical sample rate, Hz
	FFTSize    int     `yaml:"fft_size"`    // STFT window size W, samples
	HopLength  int     `yaml:"hop_length"`  // STFT hop H, samples
	DBFloor    float64 `yaml:"db_floor"`    // noise floor, dB (negative)
	MinFreqHz  float64 `yaml:"min_freq_hz"`
	MaxFreqHz  float64 `yaml:"max_freq_hz"`
}

// PeakConfig controls the peak extractor (component B).
type PeakConfig struct {
	FreqNeighborhood  int     `yaml:"freq_neighborhood"`   // F_NB, bins
	TimeNeighborhood  int     `yaml:"time_neighborhood"`   // T_NB, frames
	ThresholdSigma    float64 `yaml:"threshold_sigma"`     // adaptive threshold margin
	PeaksPerSecondCap int     `yaml:"peaks_per_second_cap"`
}

// FingerprintConfig controls the fingerprint generator (component C).
type FingerprintConfig struct {
	FanValue     int `yaml:"fan_value"`
	TargetZoneMin int `yaml:"target_zone_min"` // T_MIN, frames
	TargetZoneMax int `yaml:"target_zone_max"` // T_MAX, frames
	AnchorFreqBits int `yaml:"anchor_freq_bits"`
	TargetFreqBits int `yaml:"target_freq_bits"`
	DeltaTimeBits  int `yaml:"delta_time_bits"`
}

// MatcherConfig controls the offset-histogram matcher (component E).
type MatcherConfig struct {
	ScoreMin           int     `yaml:"score_min"`
	Margin             float64 `yaml:"margin"`
	OffsetQuantization int     `yaml:"offset_quantization"` // frames per histogram bin
}

// IndexConfig controls the Index Store (component D).
type IndexConfig struct {
	BatchSize   int    `yaml:"batch_size"`
	StoragePath string `yaml:"storage_path"`
}

// EngineConfig controls cross-cutting Engine behavior (component F).
type EngineConfig struct {
	IdentifyTimeoutSeconds int `yaml:"identify_timeout_seconds"`
	IngestWorkers          int `yaml:"ingest_workers"`
}

// Config is the complete, immutable configuration value for one engine
// instance. Construct it with DefaultConfig or LoadConfig; do not mutate
// a Config after it has been handed to engine.New.
type Config struct {
	Audio       AudioConfig       `yaml:"audio"`
	Peak        PeakConfig        `yaml:"peak"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Matcher     MatcherConfig     `yaml:"matcher"`
	Index       IndexConfig       `yaml:"index"`
	Engine      EngineConfig      `yaml:"engine"`
}

// DefaultConfig returns the configuration described by spec defaults.
func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate: 22050,
			FFTSize:    2048,
			HopLength:  512,
			DBFloor:    -80.0,
			MinFreqHz:  0,
			MaxFreqHz:  11025, // Nyquist at 22050 Hz
		},
		Peak: PeakConfig{
			FreqNeighborhood:  10,
			TimeNeighborhood:  10,
			ThresholdSigma:    0.5,
			PeaksPerSecondCap: 30,
		},
		Fingerprint: FingerprintConfig{
			FanValue:       5,
			TargetZoneMin:  1,
			TargetZoneMax:  20,
			AnchorFreqBits: 12,
			TargetFreqBits: 12,
			DeltaTimeBits:  8,
		},
		Matcher: MatcherConfig{
			ScoreMin:           5,
			Margin:             1.5,
			OffsetQuantization: 1,
		},
		Index: IndexConfig{
			BatchSize:   1000,
			StoragePath: "audioid.db",
		},
		Engine: EngineConfig{
			IdentifyTimeoutSeconds: 30,
			IngestWorkers:          4,
		},
	}
}

// LoadConfig reads a YAML file at path, overlaying it onto DefaultConfig
// so partial files are valid (only the documented fields need be present).
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the invariants the pipeline relies on: bit widths must
// fit in a uint32 hash (sum to at most 32), the sample rate must be within
// [8000, 192000] Hz,
// and the fingerprint target zone must be non-empty.
func (c Config) Validate() error {
	totalBits := c.Fingerprint.AnchorFreqBits + c.Fingerprint.TargetFreqBits + c.Fingerprint.DeltaTimeBits
	if totalBits > 32 {
		return fmt.Errorf("fingerprint hash bit widths sum to %d, exceeds 32", totalBits)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("sample_rate %d outside supported range [8000, 192000]", c.Audio.SampleRate)
	}
	if c.Fingerprint.TargetZoneMin < 1 || c.Fingerprint.TargetZoneMin > c.Fingerprint.TargetZoneMax {
		return fmt.Errorf("invalid target zone [%d, %d]", c.Fingerprint.TargetZoneMin, c.Fingerprint.TargetZoneMax)
	}
	if c.Fingerprint.FanValue < 1 {
		return fmt.Errorf("fan_value must be >= 1, got %d", c.Fingerprint.FanValue)
	}
	if c.Index.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d", c.Index.BatchSize)
	}
	if c.Matcher.OffsetQuantization < 1 {
		return fmt.Errorf("offset_quantization must be >= 1, got %d", c.Matcher.OffsetQuantization)
	}
	return nil
}
