package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate, got: %v", err)
	}
}

func TestValidateRejectsBitWidthOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fingerprint.AnchorFreqBits = 20
	cfg.Fingerprint.TargetFreqBits = 20
	cfg.Fingerprint.DeltaTimeBits = 20
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for hash bit widths summing over 32")
	}
}

func TestValidateRejectsBadSampleRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audio.SampleRate = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for sample rate below supported range")
	}
}

func TestValidateRejectsInvertedTargetZone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fingerprint.TargetZoneMin = 20
	cfg.Fingerprint.TargetZoneMax = 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for inverted target zone")
	}
}

func TestLoadConfigOverlaysPartialYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := "audio:\n  sample_rate: 11025\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Audio.SampleRate != 11025 {
		t.Errorf("expected overridden sample_rate 11025, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Fingerprint.FanValue != DefaultConfig().Fingerprint.FanValue {
		t.Errorf("expected untouched fields to retain defaults, got fan_value=%d", cfg.Fingerprint.FanValue)
	}
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
