package fingerprint

import "testing"

func TestGeneratePairsWithinTargetZone(t *testing.T) {
	peaks := []Peak{
		{TimeIndex: 0, FreqIndex: 10, Magnitude: 5},
		{TimeIndex: 3, FreqIndex: 20, Magnitude: 5},
		{TimeIndex: 25, FreqIndex: 30, Magnitude: 5}, // outside target zone [1,20]
	}
	gen := NewGenerator(5, 1, 20, 12, 12, 8)

	fps, err := gen.Generate(peaks)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(fps) != 1 {
		t.Fatalf("expected 1 fingerprint (anchor 0 -> target at t=3), got %d", len(fps))
	}
	if fps[0].AnchorTime != 0 {
		t.Errorf("expected anchor time 0, got %d", fps[0].AnchorTime)
	}
}

func TestGenerateRespectsFanValue(t *testing.T) {
	peaks := []Peak{{TimeIndex: 0, FreqIndex: 10, Magnitude: 5}}
	for dt := 1; dt <= 10; dt++ {
		peaks = append(peaks, Peak{TimeIndex: dt, FreqIndex: 10 + dt, Magnitude: 5})
	}
	gen := NewGenerator(5, 1, 20, 12, 12, 8)

	fps, err := gen.Generate(peaks)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// anchor 0 fans out to 5, each subsequent anchor fans out to what remains.
	anchorCounts := map[int]int{}
	for _, fp := range fps {
		anchorCounts[fp.AnchorTime]++
	}
	if anchorCounts[0] != 5 {
		t.Errorf("expected anchor at t=0 to produce 5 fingerprints, got %d", anchorCounts[0])
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	gen := NewGenerator(5, 1, 20, 12, 12, 8)
	hash, err := gen.pack(100, 200, 15)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	deltaMask := uint32(1<<8) - 1
	targetMask := uint32(1<<12) - 1

	delta := hash & deltaMask
	target := (hash >> 8) & targetMask
	anchor := hash >> 20

	if anchor != 100 || target != 200 || delta != 15 {
		t.Errorf("round trip mismatch: anchor=%d target=%d delta=%d", anchor, target, delta)
	}
}

func TestPackRejectsOverflow(t *testing.T) {
	gen := NewGenerator(5, 1, 20, 12, 12, 8)
	if _, err := gen.pack(1<<12, 0, 0); err == nil {
		t.Fatalf("expected overflow error for anchor frequency")
	}
	if _, err := gen.pack(0, 0, 1<<8); err == nil {
		t.Fatalf("expected overflow error for delta time")
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	peaks := []Peak{
		{TimeIndex: 0, FreqIndex: 10, Magnitude: 5},
		{TimeIndex: 2, FreqIndex: 15, Magnitude: 5},
		{TimeIndex: 4, FreqIndex: 12, Magnitude: 5},
	}
	gen := NewGenerator(5, 1, 20, 12, 12, 8)

	a, err := gen.Generate(peaks)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := gen.Generate(peaks)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("non-deterministic fingerprint count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic fingerprint at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerateRejectsEmptyPeaks(t *testing.T) {
	gen := NewGenerator(5, 1, 20, 12, 12, 8)
	if _, err := gen.Generate(nil); err == nil {
		t.Fatalf("expected error for empty peak list")
	}
}
