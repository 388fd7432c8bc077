package anacrolix

import (
	"testing"
	"time"
)

func TestSpeedSamplerFirstSampleIsZero(t *testing.T) {
	var s speedSampler
	down, up := s.sample(1000, 500, time.Now())
	if down != 0 || up != 0 {
		t.Fatalf("first sample = (%d, %d), want (0, 0)", down, up)
	}
}

func TestSpeedSamplerComputesRates(t *testing.T) {
	var s speedSampler
	base := time.Now()
	s.sample(0, 0, base)
	down, up := s.sample(2048, 1024, base.Add(2*time.Second))
	if down != 1024 {
		t.Errorf("download rate = %d, want 1024", down)
	}
	if up != 512 {
		t.Errorf("upload rate = %d, want 512", up)
	}
}

func TestSpeedSamplerClampsNegativeDeltas(t *testing.T) {
	var s speedSampler
	base := time.Now()
	s.sample(5000, 5000, base)
	down, up := s.sample(100, 100, base.Add(time.Second))
	if down != 0 || up != 0 {
		t.Fatalf("negative delta rates = (%d, %d), want (0, 0)", down, up)
	}
}
