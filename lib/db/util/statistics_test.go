package util

import (
	"math"
	"testing"
)

func TestNewStats(t *testing.T) {
	if s := NewStats(nil); s != (Stats{}) {
		t.Errorf("Expected zero stats for no values, got %+v", s)
	}

	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Min != 2 || s.Max != 9 {
		t.Errorf("Expected min 2 and max 9, got %v and %v", s.Min, s.Max)
	}
	if s.Mean != 5 {
		t.Errorf("Expected mean 5, got %v", s.Mean)
	}
	if s.StdDeviation != 2 {
		t.Errorf("Expected standard deviation 2, got %v", s.StdDeviation)
	}
	if math.Abs(s.MinMaxRatio-2.0/9.0) > 1e-9 {
		t.Errorf("Expected min/max ratio 2/9, got %v", s.MinMaxRatio)
	}
}

func TestNewDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("Expected perfect quality for an even distribution, got %v", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{0, 0, 30})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("Expected a skewed distribution to score lower, got %v", skewed.DistributionQuality)
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.MedianEstimate() != 0 || h.AverageSize() != 0 {
		t.Errorf("Expected zero estimates for an empty histogram")
	}

	for i := 0; i < 90; i++ {
		h.AddSample(10) // first bucket
	}
	for i := 0; i < 10; i++ {
		h.AddSample(2000) // 1KB to 4KB bucket
	}

	if h.GetCount() != 100 {
		t.Errorf("Expected 100 samples, got %d", h.GetCount())
	}
	if avg := h.AverageSize(); avg != (90*10+10*2000)/100 {
		t.Errorf("Unexpected average size %d", avg)
	}
	if m := h.MedianEstimate(); m != 8 {
		t.Errorf("Expected the median in the first bucket, got %d", m)
	}
	if p := h.GetPercentileEstimate(95); p != (1024+4096)/2 {
		t.Errorf("Expected the 95th percentile in the 4KB bucket, got %d", p)
	}
	if p := h.GetPercentileEstimate(101); p != 0 {
		t.Errorf("Expected 0 for an invalid percentile, got %d", p)
	}

	h.AddSample(1 << 40)
	if p := h.GetPercentileEstimate(100); p != 4294967296*2 {
		t.Errorf("Expected the overflow bucket estimate, got %d", p)
	}
}
