package database

import (
	"math"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestComputeWeightTrend_Empty(t *testing.T) {
	t.Parallel()

	trend := ComputeWeightTrend(nil)
	if len(trend.Points) != 0 {
		t.Errorf("expected no points, got %d", len(trend.Points))
	}
	if trend.WeeklyRateKg != nil || trend.StartWeightKg != nil {
		t.Error("summary fields must be nil with no samples")
	}
}

func TestComputeWeightTrend_MovingAverageNeedsThreeSamples(t *testing.T) {
	t.Parallel()

	samples := []WeightSample{
		{Date: day(0), WeightKg: 80.0},
		{Date: day(1), WeightKg: 80.4},
		{Date: day(2), WeightKg: 79.8},
		{Date: day(3), WeightKg: 79.6},
	}

	trend := ComputeWeightTrend(samples)
	if len(trend.Points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(trend.Points))
	}

	// First two points have fewer than 3 trailing samples
	if trend.Points[0].MovingAvg7d != nil {
		t.Error("point 0 should have no moving average")
	}
	if trend.Points[1].MovingAvg7d != nil {
		t.Error("point 1 should have no moving average")
	}

	if trend.Points[2].MovingAvg7d == nil {
		t.Fatal("point 2 should have a moving average")
	}
	want := (80.0 + 80.4 + 79.8) / 3
	if math.Abs(*trend.Points[2].MovingAvg7d-want) > 0.0001 {
		t.Errorf("point 2 moving average = %v, want %v", *trend.Points[2].MovingAvg7d, want)
	}
}

func TestComputeWeightTrend_SparseSamplesStillSmooth(t *testing.T) {
	t.Parallel()

	// The window counts samples, not calendar days, so gapped
	// check-ins still produce a moving average.
	samples := []WeightSample{
		{Date: day(0), WeightKg: 82},
		{Date: day(10), WeightKg: 81},
		{Date: day(20), WeightKg: 80},
		{Date: day(30), WeightKg: 79},
	}

	trend := ComputeWeightTrend(samples)
	if trend.Points[2].MovingAvg7d == nil {
		t.Fatal("point 2 should have a moving average")
	}
	want := (82.0 + 81.0 + 80.0) / 3
	if math.Abs(*trend.Points[2].MovingAvg7d-want) > 0.0001 {
		t.Errorf("point 2 moving average = %v, want %v", *trend.Points[2].MovingAvg7d, want)
	}
	if trend.Points[3].MovingAvg7d == nil {
		t.Fatal("point 3 should have a moving average")
	}
	if want := (82.0 + 81.0 + 80.0 + 79.0) / 4; math.Abs(*trend.Points[3].MovingAvg7d-want) > 0.0001 {
		t.Errorf("point 3 moving average = %v, want %v", *trend.Points[3].MovingAvg7d, want)
	}
}

func TestComputeWeightTrend_WindowCapsAtSevenSamples(t *testing.T) {
	t.Parallel()

	// Ten daily samples 90..81: the last window holds samples 3..9 only.
	samples := make([]WeightSample, 10)
	for i := range samples {
		samples[i] = WeightSample{Date: day(i), WeightKg: 90 - float64(i)}
	}

	trend := ComputeWeightTrend(samples)
	last := trend.Points[9]
	if last.MovingAvg7d == nil {
		t.Fatal("last point should have a moving average")
	}
	want := (87.0 + 86 + 85 + 84 + 83 + 82 + 81) / 7
	if math.Abs(*last.MovingAvg7d-want) > 0.0001 {
		t.Errorf("last moving average = %v, want %v", *last.MovingAvg7d, want)
	}
}

func TestComputeWeightTrend_WeeklyRate(t *testing.T) {
	t.Parallel()

	// 1 kg lost over 14 days -> 0.5 kg/week
	samples := []WeightSample{
		{Date: day(0), WeightKg: 80},
		{Date: day(7), WeightKg: 79.5},
		{Date: day(14), WeightKg: 79},
	}

	trend := ComputeWeightTrend(samples)
	if trend.WeeklyRateKg == nil {
		t.Fatal("expected a weekly rate")
	}
	if math.Abs(*trend.WeeklyRateKg-(-0.5)) > 0.0001 {
		t.Errorf("WeeklyRateKg = %v, want -0.5", *trend.WeeklyRateKg)
	}
	if trend.TotalChangeKg == nil || math.Abs(*trend.TotalChangeKg-(-1.0)) > 0.0001 {
		t.Errorf("TotalChangeKg = %v, want -1.0", trend.TotalChangeKg)
	}
	if trend.StartWeightKg == nil || *trend.StartWeightKg != 80 {
		t.Errorf("StartWeightKg = %v, want 80", trend.StartWeightKg)
	}
	if trend.CurrentWeightKg == nil || *trend.CurrentWeightKg != 79 {
		t.Errorf("CurrentWeightKg = %v, want 79", trend.CurrentWeightKg)
	}
}

func TestComputeWeightTrend_SingleSample(t *testing.T) {
	t.Parallel()

	trend := ComputeWeightTrend([]WeightSample{{Date: day(0), WeightKg: 75}})
	if trend.WeeklyRateKg != nil {
		t.Error("single sample must not produce a weekly rate")
	}
	if trend.StartWeightKg == nil || *trend.StartWeightKg != 75 {
		t.Error("start weight should still be reported")
	}
}
