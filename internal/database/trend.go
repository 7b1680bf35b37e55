package database

import (
	"time"

	"github.com/stridefit/coach-api/internal/models"
)

// WeightSample is one dated weight measurement, ordered by date when
// passed to ComputeWeightTrend.
type WeightSample struct {
	Date     time.Time
	WeightKg float64
}

// ComputeWeightTrend derives trend statistics from date-ascending weight
// samples. The moving average for a point covers its trailing 7 samples
// (not calendar days, so sparse check-ins still smooth) and only appears
// once at least 3 samples exist in the window; the weekly rate needs at
// least two samples on different days.
func ComputeWeightTrend(samples []WeightSample) models.WeightTrend {
	trend := models.WeightTrend{Points: make([]models.WeightTrendPoint, 0, len(samples))}
	if len(samples) == 0 {
		return trend
	}

	for i, s := range samples {
		point := models.WeightTrendPoint{Date: s.Date, WeightKg: s.WeightKg}

		start := i - 6
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, prev := range samples[start : i+1] {
			sum += prev.WeightKg
		}
		if count := i + 1 - start; count >= 3 {
			avg := sum / float64(count)
			point.MovingAvg7d = &avg
		}

		trend.Points = append(trend.Points, point)
	}

	first := samples[0]
	last := samples[len(samples)-1]

	start := first.WeightKg
	current := last.WeightKg
	total := current - start
	trend.StartWeightKg = &start
	trend.CurrentWeightKg = &current
	trend.TotalChangeKg = &total

	elapsedDays := last.Date.Sub(first.Date).Hours() / 24
	if len(samples) >= 2 && elapsedDays > 0 {
		rate := total / elapsedDays * 7
		trend.WeeklyRateKg = &rate
	}

	return trend
}
