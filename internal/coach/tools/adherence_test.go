package tools

import (
	"testing"
	"time"

	"github.com/stridefit/coach-api/internal/models"
)

func TestComputeAdherence(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	weight := 80.0
	score := 0.9

	// Check-ins today, yesterday, and four days ago: streak of 2
	checkins := []models.CheckIn{
		{Date: now.AddDate(0, 0, -4), WeightKg: &weight},
		{Date: now.AddDate(0, 0, -1), AdherenceScore: &score},
		{Date: now, WeightKg: &weight, AdherenceScore: &score},
	}
	nutritionDays := []models.NutritionDay{
		{Date: now.AddDate(0, 0, -1)},
		{Date: now},
	}

	m := ComputeAdherence(checkins, nutritionDays, 10, now)

	if m.CheckInRate != 0.3 {
		t.Errorf("CheckInRate = %v, want 0.3", m.CheckInRate)
	}
	if m.WeightLoggingRate != 0.2 {
		t.Errorf("WeightLoggingRate = %v, want 0.2", m.WeightLoggingRate)
	}
	if m.NutritionLoggingRate != 0.2 {
		t.Errorf("NutritionLoggingRate = %v, want 0.2", m.NutritionLoggingRate)
	}
	if m.CurrentStreakDays != 2 {
		t.Errorf("CurrentStreakDays = %d, want 2", m.CurrentStreakDays)
	}
	if m.AvgAdherenceScore == nil || *m.AvgAdherenceScore != 0.9 {
		t.Errorf("AvgAdherenceScore = %v, want 0.9", m.AvgAdherenceScore)
	}
}

func TestComputeAdherence_NoCheckInToday(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	checkins := []models.CheckIn{{Date: now.AddDate(0, 0, -1)}}

	m := ComputeAdherence(checkins, nil, 14, now)
	if m.CurrentStreakDays != 0 {
		t.Errorf("streak must break when today has no check-in, got %d", m.CurrentStreakDays)
	}
	if m.AvgAdherenceScore != nil {
		t.Error("no scores logged, average must be nil")
	}
}
