package prediction

import (
	"testing"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/cultural"
)

func TestForecastReproducibleWithSeed(t *testing.T) {
	prediction := models.AdherencePrediction{PatientID: "p1", MedicationID: "m1", PredictedAdherence: 80}
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	a := NewForecaster(7).Forecast(prediction, from, 14, nil)
	b := NewForecaster(7).Forecast(prediction, from, 14, nil)

	if len(a) != 14 || len(b) != 14 {
		t.Fatalf("expected 14 points, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Expected != b[i].Expected {
			t.Fatalf("day %d diverged: %f vs %f", i, a[i].Expected, b[i].Expected)
		}
	}
}

func TestForecastWeekendAdjustment(t *testing.T) {
	prediction := models.AdherencePrediction{
		PatientID:          "p1",
		MedicationID:       "m1",
		PredictedAdherence: 90,
		RiskFactors: []models.RiskFactor{
			{Name: "weekend_adherence_drop", Weight: 0.6, Value: 1, Impact: 0.6},
		},
	}
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) // a Monday

	points := NewForecaster(1).Forecast(prediction, from, 7, nil)
	var weekdaySum, weekendSum float64
	var weekdays, weekends int
	for _, point := range points {
		if point.Weekend {
			weekendSum += point.Expected
			weekends++
		} else {
			weekdaySum += point.Expected
			weekdays++
		}
	}
	if weekends == 0 || weekdays == 0 {
		t.Fatal("expected both weekday and weekend points in a 7-day span")
	}
	if weekendSum/float64(weekends) >= weekdaySum/float64(weekdays) {
		t.Fatal("expected weekend expectations below weekday expectations")
	}
}

func TestForecastFestivalWindowAdjustment(t *testing.T) {
	prediction := models.AdherencePrediction{
		PatientID:          "p1",
		MedicationID:       "m1",
		PredictedAdherence: 90,
		RiskFactors: []models.RiskFactor{
			{Name: "festival_disruption", Weight: 0.6, Value: 1, Impact: 0.6},
		},
	}
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) // a Monday
	festivals := []cultural.Festival{
		{Name: "diwali", Start: from.Add(2 * 24 * time.Hour), End: from.Add(4 * 24 * time.Hour), Major: true},
	}

	// Same seed with and without the window: jitter draws line up per day,
	// so any difference comes from the festival scaling alone.
	plain := NewForecaster(5).Forecast(prediction, from, 5, nil)
	damped := NewForecaster(5).Forecast(prediction, from, 5, festivals)

	for i := range damped {
		inWindow := i >= 1 && i <= 3 // days 2 through 4 of the horizon
		if damped[i].Festival != inWindow {
			t.Fatalf("day %d festival flag = %v, want %v", i+1, damped[i].Festival, inWindow)
		}
		if inWindow && damped[i].Expected >= plain[i].Expected {
			t.Fatalf("day %d inside the festival window not damped: %f vs %f",
				i+1, damped[i].Expected, plain[i].Expected)
		}
		if !inWindow && damped[i].Expected != plain[i].Expected {
			t.Fatalf("day %d outside the window changed: %f vs %f",
				i+1, damped[i].Expected, plain[i].Expected)
		}
	}
}

func TestForecastBounds(t *testing.T) {
	prediction := models.AdherencePrediction{PatientID: "p1", MedicationID: "m1", PredictedAdherence: 99}
	points := NewForecaster(3).Forecast(prediction, time.Now(), 30, nil)
	for _, point := range points {
		if point.Expected < 0 || point.Expected > 100 {
			t.Fatalf("forecast point out of bounds: %f", point.Expected)
		}
	}
}
