package adherence

import (
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/models"
)

// Rate returns the raw adherence rate over the event set: doses taken or
// taken late divided by total scheduled doses, in [0,1]. An empty set is
// not an error and yields exactly 0.
func Rate(events []models.AdherenceEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var taken int
	for _, event := range events {
		if event.WasTaken() {
			taken++
		}
	}
	return float64(taken) / float64(len(events))
}

// Progress computes the full adherence summary for a patient over a period.
// Events are expected in scheduled-time order; the calculator has no
// cultural knowledge beyond counting flags already present on the events.
func Progress(patientID, medicationID string, events []models.AdherenceEvent, periodStart, periodEnd time.Time) models.ProgressMetrics {
	metrics := models.ProgressMetrics{
		PatientID:    patientID,
		MedicationID: medicationID,
		TotalDoses:   len(events),
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
	}

	var run int
	for _, event := range events {
		switch event.Status {
		case models.StatusTaken:
			metrics.TakenCount++
		case models.StatusLate:
			metrics.LateCount++
		case models.StatusMissed:
			metrics.MissedCount++
		case models.StatusSkipped:
			metrics.SkippedCount++
		}

		switch {
		case event.WasTaken():
			run++
			if run > metrics.LongestStreak {
				metrics.LongestStreak = run
			}
		case event.Status == models.StatusMissed:
			run = 0
		}
		// A skipped dose neither extends nor breaks a streak.

		if event.WasTaken() {
			if event.Cultural.PrayerTimeConflict {
				metrics.Adjustments.PrayerConflictTaken++
			}
			if event.Cultural.FastingPeriod {
				metrics.Adjustments.FastingPeriodTaken++
			}
			if event.Cultural.FamilySupport {
				metrics.Adjustments.FamilyAssistedDoses++
			}
		}
		if event.Status == models.StatusSkipped && event.Cultural.FestivalPeriod != "" {
			metrics.Adjustments.FestivalSkipsHonored++
		}
	}
	metrics.CurrentStreak = run
	metrics.AdherenceRate = Rate(events)

	return metrics
}

// StreakLengths returns every completed and ongoing taken-run length in
// event order. Used as input to streak-stability feature extraction.
func StreakLengths(events []models.AdherenceEvent) []int {
	var lengths []int
	var run int
	for _, event := range events {
		switch {
		case event.WasTaken():
			run++
		case event.Status == models.StatusMissed:
			if run > 0 {
				lengths = append(lengths, run)
			}
			run = 0
		}
	}
	if run > 0 {
		lengths = append(lengths, run)
	}
	return lengths
}
