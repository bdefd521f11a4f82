package prediction

import (
	"math"
	"testing"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/cultural"
)

func testExtractor() *Extractor {
	return NewExtractor(cultural.NewScorer(cultural.DefaultPolicy()))
}

func doseEvery(start time.Time, interval time.Duration, statuses []string) []models.AdherenceEvent {
	events := make([]models.AdherenceEvent, 0, len(statuses))
	for i, status := range statuses {
		scheduled := start.Add(time.Duration(i) * interval)
		event := models.AdherenceEvent{
			PatientID:     "p1",
			MedicationID:  "m1",
			ScheduledTime: scheduled,
			Status:        status,
		}
		if status == models.StatusTaken || status == models.StatusLate {
			taken := scheduled.Add(5 * time.Minute)
			event.TakenTime = &taken
		}
		events = append(events, event)
	}
	return events
}

func repeat(status string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = status
	}
	return out
}

func TestTrendZeroUnderFourteenDays(t *testing.T) {
	// Ten days of checkered history: content must not matter, only span.
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	statuses := []string{
		models.StatusTaken, models.StatusMissed, models.StatusTaken, models.StatusMissed,
		models.StatusTaken, models.StatusMissed, models.StatusTaken, models.StatusMissed,
		models.StatusTaken, models.StatusMissed,
	}
	events := doseEvery(start, 24*time.Hour, statuses)

	features := testExtractor().Extract(models.PatientCulturalProfile{}, events, start.Add(10*24*time.Hour))
	if features.AdherenceTrend != 0 {
		t.Fatalf("expected trend exactly 0 under 14 days, got %f", features.AdherenceTrend)
	}
}

func TestTrendNegativeOverDecliningWeeks(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	// Three weeks: perfect, half, collapsed.
	statuses := append(repeat(models.StatusTaken, 7),
		append([]string{
			models.StatusTaken, models.StatusMissed, models.StatusTaken, models.StatusMissed,
			models.StatusTaken, models.StatusMissed, models.StatusTaken,
		}, repeat(models.StatusMissed, 7)...)...)
	events := doseEvery(start, 24*time.Hour, statuses)

	features := testExtractor().Extract(models.PatientCulturalProfile{}, events, start.Add(21*24*time.Hour))
	if features.AdherenceTrend >= 0 {
		t.Fatalf("expected negative trend, got %f", features.AdherenceTrend)
	}
	if features.AdherenceTrend < -1 {
		t.Fatalf("trend out of bounds: %f", features.AdherenceTrend)
	}
}

func TestMissedDoseClusterScore(t *testing.T) {
	// Three consecutive misses inside 36 hours.
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	statuses := append(repeat(models.StatusTaken, 5), repeat(models.StatusMissed, 3)...)
	events := doseEvery(start, 12*time.Hour, statuses)

	features := testExtractor().Extract(models.PatientCulturalProfile{}, events, start.Add(5*24*time.Hour))
	want := math.Exp(-1)
	if math.Abs(features.MissedDosePattern-want) > 1e-9 {
		t.Fatalf("expected exp(-1)=%f, got %f", want, features.MissedDosePattern)
	}
}

func TestMissedDoseClusterIgnoresWideGaps(t *testing.T) {
	// Two misses 5 days apart are not one cluster.
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	events := doseEvery(start, 5*24*time.Hour, []string{models.StatusMissed, models.StatusMissed})

	features := testExtractor().Extract(models.PatientCulturalProfile{}, events, start.Add(11*24*time.Hour))
	if features.MissedDosePattern != 1 {
		t.Fatalf("expected 1 for isolated misses, got %f", features.MissedDosePattern)
	}
}

func TestTimingConsistencyPerfectSchedule(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	events := doseEvery(start, 24*time.Hour, repeat(models.StatusTaken, 10))

	features := testExtractor().Extract(models.PatientCulturalProfile{}, events, start.Add(10*24*time.Hour))
	// Identical 5-minute delays: zero deviation, consistency exp(0)=1.
	if features.TimingConsistency != 1 {
		t.Fatalf("expected timing consistency 1, got %f", features.TimingConsistency)
	}
	if features.AverageDelayMinutes != 5 {
		t.Fatalf("expected average delay 5, got %f", features.AverageDelayMinutes)
	}
}

func TestReminderResponse(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	events := doseEvery(start, 24*time.Hour, []string{
		models.StatusTaken, models.StatusMissed, models.StatusTaken, models.StatusTaken,
	})
	for i := range events {
		events[i].ReminderSent = true
	}

	features := testExtractor().Extract(models.PatientCulturalProfile{}, events, start.Add(4*24*time.Hour))
	if features.ReminderResponse != 0.75 {
		t.Fatalf("expected reminder response 0.75, got %f", features.ReminderResponse)
	}
}

func TestFamilySupportUsesProfileCapacity(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	events := doseEvery(start, 24*time.Hour, repeat(models.StatusTaken, 4))

	alone := testExtractor().Extract(models.PatientCulturalProfile{}, events, start.Add(4*24*time.Hour))
	household := testExtractor().Extract(models.PatientCulturalProfile{
		Family: models.FamilyStructure{Size: 5},
	}, events, start.Add(4*24*time.Hour))

	if household.FamilySupportLevel <= alone.FamilySupportLevel {
		t.Fatalf("expected household capacity to lift support level: %f vs %f",
			household.FamilySupportLevel, alone.FamilySupportLevel)
	}
}

func TestWeekendRatioDetectsDrop(t *testing.T) {
	// Mondays through Fridays taken, Saturdays and Sundays missed, four weeks.
	start := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC) // a Monday
	var statuses []string
	for week := 0; week < 4; week++ {
		statuses = append(statuses, repeat(models.StatusTaken, 5)...)
		statuses = append(statuses, models.StatusMissed, models.StatusMissed)
	}
	events := doseEvery(start, 24*time.Hour, statuses)

	features := testExtractor().Extract(models.PatientCulturalProfile{}, events, start.Add(28*24*time.Hour))
	if features.WeekdayWeekendRatio != 0 {
		t.Fatalf("expected weekend ratio 0, got %f", features.WeekdayWeekendRatio)
	}
}

func TestEmptyHistoryFeatures(t *testing.T) {
	features := testExtractor().Extract(models.PatientCulturalProfile{}, nil, time.Now())
	if features.HistoricalAdherence != 0 {
		t.Fatalf("expected 0 historical adherence, got %f", features.HistoricalAdherence)
	}
	if features.AdherenceTrend != 0 {
		t.Fatalf("expected 0 trend, got %f", features.AdherenceTrend)
	}
	if features.TimingConsistency != 0.5 {
		t.Fatalf("expected neutral timing consistency, got %f", features.TimingConsistency)
	}
}
