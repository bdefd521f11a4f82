package adherence

import (
	"testing"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/models"
)

func makeEvents(statuses ...string) []models.AdherenceEvent {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	events := make([]models.AdherenceEvent, 0, len(statuses))
	for i, status := range statuses {
		scheduled := base.Add(time.Duration(i) * 24 * time.Hour)
		event := models.AdherenceEvent{
			PatientID:     "p1",
			MedicationID:  "m1",
			ScheduledTime: scheduled,
			Status:        status,
		}
		if status == models.StatusTaken || status == models.StatusLate {
			taken := scheduled.Add(10 * time.Minute)
			event.TakenTime = &taken
		}
		events = append(events, event)
	}
	return events
}

func TestRateEmptySetIsZero(t *testing.T) {
	if rate := Rate(nil); rate != 0 {
		t.Fatalf("expected 0 for empty set, got %f", rate)
	}
	if rate := Rate([]models.AdherenceEvent{}); rate != 0 {
		t.Fatalf("expected 0 for empty slice, got %f", rate)
	}
}

func TestRateAllTaken(t *testing.T) {
	events := makeEvents(
		models.StatusTaken, models.StatusTaken, models.StatusTaken, models.StatusTaken,
		models.StatusTaken, models.StatusTaken, models.StatusTaken, models.StatusTaken,
		models.StatusTaken, models.StatusTaken,
	)
	if rate := Rate(events); rate != 1.0 {
		t.Fatalf("expected 1.0, got %f", rate)
	}
}

func TestRateCountsLateAsTaken(t *testing.T) {
	events := makeEvents(models.StatusTaken, models.StatusLate, models.StatusMissed, models.StatusSkipped)
	if rate := Rate(events); rate != 0.5 {
		t.Fatalf("expected 0.5, got %f", rate)
	}
}

func TestProgressStreaks(t *testing.T) {
	events := makeEvents(
		models.StatusTaken, models.StatusTaken, models.StatusMissed,
		models.StatusTaken, models.StatusLate, models.StatusTaken,
	)
	metrics := Progress("p1", "m1", events, events[0].ScheduledTime, events[len(events)-1].ScheduledTime.Add(24*time.Hour))

	if metrics.LongestStreak != 3 {
		t.Fatalf("expected longest streak 3, got %d", metrics.LongestStreak)
	}
	if metrics.CurrentStreak != 3 {
		t.Fatalf("expected current streak 3, got %d", metrics.CurrentStreak)
	}
	if metrics.TakenCount != 4 || metrics.LateCount != 1 || metrics.MissedCount != 1 {
		t.Fatalf("unexpected counts: %+v", metrics)
	}
}

func TestProgressSkippedDoesNotBreakStreak(t *testing.T) {
	events := makeEvents(models.StatusTaken, models.StatusSkipped, models.StatusTaken)
	metrics := Progress("p1", "m1", events, events[0].ScheduledTime, events[2].ScheduledTime.Add(24*time.Hour))
	if metrics.LongestStreak != 2 {
		t.Fatalf("expected skipped dose to leave streak intact, got %d", metrics.LongestStreak)
	}
}

func TestProgressCulturalAdjustments(t *testing.T) {
	events := makeEvents(models.StatusTaken, models.StatusLate, models.StatusSkipped, models.StatusTaken)
	events[0].Cultural.PrayerTimeConflict = true
	events[1].Cultural.FastingPeriod = true
	events[2].Cultural.FestivalPeriod = "diwali"
	events[3].Cultural.FamilySupport = true

	metrics := Progress("p1", "m1", events, events[0].ScheduledTime, events[3].ScheduledTime.Add(24*time.Hour))
	adj := metrics.Adjustments
	if adj.PrayerConflictTaken != 1 || adj.FastingPeriodTaken != 1 || adj.FestivalSkipsHonored != 1 || adj.FamilyAssistedDoses != 1 {
		t.Fatalf("unexpected adjustments: %+v", adj)
	}
}

func TestStreakLengths(t *testing.T) {
	events := makeEvents(
		models.StatusTaken, models.StatusTaken, models.StatusMissed,
		models.StatusTaken, models.StatusMissed, models.StatusTaken,
	)
	lengths := StreakLengths(events)
	if len(lengths) != 3 || lengths[0] != 2 || lengths[1] != 1 || lengths[2] != 1 {
		t.Fatalf("unexpected streak lengths: %v", lengths)
	}
}

func TestPeriodRequestValidation(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		req  PeriodRequest
		ok   bool
	}{
		{"valid", PeriodRequest{PatientID: "p1", Start: now.Add(-time.Hour), End: now}, true},
		{"missing patient", PeriodRequest{Start: now.Add(-time.Hour), End: now}, false},
		{"zero start", PeriodRequest{PatientID: "p1", End: now}, false},
		{"reversed", PeriodRequest{PatientID: "p1", Start: now, End: now.Add(-time.Hour)}, false},
	}
	for _, tc := range cases {
		err := tc.req.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			if !IsValidationError(err) {
				t.Fatalf("%s: expected validation error kind, got %v", tc.name, err)
			}
		}
	}
}
