package prediction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/logger"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/cultural"
)

type stubEvents struct {
	events     []models.AdherenceEvent
	err        error
	calls      int
	newerCount int64
}

func (s *stubEvents) ListByPatient(ctx context.Context, patientID, medicationID string, start, end time.Time) ([]models.AdherenceEvent, error) {
	s.calls++
	return s.events, s.err
}

func (s *stubEvents) CountSince(ctx context.Context, patientID, medicationID string, since time.Time) (int64, error) {
	return s.newerCount, nil
}

type stubCalendar struct {
	festivals []cultural.Festival
	err       error
}

func (s *stubCalendar) IsRamadan(ctx context.Context, date time.Time) (bool, error) {
	return false, s.err
}

func (s *stubCalendar) IsFastingPeriod(ctx context.Context, date time.Time) (bool, error) {
	return false, s.err
}

func (s *stubCalendar) UpcomingFestivals(ctx context.Context, date time.Time, daysAhead int) ([]cultural.Festival, error) {
	return s.festivals, s.err
}

func (s *stubCalendar) PrayerTimes(ctx context.Context, date time.Time, location models.Location) ([]cultural.PrayerTime, error) {
	return nil, s.err
}

type stubProfiles struct {
	profile models.PatientCulturalProfile
	err     error
}

func (s *stubProfiles) Get(ctx context.Context, patientID string) (models.PatientCulturalProfile, error) {
	if s.err != nil {
		return models.PatientCulturalProfile{}, s.err
	}
	return s.profile, nil
}

func newTestService(events *stubEvents, profiles *stubProfiles) *Service {
	logger.Init()
	scorer := cultural.NewScorer(cultural.DefaultPolicy())
	return NewService(events, profiles, scorer, NewMemoryCache(24*time.Hour), NewForecaster(42), nil)
}

func historyOfTaken(n int) []models.AdherenceEvent {
	start := time.Now().UTC().Add(-time.Duration(n) * 24 * time.Hour)
	var events []models.AdherenceEvent
	for i := 0; i < n; i++ {
		scheduled := start.Add(time.Duration(i) * 24 * time.Hour)
		taken := scheduled.Add(5 * time.Minute)
		events = append(events, models.AdherenceEvent{
			PatientID:     "p1",
			MedicationID:  "m1",
			ScheduledTime: scheduled,
			TakenTime:     &taken,
			Status:        models.StatusTaken,
		})
	}
	return events
}

func TestPredictCacheIdempotence(t *testing.T) {
	events := &stubEvents{events: historyOfTaken(30)}
	service := newTestService(events, &stubProfiles{})

	first, err := service.Predict(context.Background(), "p1", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.Predict(context.Background(), "p1", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !first.GeneratedAt.Equal(second.GeneratedAt) || first.ID != second.ID {
		t.Fatal("expected the second call inside the freshness window to return the cached prediction")
	}
	if events.calls != 1 {
		t.Fatalf("expected a single event fetch, got %d", events.calls)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	events := &stubEvents{events: historyOfTaken(30)}
	service := newTestService(events, &stubProfiles{})
	ctx := context.Background()

	first, err := service.Predict(ctx, "p1", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := service.Invalidate(ctx, "p1", "m1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	second, err := service.Predict(ctx, "p1", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.GeneratedAt.Equal(first.GeneratedAt) {
		t.Fatal("expected a fresh generation timestamp after invalidation")
	}
	// Identical history: the prediction itself should not move.
	if second.PredictedAdherence != first.PredictedAdherence {
		t.Fatalf("expected unchanged prediction, got %f vs %f",
			second.PredictedAdherence, first.PredictedAdherence)
	}
}

func TestUpstreamEventFailurePropagates(t *testing.T) {
	storeErr := errors.New("event store timeout")
	service := newTestService(&stubEvents{err: storeErr}, &stubProfiles{})

	_, err := service.Predict(context.Background(), "p1", "m1")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestMissingProfileUsesNeutralDefaults(t *testing.T) {
	service := newTestService(&stubEvents{events: historyOfTaken(20)}, &stubProfiles{err: cultural.ErrProfileNotFound})

	prediction, err := service.Predict(context.Background(), "p1", "m1")
	if err != nil {
		t.Fatalf("missing profile must not fail the prediction: %v", err)
	}
	if prediction.PredictedAdherence <= 0 {
		t.Fatalf("expected a usable prediction, got %f", prediction.PredictedAdherence)
	}
}

func TestProfileStoreFailurePropagates(t *testing.T) {
	profileErr := errors.New("profile service unavailable")
	service := newTestService(&stubEvents{events: historyOfTaken(20)}, &stubProfiles{err: profileErr})

	_, err := service.Predict(context.Background(), "p1", "m1")
	if !errors.Is(err, profileErr) {
		t.Fatalf("expected wrapped profile error, got %v", err)
	}
}

func TestPredictValidatesPatientID(t *testing.T) {
	service := newTestService(&stubEvents{}, &stubProfiles{})
	_, err := service.Predict(context.Background(), "", "m1")
	if err == nil {
		t.Fatal("expected validation error for empty patient id")
	}
}

func TestForecastValidatesDays(t *testing.T) {
	service := newTestService(&stubEvents{events: historyOfTaken(20)}, &stubProfiles{})
	if _, err := service.Forecast(context.Background(), "p1", "m1", 0); err == nil {
		t.Fatal("expected validation error for zero days")
	}
	if _, err := service.Forecast(context.Background(), "p1", "m1", 91); err == nil {
		t.Fatal("expected validation error for out-of-range days")
	}
	points, err := service.Forecast(context.Background(), "p1", "m1", 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 14 {
		t.Fatalf("expected 14 forecast points, got %d", len(points))
	}
}

func TestNewDosesInvalidateCachedPrediction(t *testing.T) {
	events := &stubEvents{events: historyOfTaken(30)}
	service := newTestService(events, &stubProfiles{})
	ctx := context.Background()

	first, err := service.Predict(ctx, "p1", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Doses recorded after the cached prediction make it stale even
	// inside the freshness window.
	events.newerCount = 1
	second, err := service.Predict(ctx, "p1", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.GeneratedAt.Equal(first.GeneratedAt) {
		t.Fatal("expected a recompute once newer doses exist")
	}
	if events.calls != 2 {
		t.Fatalf("expected a second event fetch, got %d", events.calls)
	}
}

func TestForecastPropagatesCalendarFailure(t *testing.T) {
	events := &stubEvents{events: historyOfTaken(20)}
	service := newTestService(events, &stubProfiles{}).
		WithCalendar(&stubCalendar{err: cultural.ErrProviderUnavailable})

	_, err := service.Forecast(context.Background(), "p1", "m1", 14)
	if !errors.Is(err, cultural.ErrProviderUnavailable) {
		t.Fatalf("expected calendar unavailability to surface, got %v", err)
	}
}

func TestForecastMarksFestivalDays(t *testing.T) {
	events := &stubEvents{events: historyOfTaken(20)}
	start := time.Now().UTC().Add(24 * time.Hour)
	service := newTestService(events, &stubProfiles{}).
		WithCalendar(&stubCalendar{festivals: []cultural.Festival{
			{Name: "Diwali", Start: start, End: start.Add(48 * time.Hour), Major: true},
		}})

	points, err := service.Forecast(context.Background(), "p1", "m1", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flagged := 0
	for _, point := range points {
		if point.Festival {
			flagged++
		}
	}
	if flagged == 0 {
		t.Fatal("expected at least one forecast day inside the festival window")
	}
	if flagged == len(points) {
		t.Fatal("expected days outside the festival window to stay unflagged")
	}
}
