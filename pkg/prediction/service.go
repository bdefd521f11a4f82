package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/adherence"
	"github.com/sahaya-health/adherence-platform/pkg/common/logger"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/cultural"
)

// historyWindow bounds how far back the engine reads dose history when
// building features.
const historyWindow = 90 * 24 * time.Hour

// EventSource is the adherence record store contract. CountSince backs the
// cache staleness check for events that arrive outside the bus-driven
// invalidation path.
type EventSource interface {
	ListByPatient(ctx context.Context, patientID, medicationID string, start, end time.Time) ([]models.AdherenceEvent, error)
	CountSince(ctx context.Context, patientID, medicationID string, since time.Time) (int64, error)
}

// ProfileSource is the cultural profile store contract.
type ProfileSource interface {
	Get(ctx context.Context, patientID string) (models.PatientCulturalProfile, error)
}

// ResultPublisher emits engine events for downstream consumers. Publishing
// is best-effort; a bus failure never fails the prediction.
type ResultPublisher interface {
	PublishDoseEvent(ctx context.Context, eventType, patientID, medicationID string, metadata map[string]string) error
}

// Service orchestrates the prediction pipeline: cache check, data fetch,
// feature extraction, model evaluation, cache write.
type Service struct {
	events     EventSource
	profiles   ProfileSource
	extractor  *Extractor
	engine     *Engine
	forecaster *Forecaster
	cache      Cache
	publisher  ResultPublisher
	calendar   cultural.CalendarService
	now        func() time.Time
}

func NewService(events EventSource, profiles ProfileSource, scorer *cultural.Scorer, cache Cache, forecaster *Forecaster, publisher ResultPublisher) *Service {
	return &Service{
		events:     events,
		profiles:   profiles,
		extractor:  NewExtractor(scorer),
		engine:     NewEngine(),
		forecaster: forecaster,
		cache:      cache,
		publisher:  publisher,
		now:        time.Now,
	}
}

// WithCalendar attaches the external cultural calendar so forecasts can
// damp days falling inside upcoming festival windows. Without one,
// forecasts cover weekend effects only.
func (s *Service) WithCalendar(calendar cultural.CalendarService) *Service {
	s.calendar = calendar
	return s
}

// Predict returns the cached prediction when still fresh, otherwise
// recomputes and overwrites the cache entry. A concurrent recompute of the
// same stale key is an acceptable race: the computation is pure and both
// writers store the same logical result.
func (s *Service) Predict(ctx context.Context, patientID, medicationID string) (models.AdherencePrediction, error) {
	asOf := s.now().UTC()
	req := adherence.PeriodRequest{
		PatientID:    patientID,
		MedicationID: medicationID,
		Start:        asOf.Add(-historyWindow),
		End:          asOf,
	}
	if err := req.Validate(); err != nil {
		return models.AdherencePrediction{}, err
	}

	if cached, err := s.cache.Get(ctx, patientID, medicationID); err == nil {
		// A fresh entry is only trusted while no event has been recorded
		// since generation; events that bypassed the bus force a recompute.
		newEvents, countErr := s.events.CountSince(ctx, patientID, medFilter(medicationID), cached.GeneratedAt)
		if countErr != nil {
			logger.WithPatient(patientID).WithError(countErr).Warn("cache staleness check failed, recomputing")
		} else if newEvents == 0 {
			return cached, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		logger.WithPatient(patientID).WithError(err).Warn("prediction cache read failed, recomputing")
	}

	prediction, err := s.compute(ctx, req, asOf)
	if err != nil {
		return models.AdherencePrediction{}, err
	}

	if err := s.cache.Set(ctx, prediction); err != nil {
		logger.WithPatient(patientID).WithError(err).Warn("prediction cache write failed")
	}
	s.publish(ctx, prediction)
	return prediction, nil
}

// Forecast projects the patient's prediction forward day by day. A
// configured calendar supplies the festival windows over the horizon; a
// provider failure surfaces to the caller rather than yielding a forecast
// that silently ignores festivals.
func (s *Service) Forecast(ctx context.Context, patientID, medicationID string, days int) ([]models.ForecastPoint, error) {
	if err := adherence.ValidateDays(days); err != nil {
		return nil, err
	}
	prediction, err := s.Predict(ctx, patientID, medicationID)
	if err != nil {
		return nil, err
	}

	from := s.now().UTC()
	var festivals []cultural.Festival
	if s.calendar != nil {
		festivals, err = s.calendar.UpcomingFestivals(ctx, from, days)
		if err != nil {
			return nil, fmt.Errorf("festival calendar lookup: %w", err)
		}
	}
	return s.forecaster.Forecast(prediction, from, days, festivals), nil
}

// Invalidate drops the cached prediction for a key, forcing the next call
// to recompute. Driven by the dose-event stream and by explicit API calls.
func (s *Service) Invalidate(ctx context.Context, patientID, medicationID string) error {
	if err := s.cache.Invalidate(ctx, patientID, medicationID); err != nil {
		return fmt.Errorf("cache invalidation failed: %w", err)
	}
	// A patient-wide prediction also covers this medication.
	if medicationID != "" && medicationID != "all" {
		if err := s.cache.Invalidate(ctx, patientID, "all"); err != nil {
			return fmt.Errorf("cache invalidation failed: %w", err)
		}
	}
	return nil
}

func (s *Service) compute(ctx context.Context, req adherence.PeriodRequest, asOf time.Time) (models.AdherencePrediction, error) {
	events, err := s.events.ListByPatient(ctx, req.PatientID, medFilter(req.MedicationID), req.Start, req.End)
	if err != nil {
		return models.AdherencePrediction{}, fmt.Errorf("event history fetch: %w", err)
	}

	// A patient without a stored profile is scored with neutral cultural
	// defaults; an unavailable profile store is a hard failure.
	profile, err := s.profiles.Get(ctx, req.PatientID)
	if err != nil {
		if !errors.Is(err, cultural.ErrProfileNotFound) {
			return models.AdherencePrediction{}, fmt.Errorf("cultural profile fetch: %w", err)
		}
		profile = models.PatientCulturalProfile{PatientID: req.PatientID}
	}

	features := s.extractor.Extract(profile, events, asOf)
	basedOnDays := 0
	if len(events) > 0 {
		span := events[len(events)-1].ScheduledTime.Sub(events[0].ScheduledTime)
		basedOnDays = int(span.Hours()/24) + 1
	}

	return s.engine.Predict(req.PatientID, req.MedicationID, features, len(events), basedOnDays), nil
}

func (s *Service) publish(ctx context.Context, prediction models.AdherencePrediction) {
	if s.publisher == nil {
		return
	}
	metadata := map[string]string{
		"predicted_adherence": fmt.Sprintf("%.1f", prediction.PredictedAdherence),
		"confidence":          fmt.Sprintf("%.2f", prediction.Confidence),
	}
	if err := s.publisher.PublishDoseEvent(ctx, "prediction.generated", prediction.PatientID, prediction.MedicationID, metadata); err != nil {
		logger.WithPatient(prediction.PatientID).WithError(err).Warn("failed to publish prediction event")
	}
}

func medFilter(medicationID string) string {
	if medicationID == "all" {
		return ""
	}
	return medicationID
}
