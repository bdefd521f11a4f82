package prediction

import (
	"math"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/adherence"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/cultural"
	"github.com/sahaya-health/adherence-platform/pkg/ml/linear"
)

// FeatureVector is the scalar summary of a patient's dose history that the
// weighted model consumes. Ratios are in [0,1] except MorningEveningRatio,
// which ranges over [0,2]; AdherenceTrend is in [-1,1]; AverageDelayMinutes
// and DoseFrequency are raw magnitudes.
type FeatureVector struct {
	HistoricalAdherence  float64 `json:"historical_adherence"`
	RecentAdherence      float64 `json:"recent_adherence"`
	AdherenceTrend       float64 `json:"adherence_trend"`
	StreakStability      float64 `json:"streak_stability"`
	TimingConsistency    float64 `json:"timing_consistency"`
	AverageDelayMinutes  float64 `json:"average_delay_minutes"`
	MissedDosePattern    float64 `json:"missed_dose_pattern"`
	PrayerAlignment      float64 `json:"prayer_alignment"`
	FastingAdjustment    float64 `json:"fasting_adjustment"`
	FestivalImpact       float64 `json:"festival_impact"`
	CulturalComposite    float64 `json:"cultural_composite"`
	WeekdayWeekendRatio  float64 `json:"weekday_weekend_ratio"`
	MorningEveningRatio  float64 `json:"morning_evening_ratio"`
	ReminderResponse     float64 `json:"reminder_response"`
	MedicationComplexity float64 `json:"medication_complexity"`
	DoseFrequency        float64 `json:"dose_frequency"`
	FamilySupportLevel   float64 `json:"family_support_level"`
}

const (
	// trendMinSpan is the minimum history span required before the weekly
	// regression slope is trusted; anything shorter yields exactly 0.
	trendMinSpan = 14 * 24 * time.Hour

	// missGapTolerance bounds the scheduled-time gap under which missed
	// doses count as one consecutive run.
	missGapTolerance = 48 * time.Hour

	// timingDecayMinutes is the decay base for timing consistency.
	timingDecayMinutes = 60.0
)

// Extractor turns raw event history into a FeatureVector. The cultural
// scorer supplies the observation-layer ratios.
type Extractor struct {
	scorer *cultural.Scorer
}

func NewExtractor(scorer *cultural.Scorer) *Extractor {
	return &Extractor{scorer: scorer}
}

// Extract computes the full feature vector. asOf anchors the recency
// window; events must be in scheduled-time order.
func (x *Extractor) Extract(profile models.PatientCulturalProfile, events []models.AdherenceEvent, asOf time.Time) FeatureVector {
	obs := x.scorer.Observe(events)

	features := FeatureVector{
		HistoricalAdherence: adherence.Rate(events),
		AdherenceTrend:      adherenceTrend(events),
		StreakStability:     streakStability(events),
		MissedDosePattern:   missedDosePattern(events),
		PrayerAlignment:     obs.PrayerAlignment,
		FastingAdjustment:   obs.FastingAdjustment,
		FestivalImpact:      obs.FestivalImpact,
		CulturalComposite:   obs.Composite(),
		FamilySupportLevel:  familySupportLevel(profile, events),
	}
	features.RecentAdherence = recentAdherence(events, asOf, features.HistoricalAdherence)
	features.TimingConsistency, features.AverageDelayMinutes = timing(events)
	features.WeekdayWeekendRatio = weekdayWeekendRatio(events)
	features.MorningEveningRatio = morningEveningRatio(events)
	features.ReminderResponse = reminderResponse(events)
	features.MedicationComplexity, features.DoseFrequency = regimenComplexity(events)
	return features
}

func recentAdherence(events []models.AdherenceEvent, asOf time.Time, fallback float64) float64 {
	cutoff := asOf.Add(-7 * 24 * time.Hour)
	var recent []models.AdherenceEvent
	for _, event := range events {
		if !event.ScheduledTime.Before(cutoff) && !event.ScheduledTime.After(asOf) {
			recent = append(recent, event)
		}
	}
	if len(recent) == 0 {
		return fallback
	}
	return adherence.Rate(recent)
}

// adherenceTrend fits a least-squares slope over weekly adherence buckets
// and scales it to [-1,1]. Histories spanning under 14 days give no trend.
func adherenceTrend(events []models.AdherenceEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	first := events[0].ScheduledTime
	last := events[len(events)-1].ScheduledTime
	if last.Sub(first) < trendMinSpan {
		return 0
	}

	type bucket struct{ taken, total int }
	buckets := make(map[int]*bucket)
	for _, event := range events {
		week := int(event.ScheduledTime.Sub(first) / (7 * 24 * time.Hour))
		b, ok := buckets[week]
		if !ok {
			b = &bucket{}
			buckets[week] = b
		}
		b.total++
		if event.WasTaken() {
			b.taken++
		}
	}
	if len(buckets) < 2 {
		return 0
	}

	var xs, ys []float64
	maxWeek := 0
	for week := range buckets {
		if week > maxWeek {
			maxWeek = week
		}
	}
	for week := 0; week <= maxWeek; week++ {
		if b, ok := buckets[week]; ok {
			xs = append(xs, float64(week))
			ys = append(ys, float64(b.taken)/float64(b.total))
		}
	}

	// A slope of 0.1 adherence per week is already a strong move.
	return linear.Clamp(linear.Slope(xs, ys)*10, -1, 1)
}

// streakStability is the inverse of variance across historical streak
// lengths; a single long unbroken streak scores 1.
func streakStability(events []models.AdherenceEvent) float64 {
	lengths := adherence.StreakLengths(events)
	if len(lengths) == 0 {
		return 0
	}
	values := make([]float64, len(lengths))
	for i, l := range lengths {
		values[i] = float64(l)
	}
	return 1 / (1 + linear.Variance(values))
}

// timing returns consistency (exponential decay of delay stddev, base 60
// minutes) and the mean absolute delay.
func timing(events []models.AdherenceEvent) (float64, float64) {
	var delays []float64
	for _, event := range events {
		if event.TakenTime == nil {
			continue
		}
		delays = append(delays, math.Abs(event.TakenTime.Sub(event.ScheduledTime).Minutes()))
	}
	if len(delays) == 0 {
		return 0.5, 0
	}
	consistency := math.Exp(-linear.StdDev(delays) / timingDecayMinutes)
	return consistency, linear.Mean(delays)
}

// missedDosePattern decays with the longest run of near-consecutive
// misses: no misses scores 1, a three-dose cluster scores exp(-1).
func missedDosePattern(events []models.AdherenceEvent) float64 {
	var longest, run int
	var lastMiss time.Time
	for _, event := range events {
		if event.Status != models.StatusMissed {
			run = 0
			continue
		}
		if run > 0 && event.ScheduledTime.Sub(lastMiss) > missGapTolerance {
			run = 0
		}
		run++
		lastMiss = event.ScheduledTime
		if run > longest {
			longest = run
		}
	}
	if longest == 0 {
		return 1
	}
	return math.Exp(-float64(longest-1) / 2)
}

func weekdayWeekendRatio(events []models.AdherenceEvent) float64 {
	var weekday, weekend []models.AdherenceEvent
	for _, event := range events {
		switch event.ScheduledTime.Weekday() {
		case time.Saturday, time.Sunday:
			weekend = append(weekend, event)
		default:
			weekday = append(weekday, event)
		}
	}
	if len(weekend) == 0 || len(weekday) == 0 {
		return 1
	}
	weekdayRate := adherence.Rate(weekday)
	if weekdayRate == 0 {
		return 1
	}
	return linear.Clamp(adherence.Rate(weekend)/weekdayRate, 0, 1)
}

func morningEveningRatio(events []models.AdherenceEvent) float64 {
	var morning, evening []models.AdherenceEvent
	for _, event := range events {
		hour := event.ScheduledTime.Hour()
		switch {
		case hour < 12:
			morning = append(morning, event)
		case hour >= 17:
			evening = append(evening, event)
		}
	}
	if len(morning) == 0 || len(evening) == 0 {
		return 1
	}
	eveningRate := adherence.Rate(evening)
	if eveningRate == 0 {
		return 1
	}
	return linear.Clamp(adherence.Rate(morning)/eveningRate, 0, 2)
}

// reminderResponse is the fraction of reminded doses that were taken.
// With no reminders on record there is no signal either way.
func reminderResponse(events []models.AdherenceEvent) float64 {
	var reminded, responded int
	for _, event := range events {
		if !event.ReminderSent {
			continue
		}
		reminded++
		if event.WasTaken() {
			responded++
		}
	}
	if reminded == 0 {
		return 0.5
	}
	return float64(responded) / float64(reminded)
}

// regimenComplexity normalizes distinct-medication count times average
// daily dose count into [0,1], and also returns the raw doses-per-day.
func regimenComplexity(events []models.AdherenceEvent) (float64, float64) {
	if len(events) == 0 {
		return 0, 0
	}
	meds := make(map[string]struct{})
	for _, event := range events {
		meds[event.MedicationID] = struct{}{}
	}

	spanDays := events[len(events)-1].ScheduledTime.Sub(events[0].ScheduledTime).Hours()/24 + 1
	dosesPerDay := float64(len(events)) / spanDays
	complexity := linear.Clamp(float64(len(meds))*dosesPerDay/10, 0, 1)
	return complexity, dosesPerDay
}

// familySupportLevel blends observed family-assisted doses with the
// household capacity from the cultural profile: a large household that has
// not yet logged assistance still offers more support than living alone.
func familySupportLevel(profile models.PatientCulturalProfile, events []models.AdherenceEvent) float64 {
	householdFactor := linear.Clamp(float64(profile.Family.Size)/5, 0, 1)
	if len(events) == 0 {
		return 0.2 * householdFactor
	}
	var supported int
	for _, event := range events {
		if event.Cultural.FamilySupport {
			supported++
		}
	}
	observed := float64(supported) / float64(len(events))
	return linear.Clamp(0.8*observed+0.2*householdFactor, 0, 1)
}
