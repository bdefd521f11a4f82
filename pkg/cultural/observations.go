package cultural

import "github.com/sahaya-health/adherence-platform/pkg/common/models"

// Observations are the cultural ratios fed into prediction feature
// extraction. Each value is in [0,1]; components with no signal fall back
// to the policy's neutral alignment default.
type Observations struct {
	PrayerAlignment   float64 `json:"prayer_alignment"`
	FastingAdjustment float64 `json:"fasting_adjustment"`
	FestivalImpact    float64 `json:"festival_impact"`
}

// Observe derives the cultural feature ratios from raw events.
func (s *Scorer) Observe(events []models.AdherenceEvent) Observations {
	neutral := s.policy.Defaults.ObservationAlignment
	obs := Observations{
		PrayerAlignment:   neutral,
		FastingAdjustment: neutral,
		FestivalImpact:    neutral,
	}

	var prayer, prayerKept int
	var fasting, fastingKept int
	var festival, festivalOK int
	for _, event := range events {
		if event.Cultural.PrayerTimeConflict {
			prayer++
			if s.accommodated(event) {
				prayerKept++
			}
		}
		if event.Cultural.FastingPeriod {
			fasting++
			if s.accommodated(event) {
				fastingKept++
			}
		}
		if event.Cultural.FestivalPeriod != "" {
			festival++
			if s.festivalCompliant(event) {
				festivalOK++
			}
		}
	}

	if prayer > 0 {
		obs.PrayerAlignment = ratio(prayerKept, prayer)
	}
	if fasting > 0 {
		obs.FastingAdjustment = ratio(fastingKept, fasting)
	}
	if festival > 0 {
		obs.FestivalImpact = ratio(festivalOK, festival)
	}
	return obs
}

// Composite folds the three observation ratios into the single cultural
// feature used by the base prediction weights.
func (o Observations) Composite() float64 {
	return (o.PrayerAlignment + o.FastingAdjustment + o.FestivalImpact) / 3
}
