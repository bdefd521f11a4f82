package cultural

import (
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/ml/linear"
)

// Scorer computes a patient's cultural-alignment score from their dose
// history and cultural profile. Pure per call; the policy tables are the
// only state.
type Scorer struct {
	policy ScoringPolicy
}

func NewScorer(policy ScoringPolicy) *Scorer {
	return &Scorer{policy: policy}
}

// Score runs the fixed scoring pipeline: five component scores, weighted
// sum, bonus points, penalty points, clamp, recommendations.
func (s *Scorer) Score(profile models.PatientCulturalProfile, events []models.AdherenceEvent) models.CulturalScore {
	components := models.CulturalComponentScores{
		ReligiousAlignment:    s.religiousAlignment(profile, events),
		FestivalAccommodation: s.festivalAccommodation(events),
		FamilyIntegration:     s.familyIntegration(profile, events),
		TraditionalHarmony:    s.traditionalHarmony(profile, events),
		CulturalSensitivity:   s.culturalSensitivity(profile, events),
	}

	weighted := components.ReligiousAlignment*s.policy.Weights.Religious +
		components.FestivalAccommodation*s.policy.Weights.Festival +
		components.FamilyIntegration*s.policy.Weights.Family +
		components.TraditionalHarmony*s.policy.Weights.Traditional +
		components.CulturalSensitivity*s.policy.Weights.Sensitivity

	bonus := s.bonusPoints(events)
	penalty := s.penaltyPoints(events)

	return models.CulturalScore{
		PatientID:       profile.PatientID,
		OverallScore:    linear.Clamp(weighted+bonus-penalty, 0, 100),
		Components:      components,
		BonusPoints:     bonus,
		PenaltyPoints:   penalty,
		Recommendations: s.recommendations(components),
		GeneratedAt:     time.Now().UTC(),
	}
}

func hasReligiousObservance(profile models.PatientCulturalProfile) bool {
	return profile.Religion != "" && profile.ObservanceLevel != "" && profile.ObservanceLevel != "none"
}

// accommodated reports whether a religiously-flagged dose was still taken:
// on time, or late within the accommodation window.
func (s *Scorer) accommodated(event models.AdherenceEvent) bool {
	switch event.Status {
	case models.StatusTaken:
		return true
	case models.StatusLate:
		if event.TakenTime == nil {
			return false
		}
		window := time.Duration(s.policy.AccommodationWindowMinutes) * time.Minute
		return event.TakenTime.Sub(event.ScheduledTime) <= window
	}
	return false
}

func (s *Scorer) religiousAlignment(profile models.PatientCulturalProfile, events []models.AdherenceEvent) float64 {
	if !hasReligiousObservance(profile) {
		return s.policy.Defaults.Religious
	}

	var flagged, kept int
	for _, event := range events {
		if !event.Cultural.PrayerTimeConflict && !event.Cultural.FastingPeriod {
			continue
		}
		flagged++
		if s.accommodated(event) {
			kept++
		}
	}

	if flagged == 0 {
		return s.policy.Defaults.Religious
	}
	if flagged < s.policy.MinReligiousSample {
		return s.policy.Defaults.ReligiousSparse
	}
	return float64(kept) / float64(flagged) * 100
}

// festivalCompliant treats a dose skipped during a recognized major
// festival as accommodation, not a failure.
func (s *Scorer) festivalCompliant(event models.AdherenceEvent) bool {
	if event.WasTaken() {
		return true
	}
	return event.Status == models.StatusSkipped && s.policy.IsMajorFestival(event.Cultural.FestivalPeriod)
}

func (s *Scorer) festivalAccommodation(events []models.AdherenceEvent) float64 {
	var total, compliant int
	for _, event := range events {
		if event.Cultural.FestivalPeriod == "" {
			continue
		}
		total++
		if s.festivalCompliant(event) {
			compliant++
		}
	}
	if total == 0 {
		return s.policy.Defaults.Festival
	}
	return float64(compliant) / float64(total) * 100
}

func (s *Scorer) familyIntegration(profile models.PatientCulturalProfile, events []models.AdherenceEvent) float64 {
	if len(events) == 0 {
		return s.policy.Defaults.FamilyBase
	}

	var supported int
	for _, event := range events {
		if event.Cultural.FamilySupport {
			supported++
		}
	}
	if supported == 0 {
		return s.policy.Defaults.FamilyBase
	}

	ratio := float64(supported) / float64(len(events))
	sizeFactor := linear.Clamp(float64(profile.Family.Size)/4.0, 0.5, 1.25)
	score := s.policy.Defaults.FamilyBase + ratio*s.policy.FamilySupportScale*sizeFactor
	if profile.Family.ElderlyPresent {
		score += s.policy.ElderlyPresenceBonus
	}
	return linear.Clamp(score, 0, 100)
}

func (s *Scorer) traditionalHarmony(profile models.PatientCulturalProfile, events []models.AdherenceEvent) float64 {
	if !profile.UsesTraditionalMedicine {
		return s.policy.Defaults.TraditionalNonUser
	}

	var flagged, harmonized int
	for _, event := range events {
		if !event.Cultural.TraditionalMedicineUsed {
			continue
		}
		flagged++
		// Harmony requires the dose explicitly taken plus a coordination
		// note from the patient or caregiver.
		if event.WasTaken() && event.Note != "" {
			harmonized++
		}
	}
	if flagged == 0 {
		return s.policy.Defaults.TraditionalNoSignal
	}
	return float64(harmonized) / float64(flagged) * 100
}

func (s *Scorer) culturalSensitivity(profile models.PatientCulturalProfile, events []models.AdherenceEvent) float64 {
	score := s.policy.Defaults.SensitivityBase

	// The match bonus requires the preferred language to be one the care
	// program actually delivers in, not merely a recorded preference.
	if s.policy.SupportsLanguage(profile.PreferredLanguage) {
		score += s.policy.LanguageMatchBonus
	}

	codes := make(map[string]struct{})
	for _, event := range events {
		if event.Cultural.ReasonCode != "" {
			codes[event.Cultural.ReasonCode] = struct{}{}
		}
	}
	if len(codes) > 0 {
		score += s.policy.ReasonCodeBonus
		diversity := s.policy.ReasonDiversityStep * float64(len(codes))
		if diversity > s.policy.ReasonDiversityCap {
			diversity = s.policy.ReasonDiversityCap
		}
		score += diversity
	}
	return linear.Clamp(score, 0, 100)
}

func (s *Scorer) bonusPoints(events []models.AdherenceEvent) float64 {
	var bonus float64

	var fasting, fastingKept int
	var prayer, prayerKept int
	var supported int
	var festival, festivalOK int
	for _, event := range events {
		if event.Cultural.FastingPeriod {
			fasting++
			if s.accommodated(event) {
				fastingKept++
			}
		}
		if event.Cultural.PrayerTimeConflict {
			prayer++
			if s.accommodated(event) {
				prayerKept++
			}
		}
		if event.Cultural.FamilySupport {
			supported++
		}
		if event.Cultural.FestivalPeriod != "" {
			festival++
			if s.festivalCompliant(event) {
				festivalOK++
			}
		}
	}

	if rule := s.policy.Bonuses.RamadanSuccess; fasting >= rule.MinEvents && ratio(fastingKept, fasting) >= rule.MinRatio {
		bonus += rule.Points
	}
	if rule := s.policy.Bonuses.FamilyCoordination; len(events) >= rule.MinEvents && ratio(supported, len(events)) >= rule.MinRatio {
		bonus += rule.Points
	}
	if rule := s.policy.Bonuses.PrayerAccommodation; prayer >= rule.MinEvents && ratio(prayerKept, prayer) >= rule.MinRatio {
		bonus += rule.Points
	}
	if rule := s.policy.Bonuses.FestivalRespect; festival >= rule.MinEvents && ratio(festivalOK, festival) >= rule.MinRatio {
		bonus += rule.Points
	}
	return bonus
}

func (s *Scorer) penaltyPoints(events []models.AdherenceEvent) float64 {
	var penalty float64
	for _, event := range events {
		if event.Status != models.StatusMissed {
			continue
		}
		if event.Cultural.PrayerTimeConflict || event.Cultural.FastingPeriod || event.Cultural.FestivalPeriod != "" {
			penalty += s.policy.Penalties.ReligiousWindowMiss
		}
		if event.Cultural.TraditionalMedicineUsed {
			penalty += s.policy.Penalties.TraditionalMiss
		}
	}
	return penalty
}

func (s *Scorer) recommendations(components models.CulturalComponentScores) []string {
	values := map[string]float64{
		"religious":   components.ReligiousAlignment,
		"festival":    components.FestivalAccommodation,
		"family":      components.FamilyIntegration,
		"traditional": components.TraditionalHarmony,
		"sensitivity": components.CulturalSensitivity,
	}

	var recs []string
	for _, rule := range s.policy.RecommendationRules {
		if value, ok := values[rule.Component]; ok && value < rule.Threshold {
			recs = append(recs, rule.Message)
		}
	}
	return recs
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
