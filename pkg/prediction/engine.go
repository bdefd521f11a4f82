package prediction

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/ml/linear"
)

// Base model weights over the feature subset; they sum to 1 and scale the
// score to a 0-100 percentage.
var baseWeights = struct {
	historical, recent, trend, cultural, timing, family, reminder float64
}{
	historical: 0.25,
	recent:     0.20,
	trend:      0.15,
	cultural:   0.15,
	timing:     0.10,
	family:     0.08,
	reminder:   0.07,
}

// riskRule is one entry of the fixed risk checklist. Triggered rules lower
// the base prediction by weight*value*20 points each.
type riskRule struct {
	name        string
	weight      float64
	description string
	value       func(FeatureVector) float64 // > 0 means triggered, in [0,1]
}

func severity(threshold, actual float64) float64 {
	if actual >= threshold || threshold <= 0 {
		return 0
	}
	return linear.Clamp((threshold-actual)/threshold, 0, 1)
}

var riskRules = []riskRule{
	{
		name: "low_historical_adherence", weight: 0.9,
		description: "Overall adherence has been below 70%",
		value:       func(f FeatureVector) float64 { return severity(0.7, f.HistoricalAdherence) },
	},
	{
		name: "declining_trend", weight: 0.8,
		description: "Weekly adherence has been trending downward",
		value: func(f FeatureVector) float64 {
			if f.AdherenceTrend >= -0.1 {
				return 0
			}
			return linear.Clamp(-f.AdherenceTrend, 0, 1)
		},
	},
	{
		name: "inconsistent_timing", weight: 0.6,
		description: "Dose times vary widely from the schedule",
		value:       func(f FeatureVector) float64 { return severity(0.5, f.TimingConsistency) },
	},
	{
		name: "high_average_delay", weight: 0.5,
		description: "Doses are taken more than an hour late on average",
		value: func(f FeatureVector) float64 {
			if f.AverageDelayMinutes <= 60 {
				return 0
			}
			return linear.Clamp((f.AverageDelayMinutes-60)/120, 0, 1)
		},
	},
	{
		name: "poor_reminder_response", weight: 0.5,
		description: "Reminders rarely lead to a taken dose",
		value:       func(f FeatureVector) float64 { return severity(0.3, f.ReminderResponse) },
	},
	{
		name: "weekend_adherence_drop", weight: 0.6,
		description: "Weekend adherence falls well below weekday levels",
		value:       func(f FeatureVector) float64 { return severity(0.65, f.WeekdayWeekendRatio) },
	},
	{
		name: "complex_regimen", weight: 0.55,
		description: "The medication regimen is demanding to follow",
		value: func(f FeatureVector) float64 {
			if f.MedicationComplexity <= 0.7 {
				return 0
			}
			return linear.Clamp((f.MedicationComplexity-0.7)/0.3, 0, 1)
		},
	},
	{
		name: "prayer_time_conflicts", weight: 0.7,
		description: "Doses clashing with prayer times are often missed",
		value:       func(f FeatureVector) float64 { return severity(0.7, f.PrayerAlignment) },
	},
	{
		name: "festival_disruption", weight: 0.6,
		description: "Festival periods disrupt the dose schedule",
		value:       func(f FeatureVector) float64 { return severity(0.6, f.FestivalImpact) },
	},
	{
		name: "low_family_support", weight: 0.4,
		description: "Few doses involve family support",
		value:       func(f FeatureVector) float64 { return severity(0.2, f.FamilySupportLevel) },
	},
}

// actionCatalog maps a triggered risk factor to the concrete intervention
// suggested to the patient or caregiver.
var actionCatalog = map[string]models.Recommendation{
	"low_historical_adherence": {Action: "Simplify the daily routine with a pill organizer and fixed anchor times", Priority: "high", ExpectedImprovement: 12},
	"declining_trend":          {Action: "Schedule a check-in with the care team before the decline deepens", Priority: "high", ExpectedImprovement: 10},
	"inconsistent_timing":      {Action: "Anchor doses to stable daily routines such as meals", Priority: "medium", ExpectedImprovement: 8},
	"high_average_delay":       {Action: "Move reminders earlier to absorb the usual delay", Priority: "medium", ExpectedImprovement: 6},
	"poor_reminder_response":   {Action: "Switch reminder channel or involve a family member in follow-up", Priority: "medium", ExpectedImprovement: 7},
	"weekend_adherence_drop":   {Action: "Add weekend-specific reminders tied to weekend routines", Priority: "medium", ExpectedImprovement: 8},
	"complex_regimen":          {Action: "Review the regimen with the prescriber for consolidation options", Priority: "high", ExpectedImprovement: 10},
	"prayer_time_conflicts":    {Action: "Shift dose times outside prayer windows with clinical approval", Priority: "high", ExpectedImprovement: 9},
	"festival_disruption":      {Action: "Prepare a festival dosing plan before the next major festival", Priority: "medium", ExpectedImprovement: 7},
	"low_family_support":       {Action: "Invite a household member to share dose reminders", Priority: "low", ExpectedImprovement: 5},
}

// Engine converts a feature vector into a prediction. Purely functional
// per call; every stage is deterministic given the same input.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Predict runs the ordered stages: base prediction, risk detection,
// adjustment, recommendation generation and confidence scoring.
func (e *Engine) Predict(patientID, medicationID string, features FeatureVector, eventCount, basedOnDays int) models.AdherencePrediction {
	base := e.basePrediction(features)
	risks := e.detectRisks(features)

	adjusted := base
	for _, risk := range risks {
		adjusted -= risk.Impact * 20
	}
	adjusted = linear.Clamp(adjusted, 0, 100)

	if medicationID == "" {
		medicationID = "all"
	}
	return models.AdherencePrediction{
		ID:                 uuid.New(),
		PatientID:          patientID,
		MedicationID:       medicationID,
		PredictedAdherence: adjusted,
		Confidence:         e.confidence(features, eventCount),
		RiskFactors:        risks,
		Recommendations:    e.recommend(risks, adjusted, features),
		BasedOnDays:        basedOnDays,
		GeneratedAt:        time.Now().UTC(),
	}
}

func (e *Engine) basePrediction(f FeatureVector) float64 {
	// Trend lives in [-1,1]; shift to [0,1] so the weighted sum stays a
	// percentage.
	trendTerm := (f.AdherenceTrend + 1) / 2

	score := f.HistoricalAdherence*baseWeights.historical +
		f.RecentAdherence*baseWeights.recent +
		trendTerm*baseWeights.trend +
		f.CulturalComposite*baseWeights.cultural +
		f.TimingConsistency*baseWeights.timing +
		f.FamilySupportLevel*baseWeights.family +
		f.ReminderResponse*baseWeights.reminder
	return linear.Clamp(score*100, 0, 100)
}

func (e *Engine) detectRisks(features FeatureVector) []models.RiskFactor {
	var risks []models.RiskFactor
	for _, rule := range riskRules {
		value := rule.value(features)
		if value <= 0 {
			continue
		}
		risks = append(risks, models.RiskFactor{
			Name:        rule.name,
			Weight:      rule.weight,
			Value:       value,
			Impact:      rule.weight * value,
			Description: rule.description,
		})
	}
	sort.Slice(risks, func(i, j int) bool { return risks[i].Impact > risks[j].Impact })
	return risks
}

func (e *Engine) recommend(risks []models.RiskFactor, predicted float64, features FeatureVector) []models.Recommendation {
	var recs []models.Recommendation
	seen := make(map[string]struct{})

	for i, risk := range risks {
		if i == 3 {
			break
		}
		if rec, ok := actionCatalog[risk.Name]; ok {
			recs = append(recs, rec)
			seen[risk.Name] = struct{}{}
		}
	}

	// Generic fallbacks when the outlook is poor and the obvious support
	// levers are weak.
	if predicted < 70 {
		if features.FamilySupportLevel < 0.4 {
			if _, ok := seen["low_family_support"]; !ok {
				recs = append(recs, actionCatalog["low_family_support"])
			}
		}
		if features.ReminderResponse < 0.5 {
			if _, ok := seen["poor_reminder_response"]; !ok {
				recs = append(recs, actionCatalog["poor_reminder_response"])
			}
		}
	}
	return recs
}

func (e *Engine) confidence(features FeatureVector, eventCount int) float64 {
	confidence := 0.5

	switch {
	case eventCount > 100:
		confidence += 0.20
	case eventCount > 50:
		confidence += 0.15
	case eventCount > 20:
		confidence += 0.10
	case eventCount > 10:
		confidence += 0.05
	}

	if features.TimingConsistency > 0.7 {
		confidence += 0.10
	}
	if math.Abs(features.AdherenceTrend) < 0.1 {
		confidence += 0.05
	}
	if features.StreakStability < 0.3 {
		confidence -= 0.10
	}
	return linear.Clamp(confidence, 0.1, 0.95)
}
