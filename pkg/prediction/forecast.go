package prediction

import (
	"math/rand"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"github.com/sahaya-health/adherence-platform/pkg/cultural"
	"github.com/sahaya-health/adherence-platform/pkg/ml/linear"
)

// jitterSpread bounds the day-to-day noise added to the forecast, in score
// points either direction.
const jitterSpread = 3.0

// Forecaster produces the day-by-day adherence outlook. The random source
// is injected and seedable so forecasts reproduce in tests; this is a
// visualization aid rather than a guarantee.
type Forecaster struct {
	rng *rand.Rand
}

func NewForecaster(seed int64) *Forecaster {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Forecaster{rng: rand.New(rand.NewSource(seed))}
}

// Forecast projects the prediction forward. When the prediction carries a
// weekend-drop risk factor, weekend days are scaled down by its severity;
// days inside one of the supplied festival windows are scaled down the
// same way when a festival-disruption risk was detected.
func (f *Forecaster) Forecast(prediction models.AdherencePrediction, from time.Time, days int, festivals []cultural.Festival) []models.ForecastPoint {
	weekendScale := 1.0
	festivalScale := 1.0
	for _, risk := range prediction.RiskFactors {
		switch risk.Name {
		case "weekend_adherence_drop":
			weekendScale = 1 - 0.3*risk.Value
		case "festival_disruption":
			festivalScale = 1 - 0.3*risk.Value
		}
	}

	points := make([]models.ForecastPoint, 0, days)
	for day := 1; day <= days; day++ {
		date := from.Add(time.Duration(day) * 24 * time.Hour)
		weekend := date.Weekday() == time.Saturday || date.Weekday() == time.Sunday
		festival := inFestivalWindow(date, festivals)

		expected := prediction.PredictedAdherence
		if weekend {
			expected *= weekendScale
		}
		if festival {
			expected *= festivalScale
		}
		expected += (f.rng.Float64()*2 - 1) * jitterSpread

		points = append(points, models.ForecastPoint{
			Date:     date,
			Expected: linear.Clamp(expected, 0, 100),
			Weekend:  weekend,
			Festival: festival,
		})
	}
	return points
}

func inFestivalWindow(date time.Time, festivals []cultural.Festival) bool {
	for _, festival := range festivals {
		if !date.Before(festival.Start) && !date.After(festival.End) {
			return true
		}
	}
	return false
}
