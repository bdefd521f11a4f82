package cultural

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidPolicy = errors.New("invalid cultural policy")

// ComponentWeights weight the five component scores into the overall score.
// They must be non-negative and sum to 1.
type ComponentWeights struct {
	Religious   float64 `yaml:"religious"`
	Festival    float64 `yaml:"festival"`
	Family      float64 `yaml:"family"`
	Traditional float64 `yaml:"traditional"`
	Sensitivity float64 `yaml:"sensitivity"`
}

// BonusRule awards fixed points when a threshold condition holds over the
// event set.
type BonusRule struct {
	Points    float64 `yaml:"points"`
	MinEvents int     `yaml:"min_events"`
	MinRatio  float64 `yaml:"min_ratio"`
}

type BonusTable struct {
	RamadanSuccess      BonusRule `yaml:"ramadan_success"`
	FamilyCoordination  BonusRule `yaml:"family_coordination"`
	PrayerAccommodation BonusRule `yaml:"prayer_accommodation"`
	FestivalRespect     BonusRule `yaml:"festival_respect"`
}

type PenaltyTable struct {
	ReligiousWindowMiss float64 `yaml:"religious_window_miss"` // points per miss
	TraditionalMiss     float64 `yaml:"traditional_miss"`      // points per miss
}

// Defaults applied when a component has no signal to score against.
type NeutralDefaults struct {
	Religious            float64 `yaml:"religious"`             // no religious observance, or no flagged events
	ReligiousSparse      float64 `yaml:"religious_sparse"`      // flagged events exist but too few to judge
	Festival             float64 `yaml:"festival"`              // no festival-period events
	FamilyBase           float64 `yaml:"family_base"`           // no family-supported events
	TraditionalNonUser   float64 `yaml:"traditional_non_user"`  // patient reports no traditional medicine
	TraditionalNoSignal  float64 `yaml:"traditional_no_signal"` // user but no flagged events
	SensitivityBase      float64 `yaml:"sensitivity_base"`
	ObservationAlignment float64 `yaml:"observation_alignment"` // prayer/fasting/festival feature default
}

// ScoringPolicy is the declarative rule table behind the cultural scorer.
// The numbers are owned by clinical operations and load from YAML so
// retuning does not require a rebuild.
type ScoringPolicy struct {
	Weights   ComponentWeights `yaml:"weights"`
	Bonuses   BonusTable       `yaml:"bonuses"`
	Penalties PenaltyTable     `yaml:"penalties"`
	Defaults  NeutralDefaults  `yaml:"defaults"`

	// MajorFestivals are windows during which a skipped dose is treated
	// as compliant accommodation rather than a failure.
	MajorFestivals []string `yaml:"major_festivals"`

	// AccommodationWindowMinutes bounds how late a dose may be taken and
	// still count as religiously accommodated.
	AccommodationWindowMinutes int `yaml:"accommodation_window_minutes"`

	// MinReligiousSample is the flagged-event count below which the
	// religious component falls back to the sparse default.
	MinReligiousSample int `yaml:"min_religious_sample"`

	// SupportedLanguages are the languages the care program delivers
	// materials and counselling in; a preferred language on this list
	// earns the sensitivity match bonus.
	SupportedLanguages []string `yaml:"supported_languages"`

	// LanguageMatchBonus, ReasonCodeBonus and ReasonDiversityStep feed the
	// sensitivity component.
	LanguageMatchBonus   float64 `yaml:"language_match_bonus"`
	ReasonCodeBonus      float64 `yaml:"reason_code_bonus"`
	ReasonDiversityStep  float64 `yaml:"reason_diversity_step"`
	ReasonDiversityCap   float64 `yaml:"reason_diversity_cap"`
	FamilySupportScale   float64 `yaml:"family_support_scale"`
	ElderlyPresenceBonus float64 `yaml:"elderly_presence_bonus"`

	// Hierarchy bonuses consumed by the family aggregator.
	ElderlyHierarchyBonus float64 `yaml:"elderly_hierarchy_bonus"`
	HeadHierarchyBonus    float64 `yaml:"head_hierarchy_bonus"`

	// Recommendation thresholds per component.
	RecommendationRules []RecommendationRule `yaml:"recommendation_rules"`
}

// RecommendationRule fires a textual recommendation when the named
// component falls below the threshold.
type RecommendationRule struct {
	Component string  `yaml:"component"`
	Threshold float64 `yaml:"threshold"`
	Message   string  `yaml:"message"`
}

// DefaultPolicy returns the compiled-in policy tables.
func DefaultPolicy() ScoringPolicy {
	return ScoringPolicy{
		Weights: ComponentWeights{
			Religious:   0.30,
			Festival:    0.20,
			Family:      0.25,
			Traditional: 0.15,
			Sensitivity: 0.10,
		},
		Bonuses: BonusTable{
			RamadanSuccess:      BonusRule{Points: 5, MinEvents: 3, MinRatio: 0.8},
			FamilyCoordination:  BonusRule{Points: 3, MinEvents: 5, MinRatio: 0.5},
			PrayerAccommodation: BonusRule{Points: 4, MinEvents: 3, MinRatio: 0.8},
			FestivalRespect:     BonusRule{Points: 3, MinEvents: 1, MinRatio: 1.0},
		},
		Penalties: PenaltyTable{
			ReligiousWindowMiss: 2.0,
			TraditionalMiss:     1.5,
		},
		Defaults: NeutralDefaults{
			Religious:            85,
			ReligiousSparse:      75,
			Festival:             85,
			FamilyBase:           50,
			TraditionalNonUser:   85,
			TraditionalNoSignal:  70,
			SensitivityBase:      70,
			ObservationAlignment: 0.85,
		},
		MajorFestivals: []string{
			"ramadan", "eid-al-fitr", "eid-al-adha",
			"diwali", "navratri", "karva-chauth",
			"vesak", "yom-kippur",
		},
		SupportedLanguages: []string{
			"hindi", "tamil", "telugu", "bengali", "marathi",
			"urdu", "arabic", "english",
		},
		AccommodationWindowMinutes: 240,
		MinReligiousSample:         3,
		LanguageMatchBonus:         10,
		ReasonCodeBonus:            15,
		ReasonDiversityStep:        2.5,
		ReasonDiversityCap:         10,
		FamilySupportScale:         40,
		ElderlyPresenceBonus:       10,
		ElderlyHierarchyBonus:      50,
		HeadHierarchyBonus:         40,
		RecommendationRules: []RecommendationRule{
			{Component: "religious", Threshold: 70, Message: "Adjust dose schedule around prayer times and fasting hours"},
			{Component: "festival", Threshold: 65, Message: "Plan medication around upcoming festival windows with the care team"},
			{Component: "family", Threshold: 60, Message: "Involve a family member in daily dose reminders"},
			{Component: "traditional", Threshold: 70, Message: "Coordinate traditional remedies with the prescribing clinician"},
			{Component: "sensitivity", Threshold: 75, Message: "Capture dose-skip reasons so care plans can respect them"},
		},
	}
}

// LoadPolicy reads a YAML policy file over the compiled-in defaults. An
// empty path returns the defaults unchanged.
func LoadPolicy(path string) (ScoringPolicy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ScoringPolicy{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return ScoringPolicy{}, fmt.Errorf("parse policy file: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return ScoringPolicy{}, err
	}
	return policy, nil
}

// Validate rejects misconfigured tables before any scoring happens.
func (p ScoringPolicy) Validate() error {
	weights := []float64{p.Weights.Religious, p.Weights.Festival, p.Weights.Family, p.Weights.Traditional, p.Weights.Sensitivity}
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("component weight must be non-negative: %w", ErrInvalidPolicy)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("component weights must sum to 1, got %.4f: %w", sum, ErrInvalidPolicy)
	}
	if p.Penalties.ReligiousWindowMiss < 0 || p.Penalties.TraditionalMiss < 0 {
		return fmt.Errorf("penalty rates must be non-negative: %w", ErrInvalidPolicy)
	}
	if p.AccommodationWindowMinutes <= 0 {
		return fmt.Errorf("accommodation window must be positive: %w", ErrInvalidPolicy)
	}
	return nil
}

// SupportsLanguage reports whether the care program can serve a patient in
// the given language.
func (p ScoringPolicy) SupportsLanguage(language string) bool {
	for _, supported := range p.SupportedLanguages {
		if supported == language {
			return true
		}
	}
	return false
}

// IsMajorFestival reports whether a festival label is in the recognized
// major-festival table.
func (p ScoringPolicy) IsMajorFestival(label string) bool {
	for _, festival := range p.MajorFestivals {
		if festival == label {
			return true
		}
	}
	return false
}
