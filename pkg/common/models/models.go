package models

import (
	"time"

	"github.com/google/uuid"
)

// Dose event statuses as recorded by the capture pipeline.
const (
	StatusTaken   = "taken"
	StatusLate    = "late"
	StatusMissed  = "missed"
	StatusSkipped = "skipped"
)

// CulturalContext annotates a dose event with the cultural circumstances
// observed at capture time. Attached upstream; read-only to the engine.
type CulturalContext struct {
	PrayerTimeConflict      bool   `json:"prayer_time_conflict"`
	FastingPeriod           bool   `json:"fasting_period"`
	FestivalPeriod          string `json:"festival_period,omitempty"`
	FamilySupport           bool   `json:"family_support"`
	TraditionalMedicineUsed bool   `json:"traditional_medicine_used"`
	ReasonCode              string `json:"reason_code,omitempty"`
}

// AdherenceEvent is one scheduled dose occurrence. Immutable once written.
type AdherenceEvent struct {
	ID            uuid.UUID       `json:"id"`
	PatientID     string          `json:"patient_id"`
	MedicationID  string          `json:"medication_id"`
	ScheduledTime time.Time       `json:"scheduled_time"`
	TakenTime     *time.Time      `json:"taken_time,omitempty"`
	Status        string          `json:"status"`
	Cultural      CulturalContext `json:"cultural_context"`
	Note          string          `json:"note,omitempty"`
	ReminderSent  bool            `json:"reminder_sent"`
	RemindedBy    string          `json:"reminded_by,omitempty"`
}

// WasTaken reports whether the dose counts toward adherence (taken or late).
func (e AdherenceEvent) WasTaken() bool {
	return e.Status == StatusTaken || e.Status == StatusLate
}

// FamilyStructure describes the household a patient belongs to.
type FamilyStructure struct {
	Size           int    `json:"size"`
	ElderlyPresent bool   `json:"elderly_present"`
	CaregiverRole  string `json:"caregiver_role,omitempty"`
}

// Location is used for prayer-time lookups.
type Location struct {
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// PatientCulturalProfile is the slow-changing cultural configuration for a
// patient. The engine treats it as an immutable snapshot per call.
type PatientCulturalProfile struct {
	PatientID               string          `json:"patient_id"`
	Religion                string          `json:"religion,omitempty"`
	ObservanceLevel         string          `json:"observance_level,omitempty"` // none, moderate, devout
	PreferredLanguage       string          `json:"preferred_language,omitempty"`
	Family                  FamilyStructure `json:"family_structure"`
	UsesTraditionalMedicine bool            `json:"uses_traditional_medicine"`
	Location                Location        `json:"location"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// CulturalAdjustments counts doses whose outcome was shaped by cultural
// accommodation rather than raw timing.
type CulturalAdjustments struct {
	PrayerConflictTaken  int `json:"prayer_conflict_taken"`
	FastingPeriodTaken   int `json:"fasting_period_taken"`
	FestivalSkipsHonored int `json:"festival_skips_honored"`
	FamilyAssistedDoses  int `json:"family_assisted_doses"`
}

// ProgressMetrics summarises a patient's adherence over a period.
type ProgressMetrics struct {
	PatientID     string              `json:"patient_id"`
	MedicationID  string              `json:"medication_id,omitempty"`
	AdherenceRate float64             `json:"adherence_rate"` // [0,1]
	CurrentStreak int                 `json:"current_streak"`
	LongestStreak int                 `json:"longest_streak"`
	TakenCount    int                 `json:"taken_count"`
	LateCount     int                 `json:"late_count"`
	MissedCount   int                 `json:"missed_count"`
	SkippedCount  int                 `json:"skipped_count"`
	TotalDoses    int                 `json:"total_doses"`
	Adjustments   CulturalAdjustments `json:"cultural_adjustments"`
	PeriodStart   time.Time           `json:"period_start"`
	PeriodEnd     time.Time           `json:"period_end"`
}

// CulturalComponentScores are the five component scores, each in [0,100].
type CulturalComponentScores struct {
	ReligiousAlignment    float64 `json:"religious_alignment"`
	FestivalAccommodation float64 `json:"festival_accommodation"`
	FamilyIntegration     float64 `json:"family_integration"`
	TraditionalHarmony    float64 `json:"traditional_harmony"`
	CulturalSensitivity   float64 `json:"cultural_sensitivity"`
}

// CulturalScore is the cultural-alignment output for a patient.
type CulturalScore struct {
	PatientID       string                  `json:"patient_id"`
	OverallScore    float64                 `json:"overall_score"` // [0,100]
	Components      CulturalComponentScores `json:"components"`
	BonusPoints     float64                 `json:"bonus_points"`
	PenaltyPoints   float64                 `json:"penalty_points"`
	Recommendations []string                `json:"recommendations,omitempty"`
	GeneratedAt     time.Time               `json:"generated_at"`
}

// RiskFactor is a named, explainable condition lowering predicted adherence.
type RiskFactor struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Value       float64 `json:"value"` // normalized severity in [0,1]
	Impact      float64 `json:"impact"`
	Description string  `json:"description"`
}

// Recommendation is a concrete action suggested to improve adherence.
type Recommendation struct {
	Action              string  `json:"action"`
	Priority            string  `json:"priority"`             // high, medium, low
	ExpectedImprovement float64 `json:"expected_improvement"` // points
}

// AdherencePrediction is the engine's primary output. MedicationID "all"
// covers every medication the patient takes.
type AdherencePrediction struct {
	ID                 uuid.UUID        `json:"id"`
	PatientID          string           `json:"patient_id"`
	MedicationID       string           `json:"medication_id"`
	PredictedAdherence float64          `json:"predicted_adherence"` // [0,100]
	Confidence         float64          `json:"confidence"`          // [0.1,0.95]
	RiskFactors        []RiskFactor     `json:"risk_factors,omitempty"`
	Recommendations    []Recommendation `json:"recommendations,omitempty"`
	BasedOnDays        int              `json:"based_on_days"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

// ForecastPoint is one day of the forward adherence forecast.
type ForecastPoint struct {
	Date     time.Time `json:"date"`
	Expected float64   `json:"expected"` // [0,100]
	Weekend  bool      `json:"weekend"`
	Festival bool      `json:"festival"`
}

// Family analysis outputs
type SupportEdge struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Strength float64 `json:"strength"` // [0,1]
}

type CulturalInfluence struct {
	MemberID        string   `json:"member_id"`
	Influence       string   `json:"influence"`
	AffectedMembers []string `json:"affected_members,omitempty"`
}

type GenerationInsight struct {
	Generation     string   `json:"generation"` // child, adult, elderly
	MemberIDs      []string `json:"member_ids"`
	AdherenceRate  float64  `json:"adherence_rate"`
	InfluenceScore float64  `json:"influence_score"`
}

type FamilyDynamicsAnalysis struct {
	FamilyID                   string              `json:"family_id"`
	MemberCount                int                 `json:"member_count"`
	CoordinationPattern        string              `json:"coordination_pattern"` // centralized, distributed, hierarchical, peer-to-peer
	SupportNetwork             []SupportEdge       `json:"support_network,omitempty"`
	CulturalInfluences         []CulturalInfluence `json:"cultural_influences,omitempty"`
	CommunicationEffectiveness float64             `json:"communication_effectiveness"` // [0,1]
	HierarchyRespect           float64             `json:"hierarchy_respect"`           // [0,100]
	CollectiveBehaviors        []string            `json:"collective_behaviors,omitempty"`
	Generations                []GenerationInsight `json:"generations,omitempty"`
	GeneratedAt                time.Time           `json:"generated_at"`
}

// FamilyMember pairs a household member with their role for aggregation.
type FamilyMember struct {
	PatientID string `json:"patient_id"`
	Role      string `json:"role"` // elderly, head, caregiver, adult, child
	Age       int    `json:"age,omitempty"`
}

// Event bus models
type DoseEvent struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"` // dose.recorded, prediction.generated
	PatientID    string            `json:"patient_id"`
	MedicationID string            `json:"medication_id,omitempty"`
	Status       string            `json:"status,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewDoseEventID returns a fresh event identifier for bus messages.
func NewDoseEventID() string {
	return uuid.New().String()
}
