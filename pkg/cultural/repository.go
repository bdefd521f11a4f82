package cultural

import (
	"context"
	"errors"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("patient cultural profile not found")

// ProfileModel persists the slow-changing cultural configuration per
// patient. Owned by the profile subsystem; the engine only reads it.
type ProfileModel struct {
	PatientID               string            `gorm:"primaryKey;column:patient_id"`
	Religion                string            `gorm:"column:religion"`
	ObservanceLevel         string            `gorm:"column:observance_level"`
	PreferredLanguage       string            `gorm:"column:preferred_language"`
	Family                  datatypes.JSONMap `gorm:"column:family_structure"`
	UsesTraditionalMedicine bool              `gorm:"column:uses_traditional_medicine"`
	Location                datatypes.JSONMap `gorm:"column:location"`
	UpdatedAt               time.Time         `gorm:"column:updated_at"`
}

func (ProfileModel) TableName() string {
	return "patient_cultural_profiles"
}

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&ProfileModel{})
}

func (r *ProfileRepository) Get(ctx context.Context, patientID string) (models.PatientCulturalProfile, error) {
	var row ProfileModel
	result := r.db.WithContext(ctx).First(&row, "patient_id = ?", patientID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.PatientCulturalProfile{}, ErrProfileNotFound
	}
	if result.Error != nil {
		return models.PatientCulturalProfile{}, result.Error
	}
	return profileToDomain(row), nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile models.PatientCulturalProfile) error {
	row := ProfileModel{
		PatientID:         profile.PatientID,
		Religion:          profile.Religion,
		ObservanceLevel:   profile.ObservanceLevel,
		PreferredLanguage: profile.PreferredLanguage,
		Family: datatypes.JSONMap{
			"size":            profile.Family.Size,
			"elderly_present": profile.Family.ElderlyPresent,
			"caregiver_role":  profile.Family.CaregiverRole,
		},
		UsesTraditionalMedicine: profile.UsesTraditionalMedicine,
		Location: datatypes.JSONMap{
			"city":      profile.Location.City,
			"country":   profile.Location.Country,
			"latitude":  profile.Location.Latitude,
			"longitude": profile.Location.Longitude,
		},
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Save(&row).Error
}

func profileToDomain(row ProfileModel) models.PatientCulturalProfile {
	profile := models.PatientCulturalProfile{
		PatientID:               row.PatientID,
		Religion:                row.Religion,
		ObservanceLevel:         row.ObservanceLevel,
		PreferredLanguage:       row.PreferredLanguage,
		UsesTraditionalMedicine: row.UsesTraditionalMedicine,
		UpdatedAt:               row.UpdatedAt,
	}
	if row.Family != nil {
		profile.Family = models.FamilyStructure{
			Size:           intField(row.Family, "size"),
			ElderlyPresent: boolField(row.Family, "elderly_present"),
			CaregiverRole:  stringField(row.Family, "caregiver_role"),
		}
	}
	if row.Location != nil {
		profile.Location = models.Location{
			City:      stringField(row.Location, "city"),
			Country:   stringField(row.Location, "country"),
			Latitude:  floatField(row.Location, "latitude"),
			Longitude: floatField(row.Location, "longitude"),
		}
	}
	return profile
}

func boolField(m datatypes.JSONMap, key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}

func stringField(m datatypes.JSONMap, key string) string {
	v, _ := m[key].(string)
	return v
}

func intField(m datatypes.JSONMap, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func floatField(m datatypes.JSONMap, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
