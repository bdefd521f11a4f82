package adherence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventModel is the persisted form of an adherence event. The table is
// append-only: the engine writes on capture relay and otherwise only reads.
type EventModel struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	PatientID     string            `gorm:"column:patient_id;index:idx_patient_med_time,priority:1"`
	MedicationID  string            `gorm:"column:medication_id;index:idx_patient_med_time,priority:2"`
	ScheduledTime time.Time         `gorm:"column:scheduled_time;index:idx_patient_med_time,priority:3"`
	TakenTime     *time.Time        `gorm:"column:taken_time"`
	Status        string            `gorm:"column:status"`
	Cultural      datatypes.JSONMap `gorm:"column:cultural_context"`
	Note          string            `gorm:"column:note"`
	ReminderSent  bool              `gorm:"column:reminder_sent"`
	RemindedBy    string            `gorm:"column:reminded_by"`
	CreatedAt     time.Time         `gorm:"column:created_at"`
}

func (EventModel) TableName() string {
	return "adherence_events"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&EventModel{})
}

// Append records a new dose event. Events are immutable once written.
func (r *Repository) Append(ctx context.Context, event models.AdherenceEvent) error {
	model := toModel(event)
	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}
	model.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListByPatient returns the ordered dose history for a patient over a
// period. An empty medicationID matches all medications.
func (r *Repository) ListByPatient(ctx context.Context, patientID, medicationID string, start, end time.Time) ([]models.AdherenceEvent, error) {
	query := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Where("scheduled_time >= ? AND scheduled_time < ?", start, end)
	if medicationID != "" {
		query = query.Where("medication_id = ?", medicationID)
	}

	var rows []EventModel
	if err := query.Order("scheduled_time asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("event store query failed: %w", err)
	}

	events := make([]models.AdherenceEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, toDomain(row))
	}
	return events, nil
}

// CountSince reports how many events arrived after a given instant. Used to
// decide whether a cached prediction went stale ahead of its TTL.
func (r *Repository) CountSince(ctx context.Context, patientID, medicationID string, since time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&EventModel{}).
		Where("patient_id = ?", patientID).
		Where("created_at > ?", since)
	if medicationID != "" {
		query = query.Where("medication_id = ?", medicationID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("event store count failed: %w", err)
	}
	return count, nil
}

func toModel(event models.AdherenceEvent) EventModel {
	return EventModel{
		ID:            event.ID,
		PatientID:     event.PatientID,
		MedicationID:  event.MedicationID,
		ScheduledTime: event.ScheduledTime,
		TakenTime:     event.TakenTime,
		Status:        event.Status,
		Cultural: datatypes.JSONMap{
			"prayer_time_conflict":      event.Cultural.PrayerTimeConflict,
			"fasting_period":            event.Cultural.FastingPeriod,
			"festival_period":           event.Cultural.FestivalPeriod,
			"family_support":            event.Cultural.FamilySupport,
			"traditional_medicine_used": event.Cultural.TraditionalMedicineUsed,
			"reason_code":               event.Cultural.ReasonCode,
		},
		Note:         event.Note,
		ReminderSent: event.ReminderSent,
		RemindedBy:   event.RemindedBy,
	}
}

func toDomain(row EventModel) models.AdherenceEvent {
	event := models.AdherenceEvent{
		ID:            row.ID,
		PatientID:     row.PatientID,
		MedicationID:  row.MedicationID,
		ScheduledTime: row.ScheduledTime,
		TakenTime:     row.TakenTime,
		Status:        row.Status,
		Note:          row.Note,
		ReminderSent:  row.ReminderSent,
		RemindedBy:    row.RemindedBy,
	}
	if row.Cultural != nil {
		event.Cultural = models.CulturalContext{
			PrayerTimeConflict:      boolField(row.Cultural, "prayer_time_conflict"),
			FastingPeriod:           boolField(row.Cultural, "fasting_period"),
			FestivalPeriod:          stringField(row.Cultural, "festival_period"),
			FamilySupport:           boolField(row.Cultural, "family_support"),
			TraditionalMedicineUsed: boolField(row.Cultural, "traditional_medicine_used"),
			ReasonCode:              stringField(row.Cultural, "reason_code"),
		}
	}
	return event
}

func boolField(m datatypes.JSONMap, key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}

func stringField(m datatypes.JSONMap, key string) string {
	v, _ := m[key].(string)
	return v
}
