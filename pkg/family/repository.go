package family

import (
	"context"
	"fmt"
	"time"

	"github.com/sahaya-health/adherence-platform/pkg/common/models"
	"gorm.io/gorm"
)

// MemberModel maps a patient into a family group with their household role.
type MemberModel struct {
	FamilyID  string    `gorm:"column:family_id;index:idx_family_member,priority:1"`
	PatientID string    `gorm:"column:patient_id;index:idx_family_member,priority:2"`
	Role      string    `gorm:"column:role"`
	Age       int       `gorm:"column:age"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (MemberModel) TableName() string {
	return "family_members"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&MemberModel{})
}

func (r *Repository) AddMember(ctx context.Context, familyID string, member models.FamilyMember) error {
	row := MemberModel{
		FamilyID:  familyID,
		PatientID: member.PatientID,
		Role:      member.Role,
		Age:       member.Age,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// Members returns every patient enrolled in the family group.
func (r *Repository) Members(ctx context.Context, familyID string) ([]models.FamilyMember, error) {
	var rows []MemberModel
	err := r.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Order("patient_id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("family member query failed: %w", err)
	}

	members := make([]models.FamilyMember, 0, len(rows))
	for _, row := range rows {
		members = append(members, models.FamilyMember{
			PatientID: row.PatientID,
			Role:      row.Role,
			Age:       row.Age,
		})
	}
	return members, nil
}
