package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Task references its creator and assignee without cascading. Either user may
// be missing at read time, in which case the association stays nil.
type Task struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:char(36)"`
	Title        string    `json:"title" gorm:"uniqueIndex;size:90;not null"`
	Description  string    `json:"description" gorm:"size:255;not null"`
	CreatedByID  uuid.UUID `json:"created_by_id" gorm:"type:char(36);not null;index"`
	CreatedBy    *User     `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID;constraint:OnUpdate:NO ACTION,OnDelete:NO ACTION"`
	AssignedToID uuid.UUID `json:"assigned_to_id" gorm:"type:char(36);not null;index"`
	AssignedTo   *User     `json:"assigned_to,omitempty" gorm:"foreignKey:AssignedToID;constraint:OnUpdate:NO ACTION,OnDelete:NO ACTION"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	return nil
}

func (t *Task) IsCreatedBy(userID uuid.UUID) bool {
	return userID != uuid.Nil && t.CreatedByID == userID
}
