package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// User is keyed by email. Password holds the bcrypt hash and never leaves the
// process.
type User struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:char(36)"`
	Email       string     `json:"email" gorm:"uniqueIndex;size:254;not null"`
	Username    string     `json:"username" gorm:"size:150;not null"`
	Password    string     `json:"-" gorm:"size:128;not null"`
	IsActive    bool       `json:"is_active" gorm:"not null"`
	IsStaff     bool       `json:"is_staff" gorm:"not null"`
	IsSuperuser bool       `json:"is_superuser" gorm:"not null"`
	LastLogin   *time.Time `json:"last_login"`
	DateJoined  time.Time  `json:"date_joined" gorm:"not null"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		u.ID = id
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	return nil
}
