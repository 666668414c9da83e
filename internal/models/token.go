package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// OutstandingToken records every refresh token handed out, keyed by its jti.
type OutstandingToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:char(36);not null;index"`
	JTI       string    `json:"jti" gorm:"column:jti;uniqueIndex;size:64;not null"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

// BlacklistedToken marks a refresh token as revoked. Rows are only useful
// until ExpiresAt, after which the token is rejected on expiry alone.
type BlacklistedToken struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	JTI           string    `json:"jti" gorm:"column:jti;uniqueIndex;size:64;not null"`
	UserID        uuid.UUID `json:"user_id" gorm:"type:char(36);not null;index"`
	ExpiresAt     time.Time `json:"expires_at" gorm:"not null;index"`
	BlacklistedAt time.Time `json:"blacklisted_at" gorm:"not null"`
}

// All lists the models owned by the schema, in migration order.
func All() []any {
	return []any{
		&User{},
		&Task{},
		&OutstandingToken{},
		&BlacklistedToken{},
	}
}
