package identity

import (
	"time"

	"github.com/google/uuid"
)

type MappingStatus string

const (
	MappingActive    MappingStatus = "ACTIVE"
	MappingSuspended MappingStatus = "SUSPENDED"
	MappingDeleted   MappingStatus = "DELETED"
)

// Mapping links a SafeHaven-side user to an internal user.
type Mapping struct {
	ID               uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SafehavenUserID  string        `gorm:"type:varchar(255);not null;uniqueIndex:uk_identity_safehaven_user_id"`
	InternalUserID   string        `gorm:"type:varchar(255);not null;index"`
	Email            string        `gorm:"type:varchar(255)"`
	Status           MappingStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	LastVerifiedAt   *time.Time
	Metadata         string    `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"not null;default:now()"`
	UpdatedAt        time.Time `gorm:"not null;default:now()"`
}

func (Mapping) TableName() string {
	return "safehaven_identity_mappings"
}
