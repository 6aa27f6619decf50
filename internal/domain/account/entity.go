package account

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusClosed    Status = "CLOSED"
)

// SafeHaven is the provider-side account record managed over REST and mutated
// by payment and account webhooks.
type SafeHaven struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Reference  string    `gorm:"type:varchar(255);not null;uniqueIndex:uk_safehaven_reference"`
	OwnerName  string    `gorm:"type:varchar(255);not null"`
	OwnerEmail string    `gorm:"type:varchar(255);not null"`
	Balance    int64     `gorm:"not null;default:0"` // minor currency units
	Status     Status    `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	CreatedAt  time.Time `gorm:"not null;default:now()"`
	UpdatedAt  time.Time `gorm:"not null;default:now()"`
}

func (SafeHaven) TableName() string {
	return "safe_havens"
}
