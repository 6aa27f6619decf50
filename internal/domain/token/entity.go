package token

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
	StatusExpired Status = "EXPIRED"
)

// AccessToken is a SafeHaven OAuth access token issued against an identity
// mapping. Token lifecycle webhooks flip the status here.
type AccessToken struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TokenValue        string     `gorm:"type:varchar(512);not null;uniqueIndex:uk_access_token_value"`
	IdentityMappingID *uuid.UUID `gorm:"type:uuid;index"`
	TokenType         string     `gorm:"type:varchar(20);not null;default:'Bearer'"`
	Scope             string     `gorm:"type:varchar(255)"`
	ExpiresAt         *time.Time
	Status            Status    `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	Metadata          string    `gorm:"type:jsonb"`
	CreatedAt         time.Time `gorm:"not null;default:now()"`
	UpdatedAt         time.Time `gorm:"not null;default:now()"`
}

func (AccessToken) TableName() string {
	return "oauth_access_tokens"
}

// RefreshToken is the long-lived companion of an access token.
type RefreshToken struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TokenValue        string     `gorm:"type:varchar(512);not null;uniqueIndex:uk_refresh_token_value"`
	IdentityMappingID *uuid.UUID `gorm:"type:uuid;index"`
	ExpiresAt         *time.Time
	Status            Status `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	LastUsedAt        *time.Time
	Metadata          string    `gorm:"type:jsonb"`
	CreatedAt         time.Time `gorm:"not null;default:now()"`
	UpdatedAt         time.Time `gorm:"not null;default:now()"`
}

func (RefreshToken) TableName() string {
	return "oauth_refresh_tokens"
}
