package models

import (
	"time"

	"github.com/google/uuid"
)

// ConsentType identifies a category of external data access the user
// can opt into. External tools declare which consent they require.
type ConsentType string

const (
	ConsentWebSearch ConsentType = "web_search"
)

// UserConsent is one consent record. A consent counts as granted only
// while Granted is true and RevokedAt is unset.
type UserConsent struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	ConsentType ConsentType `json:"consent_type"`
	Granted     bool        `json:"granted"`
	GrantedAt   time.Time   `json:"granted_at"`
	RevokedAt   *time.Time  `json:"revoked_at,omitempty"`
}

// Active reports whether the consent is currently in force
func (c UserConsent) Active() bool {
	return c.Granted && c.RevokedAt == nil
}
