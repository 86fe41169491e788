package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/tiers"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Tier         tiers.Tier `json:"tier"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user is exempt from quota enforcement.
func (u *User) IsAdmin() bool {
	return u.Tier == tiers.TierAdmin
}

// ProviderKey is a user-owned credential for one provider, encrypted at rest.
type ProviderKey struct {
	UserID              uuid.UUID `json:"user_id"`
	Provider            string    `json:"provider"`
	EncryptedCredential string    `json:"-"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SetProviderKeyRequest is the API payload for storing an own key.
type SetProviderKeyRequest struct {
	APIKey string `json:"api_key" validate:"required,min=8"`
}
