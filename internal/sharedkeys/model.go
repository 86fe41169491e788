package sharedkeys

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/providers"
)

// SharedKey is a platform-owned provider credential made available to
// qualifying tiers. The credential is encrypted at rest and never serialized.
type SharedKey struct {
	ID                  uuid.UUID          `json:"id"`
	Provider            providers.Provider `json:"provider"`
	EncryptedCredential string             `json:"-"`
	AuthorizedModels    []string           `json:"authorized_models"`
	IsActive            bool               `json:"is_active"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// Authorizes reports whether this key may serve the given model.
func (k *SharedKey) Authorizes(model string) bool {
	return slices.Contains(k.AuthorizedModels, model)
}

// ModelInfo is one pooled model as shown to users in the model picker.
type ModelInfo struct {
	Model       string             `json:"model"`
	DisplayName string             `json:"display_name"`
	Provider    providers.Provider `json:"provider"`
	KeyID       uuid.UUID          `json:"key_id"`
}

// ModelList is the aggregate pooled-model view. Failures records, per
// provider, why a catalog listing failed; models from those keys still
// appear with their raw ids as display names.
type ModelList struct {
	Models   []ModelInfo                   `json:"models"`
	Failures map[providers.Provider]string `json:"failures,omitempty"`
}

type CreateKeyRequest struct {
	Provider         string   `json:"provider" validate:"required,oneof=openai anthropic gemini"`
	APIKey           string   `json:"api_key" validate:"required,min=8"`
	AuthorizedModels []string `json:"authorized_models" validate:"required,min=1,dive,required"`
}
