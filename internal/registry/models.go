package registry

import (
	"time"

	id "regbook/pkg/domain"
)

// Asset is a registered vehicle record. The registry is the only component
// permitted to mutate OwnerID, and only through the compare-and-swap in the
// store; everything else reads through the service.
//
// Invariants:
//   - RegistrationCode is unique and immutable after creation
//   - OwnerID is never empty; every asset has exactly one owner
type Asset struct {
	ID               id.AssetID `json:"id"`
	RegistrationCode string     `json:"registration_code"`
	OwnerID          id.UserID  `json:"owner_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
