package registry

import (
	"context"

	id "regbook/pkg/domain"
)

// Store persists assets. Implementations return sentinel errors:
// ErrNotFound for unknown assets, ErrAlreadyUsed for a duplicate
// registration code, ErrConflict when UpdateOwnerIf loses the swap.
type Store interface {
	Create(ctx context.Context, asset *Asset) error
	FindByID(ctx context.Context, assetID id.AssetID) (*Asset, error)
	FindByRegistrationCode(ctx context.Context, code string) (*Asset, error)

	// UpdateOwnerIf is the atomic compare-and-swap: the owner changes only
	// if the current owner equals expected. This is the single serialization
	// point that prevents two concurrent handoffs from both succeeding
	// against a stale owner value.
	UpdateOwnerIf(ctx context.Context, assetID id.AssetID, expected, newOwner id.UserID) error
}
