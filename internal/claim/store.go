package claim

import (
	"context"
	"time"

	id "regbook/pkg/domain"
)

// Store persists ownership claims. Implementations return sentinel errors;
// the service translates them into domain codes. Mutations are guarded on
// status = pending so terminal states are frozen.
type Store interface {
	// CreateIfNonePending inserts the claim unless an active pending claim
	// already exists for the (asset, claimant) pair, in which case it
	// returns ErrAlreadyUsed. Due pending claims for the pair are expired
	// first, in the same unit of work.
	CreateIfNonePending(ctx context.Context, c *Claim) error

	FindByID(ctx context.Context, claimID id.ClaimID) (*Claim, error)

	// ListActiveByOwnerSnapshot returns active claims whose owner snapshot
	// equals ownerID. Display-only; the snapshot can be stale.
	ListActiveByOwnerSnapshot(ctx context.Context, ownerID id.UserID, now time.Time) ([]*Claim, error)

	MarkAccepted(ctx context.Context, claimID id.ClaimID, now time.Time) error
	MarkRejected(ctx context.Context, claimID id.ClaimID, now time.Time) error
	MarkExpired(ctx context.Context, claimID id.ClaimID, now time.Time) error

	// RejectActiveByAsset rejects every active claim on the asset except
	// exclude (zero ClaimID rejects all). Sibling invalidation after a
	// successful handoff.
	RejectActiveByAsset(ctx context.Context, assetID id.AssetID, exclude id.ClaimID, now time.Time) (int, error)

	// ExpireDue sweeps every pending claim past its deadline to expired.
	// Idempotent.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}
