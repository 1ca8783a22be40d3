package transfer

import (
	"context"
	"time"

	id "regbook/pkg/domain"
)

// Store persists transfer requests. Implementations return sentinel errors
// (pkg/platform/sentinel); the service translates them into domain codes.
//
// Every mutation is a single atomic statement (or runs under the caller's
// unit of work) guarded on status = pending, so terminal states can never
// transition and two concurrent actors can never both win the same record.
type Store interface {
	// CreateIfNonePending inserts the request unless an active pending
	// request already exists for the asset, in which case it returns
	// ErrAlreadyUsed. Due pending rows for the asset are expired first, in
	// the same unit of work, so a stale record never blocks re-initiation.
	CreateIfNonePending(ctx context.Context, req *Request) error

	FindByID(ctx context.Context, transferID id.TransferID) (*Request, error)

	// MarkAccepted transitions pending → accepted, provided the deadline has
	// not passed. Returns ErrInvalidState when the guard fails.
	MarkAccepted(ctx context.Context, transferID id.TransferID, now time.Time) error

	// MarkCancelled transitions pending → cancelled under the same guard.
	MarkCancelled(ctx context.Context, transferID id.TransferID, now time.Time) error

	// MarkExpired transitions a pending request whose deadline has passed to
	// expired. Returns ErrInvalidState if the record is not due.
	MarkExpired(ctx context.Context, transferID id.TransferID, now time.Time) error

	// CancelActiveByAsset cancels every active request on the asset except
	// exclude (pass the zero TransferID to cancel all). Used for sibling
	// invalidation after a successful handoff.
	CancelActiveByAsset(ctx context.Context, assetID id.AssetID, exclude id.TransferID, now time.Time) (int, error)

	// ExpireDue sweeps every pending request past its deadline to expired
	// and reports how many changed. Idempotent.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}
