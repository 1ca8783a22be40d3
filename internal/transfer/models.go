package transfer

import (
	"time"

	id "regbook/pkg/domain"
)

// Status is the transfer request lifecycle state.
//
// pending is the only non-terminal state. accepted, cancelled and expired
// are terminal and never transition further; the stores enforce this with
// conditional updates guarded on status = pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool { return s != StatusPending }

// DefaultTTL is the transfer request deadline: created-at plus seven days.
const DefaultTTL = 7 * 24 * time.Hour

// Request is an owner-initiated handoff: the current owner offers the asset
// to a recipient identified by email. Records are never physically deleted;
// terminal rows remain for audit.
//
// Invariants:
//   - at most one active Request exists per asset (storage-enforced)
//   - SenderID was the asset's owner at creation time
//   - RecipientEmail differs case-insensitively from the sender's email
type Request struct {
	ID             id.TransferID `json:"id"`
	AssetID        id.AssetID    `json:"asset_id"`
	SenderID       id.UserID     `json:"sender_id"`
	RecipientEmail string        `json:"recipient_email"`
	RecipientPhone string        `json:"recipient_phone,omitempty"`
	Status         Status        `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
}

// Active reports whether the request still counts toward the one-pending
// invariant and can be accepted: pending with a deadline in the future.
func (r *Request) Active(now time.Time) bool {
	return r.Status == StatusPending && now.Before(r.ExpiresAt)
}

// DueForExpiry reports a pending request whose deadline has passed but which
// the reaper has not yet swept.
func (r *Request) DueForExpiry(now time.Time) bool {
	return r.Status == StatusPending && !now.Before(r.ExpiresAt)
}
