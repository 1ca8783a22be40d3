package claim

import (
	"time"

	id "regbook/pkg/domain"
	dErrors "regbook/pkg/domain-errors"
)

// Status is the ownership claim lifecycle state. pending is the only
// non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

func (s Status) Terminal() bool { return s != StatusPending }

// DefaultTTL is the claim deadline: created-at plus fourteen days.
const DefaultTTL = 14 * 24 * time.Hour

// Decision is the owner's verdict on a claim.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a decision at the transport boundary.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "decision must be approve or reject")
	}
}

// Claim is a claimant-initiated handoff: a party asserts it now controls an
// asset and asks the owner of record to confirm.
//
// OwnerSnapshot is the owner at creation time, kept for the owner's inbox
// listing only. Ownership can move between creation and resolution, so
// authorization always re-checks the live owner; the snapshot is never
// trusted alone.
//
// Invariants:
//   - at most one active Claim exists per (asset, claimant) pair
//     (storage-enforced)
//   - RegistrationCode is a creation-time snapshot from the asset directory
type Claim struct {
	ID               id.ClaimID `json:"id"`
	AssetID          id.AssetID `json:"asset_id"`
	RegistrationCode string     `json:"registration_code"`
	ClaimantID       id.UserID  `json:"claimant_id"`
	ClaimantEmail    string     `json:"claimant_email"`
	ClaimantPhone    string     `json:"claimant_phone,omitempty"`
	OwnerSnapshot    id.UserID  `json:"owner_snapshot"`
	Message          string     `json:"message,omitempty"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
}

// Active reports whether the claim counts toward the one-pending invariant
// and can still be resolved.
func (c *Claim) Active(now time.Time) bool {
	return c.Status == StatusPending && now.Before(c.ExpiresAt)
}

// DueForExpiry reports a pending claim whose deadline has passed but which
// the reaper has not yet swept.
func (c *Claim) DueForExpiry(now time.Time) bool {
	return c.Status == StatusPending && !now.Before(c.ExpiresAt)
}
