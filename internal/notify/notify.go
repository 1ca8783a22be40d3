// Package notify is the best-effort side channel that tells the
// counter-party a handoff now awaits them. Dispatch is decoupled from the
// coordinators' state transitions: a committed record is never rolled back
// or failed because its notification could not be delivered.
package notify

import (
	"context"
	"time"

	id "regbook/pkg/domain"
)

// Kind labels what the counter-party is being told.
type Kind string

const (
	KindTransferInitiated Kind = "transfer_initiated"
	KindClaimInitiated    Kind = "claim_initiated"
)

// Notification is the transport-agnostic payload. Delivery mechanics
// (email/SMS) live behind the bus; this service only publishes.
//
// The notified party is addressed by email when known (transfer recipients)
// or by OwnerID when only the directory knows their contact details (claim
// notifications to the owner of record).
type Notification struct {
	Kind             Kind       `json:"kind"`
	AssetID          id.AssetID `json:"asset_id"`
	RegistrationCode string     `json:"registration_code,omitempty"`
	OwnerID          id.UserID  `json:"owner_id,omitempty"`
	RecipientEmail   string     `json:"recipient_email,omitempty"`
	RecipientPhone   string     `json:"recipient_phone,omitempty"`
	RecipientName    string     `json:"recipient_name,omitempty"`
	Message          string     `json:"message,omitempty"`
	OccurredAt       time.Time  `json:"occurred_at"`
}

// Dispatcher delivers one notification to the side channel. Implementations
// log their own failures; callers never see them.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// Enqueuer is what the coordinators hold: a non-blocking hand-off into the
// dispatch pipeline.
type Enqueuer interface {
	Enqueue(n Notification)
}
