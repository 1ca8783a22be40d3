package transfer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"regbook/internal/handoff"
	"regbook/internal/notify"
	"regbook/internal/platform/metrics"
	id "regbook/pkg/domain"
	dErrors "regbook/pkg/domain-errors"
	"regbook/pkg/email"
	"regbook/pkg/platform/sentinel"
	"regbook/pkg/requestcontext"
)

var tracer = otel.Tracer("regbook/transfer")

// Registry is the slice of the ownership registry the coordinator needs.
type Registry interface {
	GetOwner(ctx context.Context, assetID id.AssetID) (id.UserID, error)
	TransferOwnership(ctx context.Context, assetID id.AssetID, expected, newOwner id.UserID) error
}

// ClaimInvalidator rejects active ownership claims on an asset. After a
// successful transfer the ownership has moved, so every pending claim is
// stale by construction.
type ClaimInvalidator interface {
	RejectActiveByAsset(ctx context.Context, assetID id.AssetID, exclude id.ClaimID, now time.Time) (int, error)
}

// Service is the owner-initiated handoff coordinator.
type Service struct {
	transfers Store
	claims    ClaimInvalidator
	registry  Registry
	runner    handoff.TxRunner
	notifier  notify.Enqueuer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	ttl       time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n notify.Enqueuer) Option {
	return func(s *Service) { s.notifier = n }
}

// WithTTL overrides the 7-day deadline. Tests only.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func New(transfers Store, claims ClaimInvalidator, registry Registry, runner handoff.TxRunner, opts ...Option) *Service {
	s := &Service{
		transfers: transfers,
		claims:    claims,
		registry:  registry,
		runner:    runner,
		logger:    slog.Default(),
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate creates a pending transfer request from the asset's owner to a
// recipient identified by email, with a 7-day deadline. The recipient is
// notified best-effort; notification failure never surfaces here.
func (s *Service) Initiate(ctx context.Context, assetID id.AssetID, senderID id.UserID, senderEmail, recipientEmail, recipientPhone string) (*Request, error) {
	ctx, span := tracer.Start(ctx, "transfer.Initiate")
	defer span.End()
	span.SetAttributes(attribute.String("asset_id", assetID.String()))

	if !email.Valid(recipientEmail) {
		return nil, dErrors.New(dErrors.CodeValidation, "recipient email is malformed")
	}
	if email.Equal(recipientEmail, senderEmail) {
		return nil, dErrors.New(dErrors.CodeSelfTransfer, "cannot transfer an asset to yourself")
	}

	owner, err := s.registry.GetOwner(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if owner != senderID {
		return nil, dErrors.New(dErrors.CodeOwnershipMismatch, "only the current owner can initiate a transfer")
	}

	now := requestcontext.Now(ctx)
	req := &Request{
		ID:             id.NewTransferID(),
		AssetID:        assetID,
		SenderID:       senderID,
		RecipientEmail: email.Normalize(recipientEmail),
		RecipientPhone: recipientPhone,
		Status:         StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}

	ctx = handoff.WithAsset(ctx, assetID)
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.transfers.CreateIfNonePending(ctx, req)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeDuplicatePending, "a pending transfer already exists for this asset")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create transfer request")
	}

	s.countInitiated()
	s.logger.InfoContext(ctx, "transfer initiated",
		"transfer_id", req.ID.String(),
		"asset_id", assetID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notifyRecipient(req)

	return req, nil
}

// Accept completes the handoff: the recipient, identified by verified email,
// takes ownership. The compare-and-swap against the sender's ownership is
// the authority; if it fails, ownership moved since the request was created,
// the request is cancelled, and the caller gets Conflict.
func (s *Service) Accept(ctx context.Context, transferID id.TransferID, userID id.UserID, userEmail string) (*Request, error) {
	ctx, span := tracer.Start(ctx, "transfer.Accept")
	defer span.End()

	req, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := s.checkActive(ctx, req, now); err != nil {
		return nil, err
	}
	if !email.Equal(userEmail, req.RecipientEmail) {
		return nil, dErrors.New(dErrors.CodeRecipientMismatch, "this transfer is addressed to a different recipient")
	}

	ctx = handoff.WithAsset(ctx, req.AssetID)
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		// The request's own transition runs first. Its predicate only
		// matches a live pending row, so a sweep, cancel, or rival accept
		// that landed after the activity check aborts the unit of work here,
		// before ownership moves. Once accepted, the row is out of reach of
		// expiry sweeps.
		if err := s.transfers.MarkAccepted(ctx, req.ID, now); err != nil {
			return err
		}
		if err := s.registry.TransferOwnership(ctx, req.AssetID, req.SenderID, userID); err != nil {
			return err
		}
		// Sibling invalidation in the same unit of work: ownership moved, so
		// every other pending handoff on the asset is stale.
		if _, err := s.transfers.CancelActiveByAsset(ctx, req.AssetID, req.ID, now); err != nil {
			return err
		}
		if _, err := s.claims.RejectActiveByAsset(ctx, req.AssetID, id.ClaimID{}, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeOwnershipMismatch):
			// The premise is stale; the request can never succeed. Retire it
			// and tell the caller why.
			if cancelErr := s.transfers.MarkCancelled(ctx, req.ID, now); cancelErr != nil && !errors.Is(cancelErr, sentinel.ErrInvalidState) {
				s.logger.ErrorContext(ctx, "failed to cancel stale transfer",
					"transfer_id", req.ID.String(), "error", cancelErr)
			}
			s.countConflict()
			return nil, dErrors.New(dErrors.CodeConflict, "asset ownership changed since this transfer was created")
		case errors.Is(err, sentinel.ErrInvalidState):
			// Lost a race with a concurrent accept, cancel, or sweep.
			s.countConflict()
			return nil, dErrors.New(dErrors.CodeConflict, "transfer is no longer pending")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to accept transfer")
		}
	}

	req.Status = StatusAccepted
	s.countResolved("accepted")
	s.logger.InfoContext(ctx, "transfer accepted",
		"transfer_id", req.ID.String(),
		"asset_id", req.AssetID.String(),
		"new_owner", userID.String(),
	)
	return req, nil
}

// Cancel retires an active request. Only the sender may cancel.
func (s *Service) Cancel(ctx context.Context, transferID id.TransferID, requesterID id.UserID) (*Request, error) {
	req, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if req.SenderID != requesterID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the sender can cancel a transfer")
	}

	now := requestcontext.Now(ctx)
	if err := s.transfers.MarkCancelled(ctx, transferID, now); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeConflict, "transfer is no longer pending")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel transfer")
	}

	req.Status = StatusCancelled
	s.countResolved("cancelled")
	return req, nil
}

// Get returns a transfer request to a party to it: the sender or the
// addressed recipient.
func (s *Service) Get(ctx context.Context, transferID id.TransferID, userID id.UserID, userEmail string) (*Request, error) {
	req, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if req.SenderID != userID && !email.Equal(userEmail, req.RecipientEmail) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not a party to this transfer")
	}
	return req, nil
}

func (s *Service) load(ctx context.Context, transferID id.TransferID) (*Request, error) {
	req, err := s.transfers.FindByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transfer request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transfer request")
	}
	return req, nil
}

// checkActive applies lazy expiry on read: a pending record past its
// deadline is swept here rather than waiting for the reaper.
func (s *Service) checkActive(ctx context.Context, req *Request, now time.Time) error {
	if req.DueForExpiry(now) {
		if err := s.transfers.MarkExpired(ctx, req.ID, now); err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
			s.logger.WarnContext(ctx, "lazy expiry failed",
				"transfer_id", req.ID.String(), "error", err)
		}
		req.Status = StatusExpired
	}
	switch req.Status {
	case StatusPending:
		return nil
	case StatusExpired:
		return dErrors.New(dErrors.CodeExpired, "transfer request has expired")
	default:
		return dErrors.New(dErrors.CodeConflict, "transfer is no longer pending")
	}
}

func (s *Service) notifyRecipient(req *Request) {
	if s.notifier == nil {
		return
	}
	first, last := email.DeriveName(req.RecipientEmail)
	s.notifier.Enqueue(notify.Notification{
		Kind:           notify.KindTransferInitiated,
		AssetID:        req.AssetID,
		RecipientEmail: req.RecipientEmail,
		RecipientPhone: req.RecipientPhone,
		RecipientName:  first + " " + last,
		OccurredAt:     req.CreatedAt,
	})
}

func (s *Service) countInitiated() {
	if s.metrics != nil {
		s.metrics.HandoffsInitiated.WithLabelValues("transfer").Inc()
	}
}

func (s *Service) countResolved(outcome string) {
	if s.metrics != nil {
		s.metrics.HandoffsResolved.WithLabelValues("transfer", outcome).Inc()
	}
}

func (s *Service) countConflict() {
	if s.metrics != nil {
		s.metrics.HandoffConflicts.WithLabelValues("transfer").Inc()
	}
}
