package claim

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

var tracer = otel.Tracer("regbook/claim")

// Registry is the slice of the ownership registry the coordinator needs.
// GetOwner is always the live record; claim authorization never trusts the
// stored snapshot.
type Registry interface {
	GetOwner(ctx context.Context, assetID id.AssetID) (id.UserID, error)
	RegistrationCode(ctx context.Context, assetID id.AssetID) (string, error)
	TransferOwnership(ctx context.Context, assetID id.AssetID, expected, newOwner id.UserID) error
}

// TransferInvalidator cancels active transfer requests on an asset. After an
// approved claim the ownership has moved, so every pending transfer from the
// previous owner is stale.
type TransferInvalidator interface {
	CancelActiveByAsset(ctx context.Context, assetID id.AssetID, exclude id.TransferID, now time.Time) (int, error)
}

// Service is the claimant-initiated handoff coordinator.
type Service struct {
	claims    Store
	transfers TransferInvalidator
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

// WithTTL overrides the 14-day deadline. Tests only.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func New(claims Store, transfers TransferInvalidator, registry Registry, runner handoff.TxRunner, opts ...Option) *Service {
	s := &Service{
		claims:    claims,
		transfers: transfers,
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

// Initiate files a claim: the claimant asserts control of the asset and asks
// the owner of record to confirm, with a 14-day deadline. The owner snapshot
// and registration code are captured at creation time for inbox display; the
// live owner is re-read at resolution.
func (s *Service) Initiate(ctx context.Context, assetID id.AssetID, claimantID id.UserID, claimantEmail, claimantPhone, message string) (*Claim, error) {
	ctx, span := tracer.Start(ctx, "claim.Initiate")
	defer span.End()
	span.SetAttributes(attribute.String("asset_id", assetID.String()))

	if !email.Valid(claimantEmail) {
		return nil, dErrors.New(dErrors.CodeValidation, "claimant email is malformed")
	}

	owner, err := s.registry.GetOwner(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if owner == claimantID {
		return nil, dErrors.New(dErrors.CodeValidation, "cannot claim an asset you already own")
	}
	code, err := s.registry.RegistrationCode(ctx, assetID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	c := &Claim{
		ID:               id.NewClaimID(),
		AssetID:          assetID,
		RegistrationCode: code,
		ClaimantID:       claimantID,
		ClaimantEmail:    email.Normalize(claimantEmail),
		ClaimantPhone:    claimantPhone,
		OwnerSnapshot:    owner,
		Message:          message,
		Status:           StatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	}

	ctx = handoff.WithAsset(ctx, assetID)
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.claims.CreateIfNonePending(ctx, c)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeDuplicatePending, "you already have a pending claim on this asset")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create claim")
	}

	s.countInitiated()
	s.logger.InfoContext(ctx, "claim initiated",
		"claim_id", c.ID.String(),
		"asset_id", assetID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notifyOwner(c)

	return c, nil
}

// ListActiveForOwner returns the active claims awaiting a given owner's
// decision, oldest first. The query keys on the stored owner snapshot, so a
// claim whose asset has since changed hands may still appear; resolving it
// re-checks the live owner and refuses.
func (s *Service) ListActiveForOwner(ctx context.Context, ownerID id.UserID) ([]*Claim, error) {
	now := requestcontext.Now(ctx)
	claims, err := s.claims.ListActiveByOwnerSnapshot(ctx, ownerID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

// Resolve records the owner's verdict. Only the asset's live owner may
// resolve; the creation-time snapshot carries no authority. Approval moves
// ownership to the claimant under compare-and-swap and invalidates every
// other pending handoff on the asset in the same unit of work.
func (s *Service) Resolve(ctx context.Context, claimID id.ClaimID, actorID id.UserID, decision Decision) (*Claim, error) {
	ctx, span := tracer.Start(ctx, "claim.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("decision", string(decision)))

	c, err := s.load(ctx, claimID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := s.checkActive(ctx, c, now); err != nil {
		return nil, err
	}

	owner, err := s.registry.GetOwner(ctx, c.AssetID)
	if err != nil {
		return nil, err
	}
	if owner != actorID {
		return nil, dErrors.New(dErrors.CodeOwnershipMismatch, "only the current owner can resolve this claim")
	}

	if decision == DecisionReject {
		if err := s.claims.MarkRejected(ctx, c.ID, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return nil, dErrors.New(dErrors.CodeConflict, "claim is no longer pending")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reject claim")
		}
		c.Status = StatusRejected
		s.countResolved("rejected")
		return c, nil
	}

	ctx = handoff.WithAsset(ctx, c.AssetID)
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		// The claim's own transition runs first. Its predicate only matches
		// a live pending row, so a sweep or rival resolution that landed
		// after the activity check aborts the unit of work here, before
		// ownership moves. Once accepted, the row is out of reach of expiry
		// sweeps.
		if err := s.claims.MarkAccepted(ctx, c.ID, now); err != nil {
			return err
		}
		if err := s.registry.TransferOwnership(ctx, c.AssetID, actorID, c.ClaimantID); err != nil {
			return err
		}
		// Sibling invalidation in the same unit of work: ownership moved, so
		// every other pending handoff on the asset is stale.
		if _, err := s.claims.RejectActiveByAsset(ctx, c.AssetID, c.ID, now); err != nil {
			return err
		}
		if _, err := s.transfers.CancelActiveByAsset(ctx, c.AssetID, id.TransferID{}, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeOwnershipMismatch):
			// Ownership moved between the live-owner read and the swap.
			s.countConflict()
			return nil, dErrors.New(dErrors.CodeConflict, "asset ownership changed while resolving the claim")
		case errors.Is(err, sentinel.ErrInvalidState):
			s.countConflict()
			return nil, dErrors.New(dErrors.CodeConflict, "claim is no longer pending")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to approve claim")
		}
	}

	c.Status = StatusAccepted
	s.countResolved("accepted")
	s.logger.InfoContext(ctx, "claim approved",
		"claim_id", c.ID.String(),
		"asset_id", c.AssetID.String(),
		"new_owner", c.ClaimantID.String(),
	)
	return c, nil
}

// Get returns a claim to a party to it: the claimant or the asset's live
// owner.
func (s *Service) Get(ctx context.Context, claimID id.ClaimID, userID id.UserID) (*Claim, error) {
	c, err := s.load(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if c.ClaimantID == userID {
		return c, nil
	}
	owner, err := s.registry.GetOwner(ctx, c.AssetID)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not a party to this claim")
	}
	return c, nil
}

func (s *Service) load(ctx context.Context, claimID id.ClaimID) (*Claim, error) {
	c, err := s.claims.FindByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	return c, nil
}

// checkActive applies lazy expiry on read: a pending record past its
// deadline is swept here rather than waiting for the reaper.
func (s *Service) checkActive(ctx context.Context, c *Claim, now time.Time) error {
	if c.DueForExpiry(now) {
		if err := s.claims.MarkExpired(ctx, c.ID, now); err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
			s.logger.WarnContext(ctx, "lazy expiry failed",
				"claim_id", c.ID.String(), "error", err)
		}
		c.Status = StatusExpired
	}
	switch c.Status {
	case StatusPending:
		return nil
	case StatusExpired:
		return dErrors.New(dErrors.CodeExpired, "claim has expired")
	default:
		return dErrors.New(dErrors.CodeConflict, "claim is no longer pending")
	}
}

func (s *Service) notifyOwner(c *Claim) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(notify.Notification{
		Kind:             notify.KindClaimInitiated,
		AssetID:          c.AssetID,
		RegistrationCode: c.RegistrationCode,
		OwnerID:          c.OwnerSnapshot,
		Message:          c.Message,
		OccurredAt:       c.CreatedAt,
	})
}

func (s *Service) countInitiated() {
	if s.metrics != nil {
		s.metrics.HandoffsInitiated.WithLabelValues("claim").Inc()
	}
}

func (s *Service) countResolved(outcome string) {
	if s.metrics != nil {
		s.metrics.HandoffsResolved.WithLabelValues("claim", outcome).Inc()
	}
}

func (s *Service) countConflict() {
	if s.metrics != nil {
		s.metrics.HandoffConflicts.WithLabelValues("claim").Inc()
	}
}
