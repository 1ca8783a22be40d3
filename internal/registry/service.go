package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	id "regbook/pkg/domain"
	dErrors "regbook/pkg/domain-errors"
	"regbook/pkg/platform/sentinel"
)

var tracer = otel.Tracer("regbook/registry")

// Service is the authoritative mapping asset → current owner. It is the only
// component permitted to mutate ownership, via TransferOwnership's
// compare-and-swap. It also serves the asset-directory contract (Exists,
// RegistrationCode) since the asset table is local.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new asset record under the given owner. Registration
// codes are unique and immutable; a duplicate fails with Conflict.
func (s *Service) Register(ctx context.Context, registrationCode string, ownerID id.UserID) (*Asset, error) {
	registrationCode = strings.ToUpper(strings.TrimSpace(registrationCode))
	if registrationCode == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registration code is required")
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner is required")
	}

	now := time.Now()
	asset := &Asset{
		ID:               id.NewAssetID(),
		RegistrationCode: registrationCode,
		OwnerID:          ownerID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, asset); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "registration code already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register asset")
	}
	return asset, nil
}

// GetOwner returns the live owner of an asset. Every authorization-bearing
// operation in the coordinators re-resolves ownership through this; cached
// snapshots are display-only.
func (s *Service) GetOwner(ctx context.Context, assetID id.AssetID) (id.UserID, error) {
	asset, err := s.store.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.UserID{}, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return asset.OwnerID, nil
}

// Get returns the full asset record.
func (s *Service) Get(ctx context.Context, assetID id.AssetID) (*Asset, error) {
	asset, err := s.store.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return asset, nil
}

// Exists reports whether the asset is known.
func (s *Service) Exists(ctx context.Context, assetID id.AssetID) (bool, error) {
	_, err := s.store.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return true, nil
}

// RegistrationCode returns the asset's registration code, used to snapshot
// it onto a claim at creation time.
func (s *Service) RegistrationCode(ctx context.Context, assetID id.AssetID) (string, error) {
	asset, err := s.Get(ctx, assetID)
	if err != nil {
		return "", err
	}
	return asset.RegistrationCode, nil
}

// TransferOwnership atomically swaps the owner: it succeeds only if the
// asset's current owner equals expected, otherwise fails OwnershipMismatch.
// A failed swap is an authoritative signal that the caller's premise is
// stale; callers surface Conflict rather than retrying blindly.
func (s *Service) TransferOwnership(ctx context.Context, assetID id.AssetID, expected, newOwner id.UserID) error {
	ctx, span := tracer.Start(ctx, "registry.TransferOwnership")
	defer span.End()
	span.SetAttributes(attribute.String("asset_id", assetID.String()))

	if newOwner.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "new owner is required")
	}

	err := s.store.UpdateOwnerIf(ctx, assetID, expected, newOwner)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "ownership transferred",
			"asset_id", assetID.String(),
			"from", expected.String(),
			"to", newOwner.String(),
		)
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "asset not found")
	case errors.Is(err, sentinel.ErrConflict):
		span.RecordError(err)
		return dErrors.New(dErrors.CodeOwnershipMismatch, "asset owner has changed")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer ownership")
	}
}
