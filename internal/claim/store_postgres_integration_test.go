//go:build integration

package claim_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"regbook/internal/claim"
	"regbook/internal/registry"
	id "regbook/pkg/domain"
	"regbook/pkg/platform/sentinel"
	"regbook/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	assets   *registry.PostgresStore
	store    *claim.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.assets = registry.NewPostgres(s.postgres.DB)
	s.store = claim.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"transfer_requests", "ownership_claims", "assets"))
}

func (s *PostgresStoreSuite) seedAsset(code string) *registry.Asset {
	now := time.Now().UTC()
	asset := &registry.Asset{
		ID:               id.NewAssetID(),
		RegistrationCode: code,
		OwnerID:          id.NewUserID(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.Require().NoError(s.assets.Create(context.Background(), asset))
	return asset
}

func newClaim(asset *registry.Asset, claimantID id.UserID, createdAt time.Time) *claim.Claim {
	return &claim.Claim{
		ID:               id.NewClaimID(),
		AssetID:          asset.ID,
		RegistrationCode: asset.RegistrationCode,
		ClaimantID:       claimantID,
		ClaimantEmail:    "claimant@example.com",
		OwnerSnapshot:    asset.OwnerID,
		Status:           claim.StatusPending,
		CreatedAt:        createdAt,
		ExpiresAt:        createdAt.Add(claim.DefaultTTL),
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	asset := s.seedAsset("CL-001")
	now := time.Now().UTC()

	c := newClaim(asset, id.NewUserID(), now)
	c.ClaimantPhone = "+15559876543"
	c.Message = "bought it last week"
	s.Require().NoError(s.store.CreateIfNonePending(ctx, c))

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ClaimantID, found.ClaimantID)
	s.Equal(asset.OwnerID, found.OwnerSnapshot)
	s.Equal("+15559876543", found.ClaimantPhone)
	s.Equal("bought it last week", found.Message)
	s.Equal(asset.RegistrationCode, found.RegistrationCode)
}

// TestPairUniqueIndex verifies the one-pending-per-(asset, claimant)
// invariant at the database.
func (s *PostgresStoreSuite) TestPairUniqueIndex() {
	ctx := context.Background()
	asset := s.seedAsset("CL-IDX")
	claimant := id.NewUserID()
	now := time.Now().UTC()

	s.Require().NoError(s.store.CreateIfNonePending(ctx, newClaim(asset, claimant, now)))

	err := s.store.CreateIfNonePending(ctx, newClaim(asset, claimant, now))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	// A different claimant is not blocked.
	s.Require().NoError(s.store.CreateIfNonePending(ctx, newClaim(asset, id.NewUserID(), now)))
}

func (s *PostgresStoreSuite) TestListActiveByOwnerSnapshot() {
	ctx := context.Background()
	asset := s.seedAsset("CL-LIST")
	now := time.Now().UTC()

	older := newClaim(asset, id.NewUserID(), now.Add(-time.Hour))
	newer := newClaim(asset, id.NewUserID(), now)
	s.Require().NoError(s.store.CreateIfNonePending(ctx, older))
	s.Require().NoError(s.store.CreateIfNonePending(ctx, newer))

	claims, err := s.store.ListActiveByOwnerSnapshot(ctx, asset.OwnerID, now)
	s.Require().NoError(err)
	s.Require().Len(claims, 2)
	s.Equal(older.ID, claims[0].ID)
	s.Equal(newer.ID, claims[1].ID)

	claims, err = s.store.ListActiveByOwnerSnapshot(ctx, id.NewUserID(), now)
	s.Require().NoError(err)
	s.Empty(claims)
}

func (s *PostgresStoreSuite) TestRejectActiveByAsset() {
	ctx := context.Background()
	asset := s.seedAsset("CL-SIB")
	now := time.Now().UTC()

	winner := newClaim(asset, id.NewUserID(), now)
	loser := newClaim(asset, id.NewUserID(), now)
	s.Require().NoError(s.store.CreateIfNonePending(ctx, winner))
	s.Require().NoError(s.store.CreateIfNonePending(ctx, loser))

	n, err := s.store.RejectActiveByAsset(ctx, asset.ID, winner.ID, now)
	s.Require().NoError(err)
	s.Equal(1, n)

	kept, err := s.store.FindByID(ctx, winner.ID)
	s.Require().NoError(err)
	s.Equal(claim.StatusPending, kept.Status)

	rejected, err := s.store.FindByID(ctx, loser.ID)
	s.Require().NoError(err)
	s.Equal(claim.StatusRejected, rejected.Status)
}
