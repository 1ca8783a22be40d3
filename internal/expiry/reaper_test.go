package expiry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"regbook/internal/claim"
	"regbook/internal/expiry"
	"regbook/internal/transfer"
	id "regbook/pkg/domain"
)

type ReaperSuite struct {
	suite.Suite
	transfers *transfer.InMemoryStore
	claims    *claim.InMemoryStore
	reaper    *expiry.Reaper
	ctx       context.Context
	now       time.Time
}

func (s *ReaperSuite) SetupTest() {
	s.transfers = transfer.NewInMemoryStore()
	s.claims = claim.NewInMemoryStore()
	s.reaper = expiry.New(time.Minute, []expiry.NamedStore{
		{Kind: "transfer", Store: s.transfers},
		{Kind: "claim", Store: s.claims},
	})
	s.ctx = context.Background()
	s.now = time.Now()
}

func TestReaperSuite(t *testing.T) {
	suite.Run(t, new(ReaperSuite))
}

func (s *ReaperSuite) seedTransfer(createdAt time.Time) *transfer.Request {
	req := &transfer.Request{
		ID:             id.NewTransferID(),
		AssetID:        id.NewAssetID(),
		SenderID:       id.NewUserID(),
		RecipientEmail: "recipient@example.com",
		Status:         transfer.StatusPending,
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(transfer.DefaultTTL),
	}
	s.Require().NoError(s.transfers.CreateIfNonePending(s.ctx, req))
	return req
}

func (s *ReaperSuite) seedClaim(createdAt time.Time) *claim.Claim {
	c := &claim.Claim{
		ID:            id.NewClaimID(),
		AssetID:       id.NewAssetID(),
		ClaimantID:    id.NewUserID(),
		ClaimantEmail: "claimant@example.com",
		OwnerSnapshot: id.NewUserID(),
		Status:        claim.StatusPending,
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(claim.DefaultTTL),
	}
	s.Require().NoError(s.claims.CreateIfNonePending(s.ctx, c))
	return c
}

func (s *ReaperSuite) TestSweepExpiresBothKinds() {
	dueTransfer := s.seedTransfer(s.now.Add(-8 * 24 * time.Hour))
	freshTransfer := s.seedTransfer(s.now)
	dueClaim := s.seedClaim(s.now.Add(-15 * 24 * time.Hour))
	freshClaim := s.seedClaim(s.now)

	s.reaper.Sweep(s.ctx, s.now)

	swept, err := s.transfers.FindByID(s.ctx, dueTransfer.ID)
	s.Require().NoError(err)
	s.Equal(transfer.StatusExpired, swept.Status)

	kept, err := s.transfers.FindByID(s.ctx, freshTransfer.ID)
	s.Require().NoError(err)
	s.Equal(transfer.StatusPending, kept.Status)

	sweptClaim, err := s.claims.FindByID(s.ctx, dueClaim.ID)
	s.Require().NoError(err)
	s.Equal(claim.StatusExpired, sweptClaim.Status)

	keptClaim, err := s.claims.FindByID(s.ctx, freshClaim.ID)
	s.Require().NoError(err)
	s.Equal(claim.StatusPending, keptClaim.Status)
}

// TestSweepIsIdempotent verifies a record already expired, by an earlier
// sweep or a lazy read-path expiry, is left untouched.
func (s *ReaperSuite) TestSweepIsIdempotent() {
	due := s.seedTransfer(s.now.Add(-8 * 24 * time.Hour))

	s.reaper.Sweep(s.ctx, s.now)
	s.reaper.Sweep(s.ctx, s.now)

	swept, err := s.transfers.FindByID(s.ctx, due.ID)
	s.Require().NoError(err)
	s.Equal(transfer.StatusExpired, swept.Status)
}

// TestSweepFreesSlot verifies expiring a pending record frees the
// one-pending slot for the asset.
func (s *ReaperSuite) TestSweepFreesSlot() {
	stale := s.seedTransfer(s.now.Add(-8 * 24 * time.Hour))

	s.reaper.Sweep(s.ctx, s.now)

	next := &transfer.Request{
		ID:             id.NewTransferID(),
		AssetID:        stale.AssetID,
		SenderID:       stale.SenderID,
		RecipientEmail: "recipient@example.com",
		Status:         transfer.StatusPending,
		CreatedAt:      s.now,
		ExpiresAt:      s.now.Add(transfer.DefaultTTL),
	}
	s.Require().NoError(s.transfers.CreateIfNonePending(s.ctx, next))
}

func TestNoopLockerAlwaysWins(t *testing.T) {
	l := expiry.NoopLocker{}
	ok, err := l.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
}
