package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	id "regbook/pkg/domain"
	dErrors "regbook/pkg/domain-errors"
)

type RegistryServiceSuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
}

func (s *RegistryServiceSuite) SetupTest() {
	s.svc = New(NewInMemoryStore())
	s.ctx = context.Background()
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) TestRegister() {
	s.Run("normalizes the registration code", func() {
		asset, err := s.svc.Register(s.ctx, "  abc-123 ", id.NewUserID())
		s.Require().NoError(err)
		s.Equal("ABC-123", asset.RegistrationCode)
	})

	s.Run("rejects empty code", func() {
		_, err := s.svc.Register(s.ctx, "   ", id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects missing owner", func() {
		_, err := s.svc.Register(s.ctx, "NO-OWNER", id.UserID{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects duplicate code with Conflict", func() {
		_, err := s.svc.Register(s.ctx, "TWICE-1", id.NewUserID())
		s.Require().NoError(err)
		_, err = s.svc.Register(s.ctx, "twice-1", id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *RegistryServiceSuite) TestTransferOwnership() {
	s.Run("swaps owner atomically", func() {
		owner := id.NewUserID()
		next := id.NewUserID()
		asset, err := s.svc.Register(s.ctx, "SWAP-1", owner)
		s.Require().NoError(err)

		s.Require().NoError(s.svc.TransferOwnership(s.ctx, asset.ID, owner, next))

		got, err := s.svc.GetOwner(s.ctx, asset.ID)
		s.Require().NoError(err)
		s.Equal(next, got)
	})

	s.Run("fails OwnershipMismatch on stale expected owner", func() {
		asset, err := s.svc.Register(s.ctx, "SWAP-2", id.NewUserID())
		s.Require().NoError(err)

		err = s.svc.TransferOwnership(s.ctx, asset.ID, id.NewUserID(), id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeOwnershipMismatch))
	})

	s.Run("fails NotFound for unknown asset", func() {
		err := s.svc.TransferOwnership(s.ctx, id.NewAssetID(), id.NewUserID(), id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects nil new owner", func() {
		owner := id.NewUserID()
		asset, err := s.svc.Register(s.ctx, "SWAP-3", owner)
		s.Require().NoError(err)

		err = s.svc.TransferOwnership(s.ctx, asset.ID, owner, id.UserID{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
