package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	id "regbook/pkg/domain"
	"regbook/pkg/platform/sentinel"
)

// InMemoryStore keeps assets in a map. The store's own mutex makes each
// operation atomic; composite units of work additionally run under the
// per-asset handoff guard.
type InMemoryStore struct {
	mu     sync.RWMutex
	assets map[id.AssetID]Asset
	byCode map[string]id.AssetID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		assets: make(map[id.AssetID]Asset),
		byCode: make(map[string]id.AssetID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, asset *Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := strings.ToUpper(asset.RegistrationCode)
	if _, exists := s.byCode[code]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.assets[asset.ID] = *asset
	s.byCode[code] = asset.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, assetID id.AssetID) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if asset, ok := s.assets[assetID]; ok {
		return &asset, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByRegistrationCode(_ context.Context, code string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if assetID, ok := s.byCode[strings.ToUpper(code)]; ok {
		asset := s.assets[assetID]
		return &asset, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateOwnerIf(_ context.Context, assetID id.AssetID, expected, newOwner id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[assetID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if asset.OwnerID != expected {
		return sentinel.ErrConflict
	}
	asset.OwnerID = newOwner
	asset.UpdatedAt = time.Now()
	s.assets[assetID] = asset
	return nil
}
