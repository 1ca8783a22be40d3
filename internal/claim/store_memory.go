package claim

import (
	"context"
	"sort"
	"sync"
	"time"

	id "regbook/pkg/domain"
	"regbook/pkg/platform/sentinel"
)

type pairKey struct {
	asset    id.AssetID
	claimant id.UserID
}

// InMemoryStore keeps claims in maps. Methods are atomic under the store
// mutex; composite flows run under the per-asset handoff guard.
type InMemoryStore struct {
	mu      sync.RWMutex
	claims  map[id.ClaimID]Claim
	byPair  map[pairKey][]id.ClaimID
	byAsset map[id.AssetID][]id.ClaimID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		claims:  make(map[id.ClaimID]Claim),
		byPair:  make(map[pairKey][]id.ClaimID),
		byAsset: make(map[id.AssetID][]id.ClaimID),
	}
}

func (s *InMemoryStore) CreateIfNonePending(_ context.Context, c *Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{asset: c.AssetID, claimant: c.ClaimantID}
	now := c.CreatedAt
	for _, cid := range s.byPair[key] {
		existing := s.claims[cid]
		if existing.DueForExpiry(now) {
			existing.Status = StatusExpired
			s.claims[cid] = existing
			continue
		}
		if existing.Active(now) {
			return sentinel.ErrAlreadyUsed
		}
	}

	s.claims[c.ID] = *c
	s.byPair[key] = append(s.byPair[key], c.ID)
	s.byAsset[c.AssetID] = append(s.byAsset[c.AssetID], c.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, claimID id.ClaimID) (*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.claims[claimID]; ok {
		return &c, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListActiveByOwnerSnapshot(_ context.Context, ownerID id.UserID, now time.Time) ([]*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Claim
	for _, c := range s.claims {
		if c.OwnerSnapshot == ownerID && c.Active(now) {
			claim := c
			out = append(out, &claim)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) MarkAccepted(_ context.Context, claimID id.ClaimID, now time.Time) error {
	return s.transition(claimID, StatusAccepted, func(c Claim) bool { return c.Active(now) })
}

func (s *InMemoryStore) MarkRejected(_ context.Context, claimID id.ClaimID, now time.Time) error {
	return s.transition(claimID, StatusRejected, func(c Claim) bool { return c.Active(now) })
}

func (s *InMemoryStore) MarkExpired(_ context.Context, claimID id.ClaimID, now time.Time) error {
	return s.transition(claimID, StatusExpired, func(c Claim) bool { return c.DueForExpiry(now) })
}

func (s *InMemoryStore) transition(claimID id.ClaimID, to Status, guard func(Claim) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[claimID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !guard(c) {
		return sentinel.ErrInvalidState
	}
	c.Status = to
	s.claims[claimID] = c
	return nil
}

func (s *InMemoryStore) RejectActiveByAsset(_ context.Context, assetID id.AssetID, exclude id.ClaimID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rejected := 0
	for _, cid := range s.byAsset[assetID] {
		if cid == exclude {
			continue
		}
		c := s.claims[cid]
		if c.Active(now) {
			c.Status = StatusRejected
			s.claims[cid] = c
			rejected++
		}
	}
	return rejected, nil
}

func (s *InMemoryStore) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired int64
	for cid, c := range s.claims {
		if c.DueForExpiry(now) {
			c.Status = StatusExpired
			s.claims[cid] = c
			expired++
		}
	}
	return expired, nil
}
