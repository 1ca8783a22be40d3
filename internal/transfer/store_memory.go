package transfer

import (
	"context"
	"sync"
	"time"

	id "regbook/pkg/domain"
	"regbook/pkg/platform/sentinel"
)

// InMemoryStore keeps transfer requests in maps. Each method is atomic under
// the store mutex; the composite initiate/accept flows additionally run
// under the per-asset handoff guard so the check-then-insert pattern cannot
// interleave.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.TransferID]Request
	byAsset  map[id.AssetID][]id.TransferID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[id.TransferID]Request),
		byAsset:  make(map[id.AssetID][]id.TransferID),
	}
}

func (s *InMemoryStore) CreateIfNonePending(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := req.CreatedAt
	for _, tid := range s.byAsset[req.AssetID] {
		existing := s.requests[tid]
		if existing.DueForExpiry(now) {
			existing.Status = StatusExpired
			s.requests[tid] = existing
			continue
		}
		if existing.Active(now) {
			return sentinel.ErrAlreadyUsed
		}
	}

	s.requests[req.ID] = *req
	s.byAsset[req.AssetID] = append(s.byAsset[req.AssetID], req.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, transferID id.TransferID) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if req, ok := s.requests[transferID]; ok {
		return &req, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) MarkAccepted(_ context.Context, transferID id.TransferID, now time.Time) error {
	return s.transition(transferID, StatusAccepted, func(r Request) bool { return r.Active(now) })
}

func (s *InMemoryStore) MarkCancelled(_ context.Context, transferID id.TransferID, now time.Time) error {
	return s.transition(transferID, StatusCancelled, func(r Request) bool { return r.Active(now) })
}

func (s *InMemoryStore) MarkExpired(_ context.Context, transferID id.TransferID, now time.Time) error {
	return s.transition(transferID, StatusExpired, func(r Request) bool { return r.DueForExpiry(now) })
}

func (s *InMemoryStore) transition(transferID id.TransferID, to Status, guard func(Request) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[transferID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !guard(req) {
		return sentinel.ErrInvalidState
	}
	req.Status = to
	s.requests[transferID] = req
	return nil
}

func (s *InMemoryStore) CancelActiveByAsset(_ context.Context, assetID id.AssetID, exclude id.TransferID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled := 0
	for _, tid := range s.byAsset[assetID] {
		if tid == exclude {
			continue
		}
		req := s.requests[tid]
		if req.Active(now) {
			req.Status = StatusCancelled
			s.requests[tid] = req
			cancelled++
		}
	}
	return cancelled, nil
}

func (s *InMemoryStore) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired int64
	for tid, req := range s.requests {
		if req.DueForExpiry(now) {
			req.Status = StatusExpired
			s.requests[tid] = req
			expired++
		}
	}
	return expired, nil
}
