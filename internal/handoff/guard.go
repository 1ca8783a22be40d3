// Package handoff holds the serialization boundary shared by both
// coordinators. Per-asset serialization is mandatory for the composite
// "check no active record, then insert" and "compare-and-swap plus sibling
// invalidation" operations; a plain read-then-write in application code
// admits a race where two concurrent calls both observe a free slot.
package handoff

import (
	"context"
	"sync"
	"time"

	id "regbook/pkg/domain"
	dErrors "regbook/pkg/domain-errors"
)

// TxRunner runs fn as one unit of work. The Postgres implementation wraps a
// database transaction; the in-memory Guard below serializes on the asset.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type assetKey struct{}

// WithAsset marks the asset a unit of work serializes on. The in-memory
// Guard uses it to pick a lock shard; the Postgres runner ignores it.
func WithAsset(ctx context.Context, assetID id.AssetID) context.Context {
	return context.WithValue(ctx, assetKey{}, assetID)
}

// AssetFrom extracts the serialization asset from context.
func AssetFrom(ctx context.Context) (id.AssetID, bool) {
	assetID, ok := ctx.Value(assetKey{}).(id.AssetID)
	return assetID, ok
}

// numShards spreads independent assets over separate locks so concurrent
// handoffs on different assets don't contend.
const numShards = 128

// defaultTimeout bounds a unit of work when the caller set no deadline.
const defaultTimeout = 5 * time.Second

// Guard is the in-memory TxRunner: a sharded mutex keyed by asset ID. Two
// units of work on the same asset run strictly one after the other, which is
// exactly the atomicity the memory stores need for check-then-insert.
type Guard struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewGuard() *Guard {
	return &Guard{timeout: defaultTimeout}
}

func (g *Guard) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "unit of work aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	shard := g.selectShard(ctx)
	g.shards[shard].Lock()
	defer g.shards[shard].Unlock()

	// Re-check after acquiring the lock; a long wait may have outlived the
	// caller.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "unit of work aborted: context cancelled")
	}

	return fn(ctx)
}

func (g *Guard) selectShard(ctx context.Context) int {
	if assetID, ok := AssetFrom(ctx); ok {
		return int(hashString(assetID.String()) % numShards)
	}
	return 0
}

// hashString is FNV-1a; cheap and well-distributed for UUID strings.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
