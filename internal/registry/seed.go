package registry

import (
	"context"
	"time"

	id "regbook/pkg/domain"
)

// SeedDemoAssets creates a couple of assets under a fresh demo owner so a
// locally booted instance has something to hand off. Returns the owner ID
// for minting a development token against it.
func SeedDemoAssets(store Store) id.UserID {
	owner := id.NewUserID()
	now := time.Now()
	for _, code := range []string{"DEMO-001", "DEMO-002"} {
		_ = store.Create(context.Background(), &Asset{
			ID:               id.NewAssetID(),
			RegistrationCode: code,
			OwnerID:          owner,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return owner
}
