package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"regbook/internal/platform/postgres"
	id "regbook/pkg/domain"
	"regbook/pkg/platform/sentinel"
	"regbook/pkg/platform/tx"
)

// PostgresStore persists assets in PostgreSQL. This store is pure I/O; every
// mutation is a single statement so it composes into whatever transaction is
// open on the context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, asset *Asset) error {
	query := `
		INSERT INTO assets (id, registration_code, owner_id, created_at, updated_at)
		VALUES ($1, upper($2), $3, $4, $4)
	`
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		asset.ID.String(), asset.RegistrationCode, asset.OwnerID.String(), asset.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, assetID id.AssetID) (*Asset, error) {
	query := `
		SELECT id, registration_code, owner_id, created_at, updated_at
		FROM assets
		WHERE id = $1
	`
	return scanAsset(tx.Executor(ctx, s.db).QueryRowContext(ctx, query, assetID.String()))
}

func (s *PostgresStore) FindByRegistrationCode(ctx context.Context, code string) (*Asset, error) {
	query := `
		SELECT id, registration_code, owner_id, created_at, updated_at
		FROM assets
		WHERE registration_code = upper($1)
	`
	return scanAsset(tx.Executor(ctx, s.db).QueryRowContext(ctx, query, code))
}

// UpdateOwnerIf swaps the owner in a single conditional UPDATE. Zero rows
// affected means either the asset is unknown or the expected owner is stale;
// a follow-up existence probe distinguishes the two.
func (s *PostgresStore) UpdateOwnerIf(ctx context.Context, assetID id.AssetID, expected, newOwner id.UserID) error {
	query := `
		UPDATE assets
		SET owner_id = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		assetID.String(), expected.String(), newOwner.String())
	if err != nil {
		return fmt.Errorf("cas owner: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cas owner rows: %w", err)
	}
	if rows == 1 {
		return nil
	}

	if _, err := s.FindByID(ctx, assetID); err != nil {
		return err
	}
	return sentinel.ErrConflict
}

func scanAsset(row *sql.Row) (*Asset, error) {
	var (
		a                Asset
		assetID, ownerID string
	)
	err := row.Scan(&assetID, &a.RegistrationCode, &ownerID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	if a.ID, err = id.ParseAssetID(assetID); err != nil {
		return nil, fmt.Errorf("scan asset id: %w", err)
	}
	if a.OwnerID, err = id.ParseUserID(ownerID); err != nil {
		return nil, fmt.Errorf("scan asset owner: %w", err)
	}
	return &a, nil
}
