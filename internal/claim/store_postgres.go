package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"regbook/internal/platform/postgres"
	id "regbook/pkg/domain"
	"regbook/pkg/platform/sentinel"
	"regbook/pkg/platform/tx"
)

// PostgresStore persists ownership claims in PostgreSQL. The one-pending-
// per-(asset, claimant) invariant is enforced by the partial unique index
// ownership_claims_one_pending_per_claimant.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const claimColumns = `id, asset_id, registration_code, claimant_id, claimant_email, claimant_phone, owner_snapshot, message, status, created_at, expires_at`

func (s *PostgresStore) CreateIfNonePending(ctx context.Context, c *Claim) error {
	q := tx.Executor(ctx, s.db)

	_, err := q.ExecContext(ctx, `
		UPDATE ownership_claims
		SET status = 'expired'
		WHERE asset_id = $1 AND claimant_id = $2 AND status = 'pending' AND expires_at <= $3
	`, c.AssetID.String(), c.ClaimantID.String(), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("expire due claims: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO ownership_claims (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		c.ID.String(), c.AssetID.String(), c.RegistrationCode,
		c.ClaimantID.String(), c.ClaimantEmail, nullable(c.ClaimantPhone),
		c.OwnerSnapshot.String(), nullable(c.Message), string(c.Status),
		c.CreatedAt, c.ExpiresAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, claimID id.ClaimID) (*Claim, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+claimColumns+`
		FROM ownership_claims
		WHERE id = $1
	`, claimID.String())
	return scanClaimRow(row.Scan)
}

func (s *PostgresStore) ListActiveByOwnerSnapshot(ctx context.Context, ownerID id.UserID, now time.Time) ([]*Claim, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT `+claimColumns+`
		FROM ownership_claims
		WHERE owner_snapshot = $1 AND status = 'pending' AND expires_at > $2
		ORDER BY created_at
	`, ownerID.String(), now)
	if err != nil {
		return nil, fmt.Errorf("list claims for owner: %w", err)
	}
	defer rows.Close()

	var out []*Claim
	for rows.Next() {
		c, err := scanClaimRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkAccepted(ctx context.Context, claimID id.ClaimID, now time.Time) error {
	return s.transition(ctx, `
		UPDATE ownership_claims
		SET status = 'accepted'
		WHERE id = $1 AND status = 'pending' AND expires_at > $2
	`, claimID, now)
}

func (s *PostgresStore) MarkRejected(ctx context.Context, claimID id.ClaimID, now time.Time) error {
	return s.transition(ctx, `
		UPDATE ownership_claims
		SET status = 'rejected'
		WHERE id = $1 AND status = 'pending' AND expires_at > $2
	`, claimID, now)
}

func (s *PostgresStore) MarkExpired(ctx context.Context, claimID id.ClaimID, now time.Time) error {
	return s.transition(ctx, `
		UPDATE ownership_claims
		SET status = 'expired'
		WHERE id = $1 AND status = 'pending' AND expires_at <= $2
	`, claimID, now)
}

func (s *PostgresStore) transition(ctx context.Context, query string, claimID id.ClaimID, now time.Time) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, query, claimID.String(), now)
	if err != nil {
		return fmt.Errorf("transition claim: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition claim rows: %w", err)
	}
	if rows == 0 {
		if _, findErr := s.FindByID(ctx, claimID); findErr != nil {
			return findErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) RejectActiveByAsset(ctx context.Context, assetID id.AssetID, exclude id.ClaimID, now time.Time) (int, error) {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE ownership_claims
		SET status = 'rejected'
		WHERE asset_id = $1 AND id <> $2 AND status = 'pending' AND expires_at > $3
	`, assetID.String(), exclude.String(), now)
	if err != nil {
		return 0, fmt.Errorf("reject active claims: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reject active claims rows: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE ownership_claims
		SET status = 'expired'
		WHERE status = 'pending' AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire due claims: %w", err)
	}
	return res.RowsAffected()
}

func scanClaimRow(scan func(dest ...any) error) (*Claim, error) {
	var (
		c                         Claim
		claimID, assetID          string
		claimantID, ownerSnapshot string
		phone, message            sql.NullString
		status                    string
	)
	err := scan(&claimID, &assetID, &c.RegistrationCode, &claimantID, &c.ClaimantEmail,
		&phone, &ownerSnapshot, &message, &status, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	if c.ID, err = id.ParseClaimID(claimID); err != nil {
		return nil, fmt.Errorf("scan claim id: %w", err)
	}
	if c.AssetID, err = id.ParseAssetID(assetID); err != nil {
		return nil, fmt.Errorf("scan claim asset: %w", err)
	}
	if c.ClaimantID, err = id.ParseUserID(claimantID); err != nil {
		return nil, fmt.Errorf("scan claimant: %w", err)
	}
	if c.OwnerSnapshot, err = id.ParseUserID(ownerSnapshot); err != nil {
		return nil, fmt.Errorf("scan owner snapshot: %w", err)
	}
	c.ClaimantPhone = phone.String
	c.Message = message.String
	c.Status = Status(status)
	return &c, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
