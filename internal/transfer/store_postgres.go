package transfer

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

// PostgresStore persists transfer requests in PostgreSQL. The one-pending-
// per-asset invariant is enforced by the partial unique index
// transfer_requests_one_pending_per_asset, not by application-level checks;
// concurrent initiates race on the index and exactly one wins.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, asset_id, sender_id, recipient_email, recipient_phone, status, created_at, expires_at`

func (s *PostgresStore) CreateIfNonePending(ctx context.Context, req *Request) error {
	q := tx.Executor(ctx, s.db)

	// Expire due rows first so the pending index reflects only active
	// records. Under the caller's transaction both statements commit
	// together.
	_, err := q.ExecContext(ctx, `
		UPDATE transfer_requests
		SET status = 'expired'
		WHERE asset_id = $1 AND status = 'pending' AND expires_at <= $2
	`, req.AssetID.String(), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("expire due transfers: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO transfer_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		req.ID.String(), req.AssetID.String(), req.SenderID.String(),
		req.RecipientEmail, nullable(req.RecipientPhone), string(req.Status),
		req.CreatedAt, req.ExpiresAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create transfer request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, transferID id.TransferID) (*Request, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM transfer_requests
		WHERE id = $1
	`, transferID.String())
	return scanRequest(row)
}

func (s *PostgresStore) MarkAccepted(ctx context.Context, transferID id.TransferID, now time.Time) error {
	return s.transition(ctx, `
		UPDATE transfer_requests
		SET status = 'accepted'
		WHERE id = $1 AND status = 'pending' AND expires_at > $2
	`, transferID, now)
}

func (s *PostgresStore) MarkCancelled(ctx context.Context, transferID id.TransferID, now time.Time) error {
	return s.transition(ctx, `
		UPDATE transfer_requests
		SET status = 'cancelled'
		WHERE id = $1 AND status = 'pending' AND expires_at > $2
	`, transferID, now)
}

func (s *PostgresStore) MarkExpired(ctx context.Context, transferID id.TransferID, now time.Time) error {
	return s.transition(ctx, `
		UPDATE transfer_requests
		SET status = 'expired'
		WHERE id = $1 AND status = 'pending' AND expires_at <= $2
	`, transferID, now)
}

func (s *PostgresStore) transition(ctx context.Context, query string, transferID id.TransferID, now time.Time) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, query, transferID.String(), now)
	if err != nil {
		return fmt.Errorf("transition transfer request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition transfer request rows: %w", err)
	}
	if rows == 0 {
		if _, findErr := s.FindByID(ctx, transferID); findErr != nil {
			return findErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) CancelActiveByAsset(ctx context.Context, assetID id.AssetID, exclude id.TransferID, now time.Time) (int, error) {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE transfer_requests
		SET status = 'cancelled'
		WHERE asset_id = $1 AND id <> $2 AND status = 'pending' AND expires_at > $3
	`, assetID.String(), exclude.String(), now)
	if err != nil {
		return 0, fmt.Errorf("cancel active transfers: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel active transfers rows: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE transfer_requests
		SET status = 'expired'
		WHERE status = 'pending' AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire due transfers: %w", err)
	}
	return res.RowsAffected()
}

func scanRequest(row *sql.Row) (*Request, error) {
	var (
		r                           Request
		transferID, assetID, sender string
		phone                       sql.NullString
		status                      string
	)
	err := row.Scan(&transferID, &assetID, &sender, &r.RecipientEmail, &phone, &status, &r.CreatedAt, &r.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan transfer request: %w", err)
	}
	if r.ID, err = id.ParseTransferID(transferID); err != nil {
		return nil, fmt.Errorf("scan transfer id: %w", err)
	}
	if r.AssetID, err = id.ParseAssetID(assetID); err != nil {
		return nil, fmt.Errorf("scan transfer asset: %w", err)
	}
	if r.SenderID, err = id.ParseUserID(sender); err != nil {
		return nil, fmt.Errorf("scan transfer sender: %w", err)
	}
	r.RecipientPhone = phone.String
	r.Status = Status(status)
	return &r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
