package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/usermgmt/internal/domain/token"
	"github.com/geocoder89/usermgmt/internal/observability"
	"github.com/jackc/pgx/v5"
)

type RefreshTokensRepo struct {
	db DB
	observer
}

func NewRefreshTokensRepo(db DB, prom *observability.Prom) *RefreshTokensRepo {
	return &RefreshTokensRepo{db: db, observer: observer{prom: prom}}
}

func (r *RefreshTokensRepo) Create(ctx context.Context, row token.Refresh) error {
	return r.observe("refresh_tokens.create", func() error {
		_, err := r.db.Exec(ctx,
			`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.RevokedAt, row.ReplacedBy, row.CreatedAt,
		)
		return err
	})
}

// Rotate revokes oldID and stores next in one transaction. The old row is
// locked first so two concurrent refreshes of the same token cannot both
// succeed; check decides whether the locked row may be rotated.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldID string, check func(token.Refresh) error, next token.Refresh) error {
	return r.observe("refresh_tokens.rotate", func() error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		row, err := getForUpdate(ctx, tx, oldID)
		if err != nil {
			return err
		}

		if err := check(row); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW(), replaced_by = $2
			WHERE id = $1
		`, oldID, next.ID)
		if err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			next.ID, next.UserID, next.TokenHash, next.ExpiresAt, next.RevokedAt, next.ReplacedBy, next.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert refresh token: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// Locks the row to prevent concurrent refresh races
func getForUpdate(ctx context.Context, tx pgx.Tx, id string) (token.Refresh, error) {
	var row token.Refresh

	err := tx.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM refresh_tokens
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&row.ID,
		&row.UserID,
		&row.TokenHash,
		&row.ExpiresAt,
		&row.RevokedAt,
		&row.ReplacedBy,
		&row.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return token.Refresh{}, token.ErrRefreshNotFound
		}

		return token.Refresh{}, err
	}

	return row, nil
}

// Revoke is idempotent.
func (r *RefreshTokensRepo) Revoke(ctx context.Context, id string) error {
	return r.observe("refresh_tokens.revoke", func() error {
		_, err := r.db.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW()
			WHERE id = $1 AND revoked_at IS NULL
		`, id)
		return err
	})
}

func (r *RefreshTokensRepo) RevokeAllForUser(ctx context.Context, userID int64) error {
	return r.observe("refresh_tokens.revoke_all", func() error {
		_, err := r.db.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW()
			WHERE user_id = $1 AND revoked_at IS NULL
		`, userID)
		return err
	})
}
