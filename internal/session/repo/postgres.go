package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-auth/internal/session/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (r *Postgres) Create(ctx context.Context, t *entity.RefreshToken) error {
	const q = `INSERT INTO refresh_tokens (id, account_id, token_hash, expires_at, created_at)
		VALUES (:id, :account_id, :token_hash, :expires_at, :created_at)`
	_, err := r.db.NamedExecContext(ctx, q, t)
	return err
}

func (r *Postgres) GetByHash(ctx context.Context, hash string) (*entity.RefreshToken, error) {
	const q = `SELECT id, account_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash = $1`
	var t entity.RefreshToken
	if err := r.db.GetContext(ctx, &t, q, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// DeleteByHash returns database.ErrNotFound when nothing was deleted.
func (r *Postgres) DeleteByHash(ctx context.Context, hash string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, hash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *Postgres) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1`, accountID)
	return err
}

func (r *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
