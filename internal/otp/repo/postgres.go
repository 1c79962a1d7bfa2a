package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-auth/internal/otp/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

func (r *Postgres) Create(ctx context.Context, rec *entity.Record) error {
	const q = `INSERT INTO otps (id, account_id, purpose, code, expires_at, used, created_at)
		VALUES (:id, :account_id, :purpose, :code, :expires_at, :used, :created_at)`
	_, err := r.db.NamedExecContext(ctx, q, rec)
	return err
}

// DeleteByAccount removes every record for the account, used or not.
func (r *Postgres) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE account_id=$1`, accountID)
	return err
}

// Consume flags the matching record used in one conditional update, so two
// concurrent submissions of the same code cannot both succeed.
func (r *Postgres) Consume(ctx context.Context, accountID string, purpose entity.Purpose, code string, now time.Time) error {
	const q = `UPDATE otps SET used=true
		WHERE account_id=$1 AND purpose=$2 AND code=$3 AND used=false AND expires_at > $4`
	res, err := r.db.ExecContext(ctx, q, accountID, purpose, code, now)
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

func (r *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
