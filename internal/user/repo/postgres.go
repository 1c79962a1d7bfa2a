package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

const accountColumns = `id, name, email, password_hash, google_id, role, is_verified, login_attempts, created_at, updated_at`

// Postgres provides data access for the accounts table using sqlx.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

// Create inserts a new account row. A duplicate email yields database.ErrDuplicate.
func (r *Postgres) Create(ctx context.Context, a *entity.Account) error {
	const q = `INSERT INTO accounts (` + accountColumns + `)
		VALUES (:id, :name, :email, :password_hash, :google_id, :role, :is_verified, :login_attempts, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, a); err != nil {
		if isUniqueViolation(err) {
			return database.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByEmail matches the email exactly as stored.
func (r *Postgres) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email=$1`, email)
}

func (r *Postgres) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
}

func (r *Postgres) get(ctx context.Context, q string, arg any) (*entity.Account, error) {
	var row entity.Account
	if err := r.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *Postgres) MarkVerified(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE accounts SET is_verified=true, updated_at=$2 WHERE id=$1`, id, time.Now().UTC())
}

// IncrementLoginAttempts bumps the failure counter and returns the new value.
func (r *Postgres) IncrementLoginAttempts(ctx context.Context, id string) (int, error) {
	const q = `UPDATE accounts SET login_attempts = login_attempts + 1, updated_at=$2 WHERE id=$1 RETURNING login_attempts`
	var n int
	if err := r.db.GetContext(ctx, &n, q, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrNotFound
		}
		return 0, err
	}
	return n, nil
}

func (r *Postgres) ResetLoginAttempts(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE accounts SET login_attempts=0, updated_at=$2 WHERE id=$1`, id, time.Now().UTC())
}

// UpdatePassword replaces the hash and clears the failure counter.
func (r *Postgres) UpdatePassword(ctx context.Context, id, hash string) error {
	const q = `UPDATE accounts SET password_hash=$2, login_attempts=0, updated_at=$3 WHERE id=$1`
	return r.exec(ctx, q, id, hash, time.Now().UTC())
}

// LinkGoogle records the Google subject and marks the account verified.
func (r *Postgres) LinkGoogle(ctx context.Context, id, googleID string) error {
	const q = `UPDATE accounts SET google_id=$2, is_verified=true, updated_at=$3 WHERE id=$1`
	return r.exec(ctx, q, id, googleID, time.Now().UTC())
}

// ClaimForGoogle hands an unverified account to the Google identity: the
// unconfirmed password is dropped and the display name replaced.
func (r *Postgres) ClaimForGoogle(ctx context.Context, id, googleID, name string) error {
	const q = `UPDATE accounts SET google_id=$2, name=$3, password_hash=NULL, is_verified=true, login_attempts=0, updated_at=$4 WHERE id=$1`
	return r.exec(ctx, q, id, googleID, name, time.Now().UTC())
}

func (r *Postgres) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
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

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
