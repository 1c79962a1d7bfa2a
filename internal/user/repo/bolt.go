package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ovaphlow/pitchfork/service-auth/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

// Bolt keeps accounts as JSON under their id, with a second bucket mapping
// email to id. Both are written in the same transaction.
type Bolt struct {
	db *bbolt.DB
}

func NewBolt(db *bbolt.DB) *Bolt { return &Bolt{db: db} }

func (r *Bolt) Create(_ context.Context, a *entity.Account) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		byEmail := tx.Bucket(database.BucketAccountsEmail)
		if byEmail.Get([]byte(a.Email)) != nil {
			return database.ErrDuplicate
		}
		if err := put(tx, a); err != nil {
			return err
		}
		return byEmail.Put([]byte(a.Email), []byte(a.ID))
	})
}

func (r *Bolt) GetByEmail(_ context.Context, email string) (*entity.Account, error) {
	var a *entity.Account
	err := r.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(database.BucketAccountsEmail).Get([]byte(email))
		if id == nil {
			return database.ErrNotFound
		}
		var err error
		a, err = get(tx, string(id))
		return err
	})
	return a, err
}

func (r *Bolt) GetByID(_ context.Context, id string) (*entity.Account, error) {
	var a *entity.Account
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		a, err = get(tx, id)
		return err
	})
	return a, err
}

func (r *Bolt) MarkVerified(_ context.Context, id string) error {
	return r.modify(id, func(a *entity.Account) { a.IsVerified = true })
}

func (r *Bolt) IncrementLoginAttempts(_ context.Context, id string) (int, error) {
	var n int
	err := r.modify(id, func(a *entity.Account) {
		a.LoginAttempts++
		n = a.LoginAttempts
	})
	return n, err
}

func (r *Bolt) ResetLoginAttempts(_ context.Context, id string) error {
	return r.modify(id, func(a *entity.Account) { a.LoginAttempts = 0 })
}

func (r *Bolt) UpdatePassword(_ context.Context, id, hash string) error {
	return r.modify(id, func(a *entity.Account) {
		a.PasswordHash = &hash
		a.LoginAttempts = 0
	})
}

func (r *Bolt) LinkGoogle(_ context.Context, id, googleID string) error {
	return r.modify(id, func(a *entity.Account) {
		a.GoogleID = &googleID
		a.IsVerified = true
	})
}

func (r *Bolt) ClaimForGoogle(_ context.Context, id, googleID, name string) error {
	return r.modify(id, func(a *entity.Account) {
		a.GoogleID = &googleID
		a.Name = name
		a.PasswordHash = nil
		a.IsVerified = true
		a.LoginAttempts = 0
	})
}

// modify runs fn on the stored account inside a single write transaction.
func (r *Bolt) modify(id string, fn func(*entity.Account)) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		a, err := get(tx, id)
		if err != nil {
			return err
		}
		fn(a)
		a.UpdatedAt = time.Now().UTC()
		return put(tx, a)
	})
}

func get(tx *bbolt.Tx, id string) (*entity.Account, error) {
	data := tx.Bucket(database.BucketAccounts).Get([]byte(id))
	if data == nil {
		return nil, database.ErrNotFound
	}
	var a entity.Account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}

func put(tx *bbolt.Tx, a *entity.Account) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	return tx.Bucket(database.BucketAccounts).Put([]byte(a.ID), data)
}
