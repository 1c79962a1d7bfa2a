package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ovaphlow/pitchfork/service-auth/internal/session/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

// Bolt keys refresh tokens by their hash.
type Bolt struct {
	db *bbolt.DB
}

func NewBolt(db *bbolt.DB) *Bolt {
	return &Bolt{db: db}
}

func (r *Bolt) Create(_ context.Context, t *entity.RefreshToken) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(database.BucketRefreshTokens)
		if b.Get([]byte(t.TokenHash)) != nil {
			return database.ErrDuplicate
		}
		return b.Put([]byte(t.TokenHash), data)
	})
}

func (r *Bolt) GetByHash(_ context.Context, hash string) (*entity.RefreshToken, error) {
	var t *entity.RefreshToken
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(database.BucketRefreshTokens).Get([]byte(hash))
		if data == nil {
			return database.ErrNotFound
		}
		t = &entity.RefreshToken{}
		if err := json.Unmarshal(data, t); err != nil {
			return fmt.Errorf("unmarshal refresh token: %w", err)
		}
		return nil
	})
	return t, err
}

func (r *Bolt) DeleteByHash(_ context.Context, hash string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(database.BucketRefreshTokens)
		if b.Get([]byte(hash)) == nil {
			return database.ErrNotFound
		}
		return b.Delete([]byte(hash))
	})
}

func (r *Bolt) DeleteByAccount(_ context.Context, accountID string) error {
	_, err := r.deleteWhere(func(t *entity.RefreshToken) bool { return t.AccountID == accountID })
	return err
}

func (r *Bolt) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(t *entity.RefreshToken) bool { return t.Expired(now) })
}

func (r *Bolt) deleteWhere(match func(*entity.RefreshToken) bool) (int64, error) {
	var n int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(database.BucketRefreshTokens)
		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var t entity.RefreshToken
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("unmarshal refresh token: %w", err)
			}
			if match(&t) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
