package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ovaphlow/pitchfork/service-auth/internal/otp/entity"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
)

type Bolt struct {
	db *bbolt.DB
}

func NewBolt(db *bbolt.DB) *Bolt { return &Bolt{db: db} }

func (r *Bolt) Create(_ context.Context, rec *entity.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(database.BucketOTPs).Put([]byte(rec.ID), data)
	})
}

func (r *Bolt) DeleteByAccount(_ context.Context, accountID string) error {
	_, err := r.deleteWhere(func(rec *entity.Record) bool { return rec.AccountID == accountID })
	return err
}

func (r *Bolt) Consume(_ context.Context, accountID string, purpose entity.Purpose, code string, now time.Time) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(database.BucketOTPs)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec entity.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal otp: %w", err)
			}
			if rec.AccountID != accountID || !rec.Matches(purpose, code, now) {
				continue
			}
			rec.Used = true
			data, err := json.Marshal(&rec)
			if err != nil {
				return fmt.Errorf("marshal otp: %w", err)
			}
			return b.Put([]byte(rec.ID), data)
		}
		return database.ErrNotFound
	})
}

func (r *Bolt) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(rec *entity.Record) bool { return !rec.ExpiresAt.After(now) })
}

func (r *Bolt) deleteWhere(match func(*entity.Record) bool) (int64, error) {
	var n int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(database.BucketOTPs)
		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec entity.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal otp: %w", err)
			}
			if match(&rec) {
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
