package database

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket names shared by the bolt repositories.
var (
	BucketAccounts       = []byte("accounts")
	BucketAccountsEmail  = []byte("accounts_by_email")
	BucketOTPs           = []byte("otps")
	BucketRefreshTokens  = []byte("refresh_tokens")
	boltBuckets          = [][]byte{BucketAccounts, BucketAccountsEmail, BucketOTPs, BucketRefreshTokens}
	defaultBoltOpenDelay = time.Second
)

// OpenBolt opens (or creates) the bolt file at path and creates every bucket
// the repositories use.
func OpenBolt(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: defaultBoltOpenDelay})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
