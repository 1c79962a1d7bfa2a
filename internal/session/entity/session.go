package entity

import "time"

// RefreshToken is the server-side record of an issued refresh token. Only
// the SHA-256 hex digest of the secret is stored.
type RefreshToken struct {
	ID        string    `db:"id" bson:"_id" json:"id"`
	AccountID string    `db:"account_id" bson:"userId" json:"accountId"`
	TokenHash string    `db:"token_hash" bson:"tokenHashed" json:"tokenHash"`
	ExpiresAt time.Time `db:"expires_at" bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" bson:"createdAt" json:"createdAt"`
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
