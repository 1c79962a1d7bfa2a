package entity

import "time"

type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeReset  Purpose = "reset"
)

// Record is a single issued passcode. Once Used is set it never matches again.
type Record struct {
	ID        string    `db:"id" bson:"_id" json:"id"`
	AccountID string    `db:"account_id" bson:"userId" json:"accountId"`
	Purpose   Purpose   `db:"purpose" bson:"purpose" json:"purpose"`
	Code      string    `db:"code" bson:"otp" json:"code"`
	ExpiresAt time.Time `db:"expires_at" bson:"expiresAt" json:"expiresAt"`
	Used      bool      `db:"used" bson:"isUsed" json:"used"`
	CreatedAt time.Time `db:"created_at" bson:"createdAt" json:"createdAt"`
}

// Matches reports whether the record can still be consumed with code at now.
func (r *Record) Matches(purpose Purpose, code string, now time.Time) bool {
	return !r.Used && r.Purpose == purpose && r.Code == code && r.ExpiresAt.After(now)
}
