package entity

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a registered identity. PasswordHash is nil for accounts that
// only ever signed in through Google; GoogleID is nil until a Google login
// links the account.
type Account struct {
	ID            string    `db:"id" bson:"_id" json:"id"`
	Name          string    `db:"name" bson:"name" json:"name"`
	Email         string    `db:"email" bson:"email" json:"email"`
	PasswordHash  *string   `db:"password_hash" bson:"password,omitempty" json:"passwordHash,omitempty"`
	GoogleID      *string   `db:"google_id" bson:"googleId,omitempty" json:"googleId,omitempty"`
	Role          Role      `db:"role" bson:"role" json:"role"`
	IsVerified    bool      `db:"is_verified" bson:"isVerified" json:"isVerified"`
	LoginAttempts int       `db:"login_attempts" bson:"loginAttempts" json:"loginAttempts"`
	CreatedAt     time.Time `db:"created_at" bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" bson:"updatedAt" json:"updatedAt"`
}

// HasPassword is false for social-only accounts.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// PublicView is the projection returned to clients.
type PublicView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (a *Account) Public() PublicView {
	return PublicView{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role}
}
