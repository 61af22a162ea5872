package domain

import "time"

type Account struct {
	ID           string
	Identity     Identity
	DisplayName  string
	PasswordHash string // argon2id PHC string (legacy bcrypt accepted)
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Kind is the channel the account registered with.
func (a Account) Kind() IdentityKind { return a.Identity.Kind }
