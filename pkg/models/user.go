// Package models provides domain types for the Rickbot chat gateway.
package models

import "time"

// Provider identifies the identity provider that issued a credential.
type Provider string

const (
	ProviderMock   Provider = "mock"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// User is an authenticated identity resolved from a bearer token.
// It is immutable once constructed and is never persisted as-is; the
// durable representation is UserRecord.
//
// IDs are only unique within a provider namespace, so identity equality
// is always (ID, Provider), never ID alone.
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
}

// Key returns the provider-qualified identity key.
func (u *User) Key() string {
	return string(u.Provider) + ":" + u.ID
}

// Role is an access tier. Two levels only: supporter ⊇ standard.
type Role string

const (
	RoleStandard  Role = "standard"
	RoleSupporter Role = "supporter"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleSupporter
}

// UserRecord is the durable per-(id, provider) user row. Created lazily
// on first gated access or explicit sync; the role is only ever changed
// out-of-band by an operator.
type UserRecord struct {
	ID        string    `json:"id"`
	Provider  Provider  `json:"provider"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	LastLogin time.Time `json:"last_login"`
}
