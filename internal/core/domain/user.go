package domain

import "time"

const (
	RoleBasic     = "basic"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User models an account stored in the users collection. The Roles list is a
// cumulative hierarchy established at provisioning time: a user created at
// level N carries the role ids of every level from 0 up to N.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Credentials is the projection returned by the credential store for login.
// It deliberately excludes the role list so that failed authentication never
// touches the role store.
type Credentials struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
}

// Role is a single named hierarchy level, immutable once created.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionUser is the identity held by the session manager for the lifetime of
// an authenticated client session.
type SessionUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the session carries the given role name. Because
// role provisioning is cumulative, checking the minimum required role is
// sufficient for authorization.
func (u *SessionUser) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}
