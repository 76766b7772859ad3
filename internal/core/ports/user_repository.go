package ports

import (
	"context"

	"github.com/taskhive/task-system/internal/core/domain"
)

// UserRepository defines the credential store. Transaction participation is
// carried by the context: inside a TxRunner callback the context is a driver
// session context, so every read observes the same database snapshot.
type UserRepository interface {
	// FindByEmail returns the credential projection for the given email.
	// The role list is intentionally absent so failed logins never touch
	// the role store. Absence is reported as domain.ErrUserNotFound.
	FindByEmail(ctx context.Context, email string) (*domain.Credentials, error)

	// UpdatePassword replaces the stored digest and returns the number of
	// documents modified (0 or 1). A zero count means no such user; the
	// caller decides whether that is an error.
	UpdatePassword(ctx context.Context, email, digest string) (int64, error)

	// FindRoleRefsByEmail returns the ordered role-identifier list for the
	// user, or an empty slice when the user or its roles are absent.
	FindRoleRefsByEmail(ctx context.Context, email string) ([]string, error)
}

// RoleRepository resolves role identifiers to role names.
type RoleRepository interface {
	// ResolveNames maps a set of role ids to their names. Output order is
	// unspecified; empty input yields an empty result, not an error.
	ResolveNames(ctx context.Context, ids []string) ([]string, error)
}
