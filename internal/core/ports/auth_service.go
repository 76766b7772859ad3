package ports

import (
	"context"

	"github.com/taskhive/task-system/internal/core/domain"
)

// AuthService orchestrates credential verification, role resolution, and
// session establishment as one atomic unit of work.
type AuthService interface {
	// Login verifies the credentials and, on success, establishes a session
	// and returns a signed token referencing it. Every failure — unknown
	// email, wrong password, or any internal error during the attempt —
	// surfaces as domain.ErrInvalidCredentials.
	Login(ctx context.Context, email, password string) (*domain.SessionUser, string, error)

	// Logout destroys the session referenced by the token. Unknown or
	// expired tokens are not an error.
	Logout(ctx context.Context, token string) error

	// UpdatePassword verifies the current password for email and replaces
	// the stored digest. Failures are masked as ErrInvalidCredentials.
	UpdatePassword(ctx context.Context, email, current, newPassword string) error
}
