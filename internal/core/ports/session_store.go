package ports

import (
	"context"
	"time"

	"github.com/taskhive/task-system/internal/core/domain"
)

// SessionStore is the session manager: it holds the authenticated identity
// and resolved role names for the lifetime of a client session.
type SessionStore interface {
	// Create persists user under a fresh session id and returns that id.
	Create(ctx context.Context, user *domain.SessionUser, ttl time.Duration) (string, error)

	// Get loads the session, or domain.ErrSessionNotFound when absent or
	// expired.
	Get(ctx context.Context, sid string) (*domain.SessionUser, error)

	// Touch extends the session's lifetime (sliding expiry).
	Touch(ctx context.Context, sid string, ttl time.Duration) error

	// Delete destroys the session. Deleting an absent session is not an
	// error.
	Delete(ctx context.Context, sid string) error
}
