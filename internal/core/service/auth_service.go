package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/taskhive/task-system/internal/core/domain"
	"github.com/taskhive/task-system/internal/core/ports"
)

// PasswordManager abstracts the one-way hashing capability.
type PasswordManager interface {
	Hash(secret string) (string, error)
	Compare(secret, digest string) bool
}

// AuthService implements login, logout, and password updates.
type AuthService struct {
	users      ports.UserRepository
	roles      ports.RoleRepository
	sessions   ports.SessionStore
	tx         ports.TxRunner
	passwords  PasswordManager
	jwtSecret  string
	sessionTTL time.Duration
	log        zerolog.Logger
}

func NewAuthService(
	users ports.UserRepository,
	roles ports.RoleRepository,
	sessions ports.SessionStore,
	tx ports.TxRunner,
	passwords PasswordManager,
	jwtSecret string,
	sessionTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		users:      users,
		roles:      roles,
		sessions:   sessions,
		tx:         tx,
		passwords:  passwords,
		jwtSecret:  jwtSecret,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// Login runs the whole attempt as one atomic unit: the credential lookup and
// role resolution share a transaction so the roles written into the session
// always match the user record that authenticated. Every failure — unknown
// email, wrong password, or an internal error anywhere in the body — aborts
// the transaction and surfaces as ErrInvalidCredentials; the concrete cause
// is only logged.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.SessionUser, string, error) {
	if email == "" || password == "" {
		return nil, "", domain.ErrInvalidCredentials
	}

	var sessionUser *domain.SessionUser
	var sid string

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		user, err := s.users.FindByEmail(txCtx, email)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}

		if !s.passwords.Compare(password, user.PasswordHash) {
			return domain.ErrInvalidCredentials
		}

		roleRefs, err := s.users.FindRoleRefsByEmail(txCtx, email)
		if err != nil {
			return fmt.Errorf("find role refs: %w", err)
		}

		roleNames, err := s.roles.ResolveNames(txCtx, roleRefs)
		if err != nil {
			return fmt.Errorf("resolve role names: %w", err)
		}

		sessionUser = &domain.SessionUser{
			ID:       user.ID,
			Email:    user.Email,
			Username: user.Username,
			Roles:    roleNames,
		}

		sid, err = s.sessions.Create(txCtx, sessionUser, s.sessionTTL)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Info().Err(err).Str("email", email).Msg("login attempt rejected")
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := s.signToken(sid)
	if err != nil {
		// The session exists but cannot be referenced; destroy it so no
		// orphaned identity outlives the failed attempt.
		_ = s.sessions.Delete(ctx, sid)
		s.log.Error().Err(err).Msg("failed to sign session token")
		return nil, "", domain.ErrInvalidCredentials
	}

	s.log.Info().Str("user_id", sessionUser.ID).Strs("roles", sessionUser.Roles).Msg("login succeeded")
	return sessionUser, token, nil
}

// Logout destroys the session referenced by token. Malformed or expired
// tokens are treated as already logged out.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	sid, err := ParseSessionToken(token, s.jwtSecret)
	if err != nil {
		return nil
	}
	return s.sessions.Delete(ctx, sid)
}

// UpdatePassword verifies the current password and stores a fresh digest.
// All failure causes are masked as ErrInvalidCredentials.
func (s *AuthService) UpdatePassword(ctx context.Context, email, current, newPassword string) error {
	if email == "" || current == "" || newPassword == "" {
		return domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.log.Info().Err(err).Str("email", email).Msg("password update rejected")
		return domain.ErrInvalidCredentials
	}
	if !s.passwords.Compare(current, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	digest, err := s.passwords.Hash(newPassword)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to hash password")
		return domain.ErrInvalidCredentials
	}

	n, err := s.users.UpdatePassword(ctx, email, digest)
	if err != nil {
		s.log.Error().Err(err).Str("email", email).Msg("failed to store password")
		return domain.ErrInvalidCredentials
	}
	if n == 0 {
		// The user vanished between verification and write. Masked like
		// every other cause.
		return domain.ErrInvalidCredentials
	}
	return nil
}

// signToken wraps the session id in a signed JWT so clients cannot forge or
// guess session references. The session itself lives server-side.
func (s *AuthService) signToken(sid string) (string, error) {
	claims := jwt.MapClaims{
		"sid": sid,
		"exp": time.Now().Add(s.sessionTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

// ParseSessionToken validates token and extracts the session id. Only HS256
// signatures are accepted.
func ParseSessionToken(token, secret string) (string, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !tkn.Valid {
		return "", domain.ErrSessionNotFound
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", domain.ErrSessionNotFound
	}
	return sid, nil
}
