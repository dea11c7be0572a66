package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"ampa/internal/models"
	"ampa/internal/repository"
	"ampa/internal/security"
)

// AuthService verifies credentials and manages sessions
type AuthService struct {
	userRepo        *repository.UserRepository
	sessionDuration time.Duration
	now             func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repository.UserRepository, sessionDuration time.Duration) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		sessionDuration: sessionDuration,
		now:             time.Now,
	}
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords fail the same way.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, storageFault("get user", err)
	}
	if user == nil {
		security.BurnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}

	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// CreateSession issues a new session token for a user
func (s *AuthService) CreateSession(ctx context.Context, userID int64) (*models.Session, error) {
	createdAt := s.now().UTC()
	session, err := s.userRepo.CreateSession(ctx, security.GenerateSessionToken(), userID, createdAt, createdAt.Add(s.sessionDuration))
	if err != nil {
		return nil, storageFault("create session", err)
	}
	return session, nil
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	return user, session, nil
}

// ResolveSession returns the user behind a token. Empty, unknown and expired
// tokens resolve to nil without an error and nothing is written.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.userRepo.GetSession(ctx, token)
	if err != nil {
		return nil, storageFault("get session", err)
	}
	if session == nil || session.IsExpiredAt(s.now()) {
		return nil, nil
	}

	user, err := s.userRepo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, storageFault("get user", err)
	}
	return user, nil
}

// DestroySession logs out a session. Unknown tokens are ignored.
func (s *AuthService) DestroySession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.userRepo.DeleteSession(ctx, token); err != nil {
		return storageFault("delete session", err)
	}
	return nil
}

// CleanupExpiredSessions removes all expired sessions
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) error {
	removed, err := s.userRepo.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	if removed > 0 {
		log.Printf("Removed %d expired sessions", removed)
	}
	return nil
}
