package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayush/project-tracker/internal/apierr"
	"github.com/ayush/project-tracker/internal/models"
	"github.com/ayush/project-tracker/internal/validate"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// PasswordHasher is a one-way hash with a constant-time compare.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) bool
}

// TokenSigner issues session tokens.
type TokenSigner interface {
	Sign(p Principal) (string, error)
}

// Shared by every failed login so callers cannot tell which field was wrong.
const invalidCredentials = "Invalid email or password"

// Service implements registration, login and current-user lookup.
type Service struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenSigner

	dummyOnce sync.Once
	dummyHash string
}

func NewService(users UserStore, hasher PasswordHasher, tokens TokenSigner) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// Register creates a user with the user role and issues a token for it.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	user, err := s.createUser(ctx, req.Name, req.Email, req.Password, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password produce the same error.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Same cost as the wrong-password path.
			s.hasher.Compare(req.Password, s.dummy())
			return nil, apierr.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Compare(req.Password, user.PasswordHash) {
		return nil, apierr.Unauthorized(invalidCredentials)
	}
	return s.issue(user)
}

// Me returns the user behind a previously issued token.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, apierr.NotFound("User not found")
		}
		return nil, fmt.Errorf("current user: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates an admin account for email unless a user with that
// email already exists. It reports whether a user was created. The input
// must satisfy the same rules as a registration.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	req := models.RegisterRequest{Name: name, Email: email, Password: password}
	if err := validate.Struct(&req); err != nil {
		return false, fmt.Errorf("ensure admin: %w", err)
	}
	name, email = req.Name, req.Email

	_, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, fmt.Errorf("ensure admin: %w", err)
	}

	if _, err := s.createUser(ctx, name, email, password, models.RoleAdmin); err != nil {
		if apierr.Is(err, apierr.CodeConflict) {
			return false, nil
		}
		return false, fmt.Errorf("ensure admin: %w", err)
	}
	return true, nil
}

func (s *Service) createUser(ctx context.Context, name, email, password string, role models.Role) (*models.User, error) {
	_, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apierr.Conflict("Email already registered")
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
	})
	if err != nil {
		// Lost the race against a concurrent registration.
		if errors.Is(err, models.ErrDuplicate) {
			return nil, apierr.Conflict("Email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) issue(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Sign(Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{User: user, Token: token}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}
