package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	apperrors "github.com/ARRNAV26/Voting-System/internal/platform/errors"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	maxEmailLen    = 100
	minPasswordLen = 6
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func (in RegisterInput) validate() error {
	n := utf8.RuneCountInString(in.Username)
	switch {
	case strings.TrimSpace(in.Username) == "" || n < minUsernameLen || n > maxUsernameLen:
		return apperrors.ValidationError(fmt.Sprintf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)).
			WithField("field", "username")
	case !strings.Contains(in.Email, "@") || len(in.Email) > maxEmailLen:
		return apperrors.ValidationError("email is not valid").WithField("field", "email")
	case len(in.Password) < minPasswordLen:
		return apperrors.ValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLen)).
			WithField("field", "password")
	}
	return nil
}

// Register creates an active user. A taken username or email yields
// domain.ErrDuplicateUser.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, domain.NewUser{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hash,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login checks credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !s.hasher.Verify(user.HashedPassword, password) {
		return "", domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", domain.ErrInactiveUser
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInactiveUser
	}
	return user, nil
}

// ResolveIdentity maps an optional token to a connection identity. An empty
// token is the anonymous identity.
func (s *Service) ResolveIdentity(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return domain.AnonymousUserID, nil
	}
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return domain.AnonymousUserID, err
	}
	return user.ID, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetUserByID(ctx, id)
}
