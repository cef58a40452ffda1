package domain

import (
	"context"
	"time"
)

// AnonymousUserID identifies connections made without credentials.
const AnonymousUserID int64 = 0

type User struct {
	ID             int64
	Username       string
	Email          string
	HashedPassword string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

type NewUser struct {
	Username       string
	Email          string
	HashedPassword string
}

// UserSummary is the author block embedded in suggestion snapshots.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type UserRepository interface {
	// CreateUser fails with ErrDuplicateUser when the username or email is taken.
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// TokenIssuer maps credentials to stable user identities and back.
type TokenIssuer interface {
	Issue(userID int64, username string) (string, error)
	// Verify returns the user ID carried by a valid token.
	Verify(token string) (int64, error)
}
