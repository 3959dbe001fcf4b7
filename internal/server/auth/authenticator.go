// Package auth implements credential checks for the HTTP API: bcrypt
// password digests, HS256 bearer tokens, and the two authentication
// strategies built on them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// UserFinder is the part of the credential store the strategies need.
type UserFinder interface {
	GetUserByLogin(ctx context.Context, userName string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Authenticator resolves principals from a username/password pair or from a
// bearer Authorization header.
type Authenticator struct {
	users  UserFinder
	hasher *PasswordHasher
	tokens *TokenService

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthenticator(users UserFinder, hasher *PasswordHasher, tokens *TokenService) *Authenticator {
	return &Authenticator{users: users, hasher: hasher, tokens: tokens}
}

// Password authenticates by username and password. Rejections wrap
// common.ErrUnauthenticated; the specific reason is ErrIncorrectUsername or
// ErrIncorrectPassword.
func (a *Authenticator) Password(ctx context.Context, userName, password string) (*models.User, error) {
	user, err := a.users.GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// same bcrypt cost for unknown users
			a.hasher.Verify(password, a.dummy())
			return nil, fmt.Errorf("%w: %w", common.ErrUnauthenticated, common.ErrIncorrectUsername)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !a.hasher.Verify(password, user.PasswordHash) {
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthenticated, common.ErrIncorrectPassword)
	}

	return user, nil
}

// Bearer authenticates the value of an Authorization header.
func (a *Authenticator) Bearer(ctx context.Context, header string) (*models.User, error) {
	token, ok := ExtractBearer(header)
	if !ok {
		return nil, common.ErrUnauthenticated
	}

	userID, err := a.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}

	user, err := a.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return user, nil
}

// ExtractBearer returns the token from "Bearer <token>". The scheme is
// matched case-insensitively.
func ExtractBearer(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], common.BearerScheme) {
		return "", false
	}
	return parts[1], true
}

func (a *Authenticator) dummy() string {
	a.dummyOnce.Do(func() {
		a.dummyDigest, _ = a.hasher.Hash("filekeeper-dummy-password")
	})
	return a.dummyDigest
}
