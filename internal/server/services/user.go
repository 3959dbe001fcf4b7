// Package services contains server-side business logic: UserService for
// registration and login, FileService for the upload, list, download, rename
// and delete protocols that span the metadata and object stores.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/auth"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,4}$`)

// UserService registers users and logs them in.
type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	hasher        *auth.PasswordHasher
	tokens        *auth.TokenService
	authenticator *auth.Authenticator
}

// NewUserService constructs a UserService.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.PasswordHasher,
	tokens *auth.TokenService, authenticator *auth.Authenticator) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		hasher:        hasher,
		tokens:        tokens,
		authenticator: authenticator,
	}
}

// Register validates the input and creates a user. Checks run in order and
// the first failure is returned: email shape, taken username, taken email,
// password length.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrBadRequest)
	}
	if !emailPattern.MatchString(email) {
		return nil, common.ErrInvalidEmail
	}

	repo := s.repomanager.Users(s.db)

	if _, err := repo.GetUserByLogin(ctx, username); err == nil {
		return nil, common.ErrUsernameExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if _, err := repo.GetUserByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching email: %w", err)
	}

	if len(password) < common.PasswordMinLength {
		return nil, common.ErrPasswordTooShort
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	u, err := repo.Create(ctx, &models.User{UserName: username, Email: email, PasswordHash: digest})
	if err != nil {
		var ce *common.ConflictError
		if errors.As(err, &ce) {
			if ce.Field == "email" {
				return nil, common.ErrEmailExists
			}
			return nil, common.ErrUsernameExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login checks the password and returns a signed bearer token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", common.ErrUnauthenticated
	}

	user, err := s.authenticator.Password(ctx, username, password)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("error issuing token: %w", err)
	}
	return token, nil
}
