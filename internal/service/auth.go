// Package service contains the business rules of the bookshelf.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses forms, writes redirects and pages
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take plain values and return domain errors from apperror. They
// never see an *http.Request, so the same rules apply whether a review
// arrives through a form or a test.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/bookshelf/internal/apperror"
	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/model"
	"github.com/sakif/bookshelf/internal/repository"
)

// Rejections a visitor can see. They are shown verbatim as flash messages on
// the login page.
var (
	ErrUserNotFound  = apperror.Unauthorized("User not found")
	ErrWrongPassword = apperror.Unauthorized("Wrong password, please try again.")
	ErrUserExists    = apperror.Conflict("User already exists. Please log in.")
)

// Credential is what a visitor presents to sign in. It is a closed set:
// PasswordCredential for the login form and GoogleCredential for the OAuth
// callback. Both go through AuthService.Authenticate and end the same way,
// with a user to attach to the session.
type Credential interface {
	credential()
}

// PasswordCredential is an email and password from the login form.
type PasswordCredential struct {
	Email    string
	Password string
}

// GoogleCredential is a profile returned by a completed Google sign-in.
type GoogleCredential struct {
	Profile auth.GoogleProfile
}

func (PasswordCredential) credential() {}
func (GoogleCredential) credential()   {}

// AuthService signs users up and in.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		logger:    logger,
	}
}

// Authenticate resolves a credential to a user.
//
// A password credential fails with ErrUserNotFound or ErrWrongPassword. A
// Google credential never fails on credential grounds: an unknown email gets
// a new account. Any other error is a storage or hashing failure.
func (s *AuthService) Authenticate(ctx context.Context, cred Credential) (*model.User, error) {
	switch c := cred.(type) {
	case PasswordCredential:
		return s.authenticatePassword(ctx, c)
	case GoogleCredential:
		return s.authenticateGoogle(ctx, c)
	default:
		return nil, fmt.Errorf("authenticate: unsupported credential %T", cred)
	}
}

func (s *AuthService) authenticatePassword(ctx context.Context, c PasswordCredential) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(c.Email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("authenticate: looking up user: %w", err)
	}

	// Accounts created through Google have no usable password.
	if user.IsOAuth() {
		s.logger.Info("local login rejected for OAuth account", slog.Int64("userID", user.ID))
		return nil, ErrWrongPassword
	}

	if err := s.passwords.Verify(user.Password, c.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("authenticate: verifying password: %w", err)
	}

	return user, nil
}

func (s *AuthService) authenticateGoogle(ctx context.Context, c GoogleCredential) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, c.Profile.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("authenticate: looking up user: %w", err)
	}

	user = &model.User{
		FirstName: c.Profile.GivenName,
		LastName:  c.Profile.FamilyName,
		Email:     c.Profile.Email,
		Password:  model.GoogleSentinelPassword,
		Photo:     c.Profile.Picture,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("authenticate: creating Google user: %w", err)
	}

	s.logger.Info("user created from Google profile",
		slog.Int64("userID", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Signup registers a local account.
//
// The duplicate check is on the exact (first name, last name, email) triple,
// so the same email may appear on more than one account. Returns
// ErrUserExists for a duplicate. The password is hashed before the call
// returns.
func (s *AuthService) Signup(ctx context.Context, firstName, lastName, email, password string) (*model.User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = strings.TrimSpace(email)

	switch {
	case firstName == "":
		return nil, apperror.ValidationFailed("firstname", "first name is required")
	case lastName == "":
		return nil, apperror.ValidationFailed("lastname", "last name is required")
	case email == "":
		return nil, apperror.ValidationFailed("email", "email is required")
	case password == "":
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	exists, err := s.users.ExistsByIdentity(ctx, firstName, lastName, email)
	if err != nil {
		return nil, fmt.Errorf("signup: checking existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password must be at most 72 bytes")
		}
		return nil, fmt.Errorf("signup: hashing password: %w", err)
	}

	user := &model.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("signup: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.Int64("userID", user.ID))
	return user, nil
}
