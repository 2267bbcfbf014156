package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *shared.TokenManager
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *shared.TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Authenticate validates email/password credentials.
// Unknown accounts, inactive accounts and wrong passwords all collapse to
// ErrInvalidCredentials so responses don't leak which one failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a self-service account. New accounts carry no roles
// until an admin assigns one.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, fmt.Errorf("auth: name and email required: %w", shared.ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("auth: password must be at least 8 characters: %w", shared.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, name, email, string(hash))
}

// IssueToken creates a bearer token in Redis and records it in postgres.
func (s *Service) IssueToken(ctx context.Context, userID int64) (string, error) {
	token, err := s.tokens.Issue(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.repo.RecordToken(ctx, token, userID, time.Now().Add(s.tokens.TTL())); err != nil {
		return "", err
	}
	return token, nil
}

// RevokeToken invalidates a bearer token in both stores.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return err
	}
	return s.repo.DeleteToken(ctx, token)
}
