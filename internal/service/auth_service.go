package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tenismatch/internal/domain"
	"tenismatch/internal/security"
)

// AuthService handles registration, login and token resolution.
type AuthService struct {
	users  domain.UserRepository
	tokens *security.TokenService
	hash   *security.PasswordHasher
}

func NewAuthService(users domain.UserRepository, tokens *security.TokenService, hash *security.PasswordHasher) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hash:   hash,
	}
}

type RegisterInput struct {
	Username    string
	DisplayName string
	Password    string
}

type LoginInput struct {
	Username string
	Password string
	// TTL overrides the default token lifetime when positive.
	TTL time.Duration
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}

	existing, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, classify("check username", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = in.Username
	}
	user := &domain.User{
		Username:       in.Username,
		DisplayName:    display,
		HashedPassword: hashed,
		IsActive:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, classify("create user", err)
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		return nil, classify("get user", err)
	}
	if user == nil || !user.IsActive || s.hash.Verify(in.Password, user.HashedPassword) != nil {
		return nil, fmt.Errorf("%w: invalid username or password", domain.ErrUnauthorized)
	}

	var token string
	if in.TTL > 0 {
		token, err = s.tokens.CreateWithTTL(user.ID, in.TTL)
	} else {
		token, err = s.tokens.CreateForUser(user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &TokenResponse{AccessToken: token, TokenType: "bearer", User: user}, nil
}

// Authenticate resolves a token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, classify("get user", err)
	}
	if user == nil || !user.IsActive {
		return nil, fmt.Errorf("%w: inactive or unknown user", domain.ErrUnauthorized)
	}
	return user, nil
}
