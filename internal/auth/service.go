package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mathsprint/mathsprint/internal/auth/jwt"
	"github.com/mathsprint/mathsprint/internal/db/repository"
)

// Service handles account management and token issuance.
type Service struct {
	userRepo *repository.UserRepository
	tokenMgr *jwt.Manager
	logger   zerolog.Logger
}

// ServiceOptions configures the auth service.
type ServiceOptions struct {
	TokenConfig jwt.TokenConfig
}

// NewService creates an authentication service.
func NewService(userRepo *repository.UserRepository, opts ServiceOptions, logger zerolog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		tokenMgr: jwt.NewManager(opts.TokenConfig),
		logger:   logger,
	}
}

// Register creates a new account with an email and password.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, nil, fmt.Errorf("email required")
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, nil, fmt.Errorf("email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("lookup email: %w", err)
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	dbUser, err := s.userRepo.Create(ctx, &email, &passwordHash, displayName)
	if err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	user := &User{ID: dbUser.ID, Email: dbUser.Email, DisplayName: dbUser.DisplayName}
	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("email", email).Msg("user registered")
	return user, tokens, nil
}

// Login authenticates a user with email/password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	dbUser, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid credentials")
	}

	if dbUser.PasswordHash == nil {
		// OAuth-only account; no password to compare.
		return nil, nil, fmt.Errorf("invalid credentials")
	}
	if err := VerifyPassword(*dbUser.PasswordHash, req.Password); err != nil {
		return nil, nil, fmt.Errorf("invalid credentials")
	}

	user := &User{ID: dbUser.ID, Email: dbUser.Email, DisplayName: dbUser.DisplayName}

	_ = s.userRepo.UpdateLogin(ctx, user.ID)

	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return user, tokens, nil
}

// CreateOrGetOAuthUser resolves an OAuth identity to an account, creating one
// without a password on first sight.
func (s *Service) CreateOrGetOAuthUser(ctx context.Context, info *OAuthUserInfo) (*User, *TokenPair, error) {
	if info.Email == "" {
		return nil, nil, fmt.Errorf("OAuth provider did not return email")
	}
	email := strings.ToLower(info.Email)

	dbUser, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		displayName := info.Name
		if displayName == "" {
			displayName = strings.SplitN(email, "@", 2)[0]
		}
		dbUser, err = s.userRepo.Create(ctx, &email, nil, displayName)
		if err != nil {
			return nil, nil, fmt.Errorf("create oauth user: %w", err)
		}
		s.logger.Info().Str("user_id", dbUser.ID.String()).Msg("oauth user created")
	} else if err != nil {
		return nil, nil, fmt.Errorf("lookup oauth user: %w", err)
	}

	user := &User{ID: dbUser.ID, Email: dbUser.Email, DisplayName: dbUser.DisplayName}

	_ = s.userRepo.UpdateLogin(ctx, user.ID)

	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}
	return user, tokens, nil
}

// RefreshToken generates a new token pair from a refresh token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokenMgr.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	dbUser, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}

	user := User{ID: dbUser.ID, Email: dbUser.Email, DisplayName: dbUser.DisplayName}
	return s.generateTokenPair(user)
}

// ValidateToken validates an access token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return s.tokenMgr.ValidateAccessToken(tokenString)
}

func (s *Service) generateTokenPair(user User) (*TokenPair, error) {
	jwtUser := jwt.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}

	accessToken, err := s.tokenMgr.GenerateAccessToken(jwtUser)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokenMgr.GenerateRefreshToken(jwtUser)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(3600),
	}, nil
}
