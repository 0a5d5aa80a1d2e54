package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marpro/internal/config"
	"marpro/internal/domain"
	"marpro/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "marpro-admin"

type sessionClaims struct {
	Client string `json:"client,omitempty"`
	jwt.RegisteredClaims
}

// AuthService guards the admin area with a shared secret. A token is only
// accepted while its signature, its expiry and its server side session are
// all valid, so logout revokes it immediately.
type AuthService struct {
	sessions      domain.SessionRepository
	passwordHash  []byte
	secret        []byte
	ttl           time.Duration
	loginAttempts int
	loginWindow   time.Duration
	now           func() time.Time
	logger        *zerolog.Logger
}

func NewAuthService(sessions domain.SessionRepository, cfg config.AdminConfig, logger *zerolog.Logger) *AuthService {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = models.DefaultSessionTTL
	}
	attempts := cfg.LoginAttempts
	if attempts <= 0 {
		attempts = models.LoginAttempts
	}
	window := cfg.LoginWindow
	if window <= 0 {
		window = models.LoginWindow
	}
	return &AuthService{
		sessions:      sessions,
		passwordHash:  []byte(cfg.PasswordHash),
		secret:        []byte(cfg.SessionSecret),
		ttl:           ttl,
		loginAttempts: attempts,
		loginWindow:   window,
		now:           time.Now,
		logger:        logger,
	}
}

// Login checks the password and opens a session for client (usually the
// remote address). Every attempt counts against the client's limit.
func (s *AuthService) Login(ctx context.Context, password, client string) (string, time.Time, error) {
	allowed, err := s.sessions.CheckRateLimit(ctx, "login:"+client, s.loginAttempts, s.loginWindow)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("check login rate limit: %w", err)
	}
	if !allowed {
		s.logger.Warn().Str("client", client).Msg("login rate limited")
		return "", time.Time{}, domain.ErrRateLimited
	}

	if password == "" || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) != nil {
		s.logger.Warn().Str("client", client).Msg("admin login failed")
		return "", time.Time{}, domain.ErrAuthFailure
	}

	now := s.now()
	session := &models.AdminSession{
		ID:        uuid.NewString(),
		Client:    client,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	claims := sessionClaims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return "", time.Time{}, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info().Str("client", client).Str("session_id", session.ID).Msg("admin logged in")
	return token, session.ExpiresAt, nil
}

// Validate returns the live session behind token or ErrAuthFailure.
func (s *AuthService) Validate(ctx context.Context, token string) (*models.AdminSession, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, domain.ErrAuthFailure
	}
	return session, nil
}

// Logout drops the session. Unknown or expired tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailure) {
			return nil
		}
		return err
	}
	if err := s.sessions.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info().Str("session_id", claims.ID).Msg("admin logged out")
	return nil
}

func (s *AuthService) parse(token string) (*sessionClaims, error) {
	if token == "" {
		return nil, domain.ErrAuthFailure
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, domain.ErrAuthFailure
	}
	return claims, nil
}
