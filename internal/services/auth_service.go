package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"equiviz/internal/domain"
	"equiviz/internal/store"
)

// AuthService manages accounts and issues bearer tokens. Tokens are
// HS256 JWTs; verification is stateless, so logout is a client-side
// token discard.
type AuthService struct {
	users  *store.UserStore
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

// authClaims are the claims carried by issued tokens.
type authClaims struct {
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// NewAuthService creates an auth service. ttl <= 0 defaults to 24h.
func NewAuthService(users *store.UserStore, secret string, ttl time.Duration, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Register creates a new account. Duplicate usernames surface as a
// ConflictError from the store.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username))
	return user, nil
}

// LoginResult is the successful login payload.
type LoginResult struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Login verifies credentials and issues a token. A missing user and a
// wrong password both surface as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		var nfe *domain.NotFoundError
		if errors.As(err, &nfe) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := authClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.New().String(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username))

	return &LoginResult{UserID: user.ID, Username: user.Username, Token: token}, nil
}

// Verify validates a bearer token and resolves the caller identity.
func (s *AuthService) Verify(ctx context.Context, tokenString string) (*domain.Identity, error) {
	claims := &authClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &domain.Identity{UserID: userID, Username: claims.Username}, nil
}
