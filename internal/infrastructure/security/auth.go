// Package security verifies the bearer tokens presented to the pantry API
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/infrastructure/config"
)

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid token")

// TokenType represents different types of JWT tokens
type TokenType string

const (
	AccessToken TokenType = "access"
)

// Claims represents JWT claims structure.
// The user id is carried both in user_id and the standard sub claim.
type Claims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// AuthService issues and validates HMAC signed access tokens
type AuthService struct {
	issuer    string
	jwtSecret []byte
	logger    *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		issuer:    cfg.Issuer,
		jwtSecret: []byte(cfg.JWTSecret),
		logger:    logger.Named("auth"),
	}
}

// GenerateAccessToken creates a new access token for userID valid for ttl
func (a *AuthService) GenerateAccessToken(userID uuid.UUID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID.String(),
		Email:     email,
		TokenType: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates and parses a JWT access token
func (a *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", ErrInvalidToken)
	}

	if claims.TokenType != "" && claims.TokenType != AccessToken {
		return nil, fmt.Errorf("%w: invalid token type %s", ErrInvalidToken, claims.TokenType)
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}

	return claims, nil
}

// Authenticate validates a token and returns the user it was issued to
func (a *AuthService) Authenticate(tokenString string) (uuid.UUID, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		a.logger.Debug("Token validation failed", zap.Error(err))
		return uuid.Nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: user id is not a uuid", ErrInvalidToken)
	}

	return userID, nil
}
