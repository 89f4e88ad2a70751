// Package auth provides authentication functionality.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// JWT errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// JWTConfig contains configuration for the JWT provider.
type JWTConfig struct {
	// Secret is the verification key for JWTs.
	Secret string

	// Issuer is the expected issuer of the JWT.
	Issuer string

	// Audience is the expected audience of the JWT.
	Audience string
}

// JWTClaims extends the standard JWT claims with custom fields. The subject
// is the numeric user id as a string; Username travels alongside it.
type JWTClaims struct {
	// Username is the user's display name.
	Username string `json:"username"`

	// RegisteredClaims contains the standard JWT claims.
	jwt.RegisteredClaims
}

// JWTProvider implements the Provider interface using JWT.
type JWTProvider struct {
	config JWTConfig
	logger *utils.Logger
}

// NewJWTProvider creates a new JWT provider.
func NewJWTProvider(config JWTConfig, logger *utils.Logger) *JWTProvider {
	return &JWTProvider{
		config: config,
		logger: logger.Named("jwt_provider"),
	}
}

// ValidateToken validates a JWT token and returns the claims.
func (p *JWTProvider) ValidateToken(tokenString string) (*Claims, error) {
	parsed := JWTClaims{}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(time.Second),
		jwt.WithExpirationRequired(),
	}
	if p.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.config.Issuer))
	}
	if p.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.config.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &parsed, func(token *jwt.Token) (any, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(p.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		p.logger.Debug("Failed to parse JWT token", "error", err.Error())
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(parsed.Subject, 10, 32)
	if err != nil || userID <= 0 {
		p.logger.Warn("JWT subject is not a user id", "subject", parsed.Subject)
		return nil, ErrInvalidClaims
	}

	return &Claims{
		UserID:   int32(userID),
		Username: parsed.Username,
	}, nil
}

// GenerateToken creates a signed token for a user. Production tokens come
// from the web frontend; this exists for tests and local development.
func (p *JWTProvider) GenerateToken(userID int32, username string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.config.Issuer,
			Subject:   strconv.FormatInt(int64(userID), 10),
			Audience:  jwt.ClaimStrings{p.config.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(p.config.Secret))
}
