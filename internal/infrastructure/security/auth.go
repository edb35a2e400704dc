// Package security provides operator authorization and request validation
package security

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const audience = "recipeflow-api"

var (
	// ErrMissingToken is returned when no bearer token was presented
	ErrMissingToken = errors.New("authorization header required")
	// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotOperator is returned when a valid token lacks an operator role
	ErrNotOperator = errors.New("operator role required")
)

// Claims represents JWT claims structure
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies operator tokens
type TokenService struct {
	secret        []byte
	issuer        string
	expiration    time.Duration
	operatorRoles []string
	logger        *zap.Logger
	now           func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(cfg config.AuthConfig, logger *zap.Logger) *TokenService {
	return &TokenService{
		secret:        []byte(cfg.JWTSecret),
		issuer:        cfg.JWTIssuer,
		expiration:    cfg.JWTExpiration,
		operatorRoles: cfg.OperatorRoles,
		logger:        logger.Named("auth"),
		now:           time.Now,
	}
}

// Mint creates a signed token for subject carrying role. A zero ttl uses the
// configured expiration.
func (a *TokenService) Mint(subject, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = a.expiration
	}
	now := a.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   subject,
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify parses tokenString and checks that it grants an operator role
func (a *TokenService) Verify(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if !slices.Contains(a.operatorRoles, claims.Role) {
		a.logger.Warn("Token without operator role rejected",
			zap.String("subject", claims.Subject),
			zap.String("role", claims.Role),
		)
		return nil, ErrNotOperator
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("%w: invalid authorization header format", ErrInvalidToken)
	}
	return strings.TrimSpace(parts[1]), nil
}
