package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Identity is the subject a token is issued for
type Identity struct {
	ID   int64
	Name string
}

// TokenClaims represents the claims in a JWT token
type TokenClaims struct {
	Name   string `json:"name"`
	Access bool   `json:"access"`
	jwt.RegisteredClaims
}

// UserID parses the numeric user id out of the subject claim.
func (c *TokenClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenManager issues and verifies HS256 tokens
type TokenManager struct {
	secretKey []byte
	now       func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secretKey string) *TokenManager {
	return &TokenManager{
		secretKey: []byte(secretKey),
		now:       time.Now,
	}
}

// WithClock replaces the time source used to stamp and check tokens.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// Issue signs a token for user that expires after ttl. access marks it as an
// access token; refresh tokens carry access=false.
func (tm *TokenManager) Issue(user Identity, ttl time.Duration, access bool) (string, error) {
	now := tm.now()
	claims := TokenClaims{
		Name:   user.Name,
		Access: access,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// Verify checks an Authorization header value of the form "Bearer <token>".
// Expired tokens yield ErrExpiredToken, anything else wrong ErrInvalidToken.
func (tm *TokenManager) Verify(header string) (*TokenClaims, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return nil, ErrInvalidToken
	}
	return tm.ParseToken(parts[1])
}

// ParseToken validates a bare JWT string and returns the claims
func (tm *TokenManager) ParseToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tm.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
