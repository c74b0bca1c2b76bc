package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims identify an account; the username is carried so admin
// checks need no store lookup.
type SessionClaims struct {
	ID       domain.AccountID `json:"id"`
	Username string           `json:"username"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 session tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

func (s *Signer) TTL() time.Duration { return s.ttl }

func (s *Signer) Sign(acc *domain.Account, now time.Time) (string, error) {
	claims := SessionClaims{
		ID:       acc.ID,
		Username: acc.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(acc.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates tokenStr and returns its claims.
func (s *Signer) Parse(tokenStr string) (*SessionClaims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
