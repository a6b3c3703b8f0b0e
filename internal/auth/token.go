// Package auth validates the bearer tokens issued by the account service and
// turns them into a principal.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"project-hub/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carried by account-service tokens. Older tokens only carry email.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validator checks HS256 tokens signed with a shared secret.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate parses token and returns the principal it names.
func (v *Validator) Validate(token string) (models.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Principal{}, ErrExpiredToken
		}
		return models.Principal{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return models.Principal{}, ErrInvalidToken
	}

	id := claims.Subject
	if id == "" {
		id = claims.Email
	}
	if id == "" {
		return models.Principal{}, ErrInvalidToken
	}
	name := claims.Name
	if name == "" {
		name = claims.Email
	}
	if name == "" {
		name = id
	}
	return models.Principal{ID: id, Name: name}, nil
}

// Issue signs a token for p. Used by tests and local tooling; production
// tokens come from the account service.
func (v *Validator) Issue(p models.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
