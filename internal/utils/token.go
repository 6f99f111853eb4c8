package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yukikurage/team-taskboard/internal/models"
)

// ErrInvalidSession is returned for a token that is malformed, tampered with or expired.
var ErrInvalidSession = errors.New("invalid or expired session")

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// SessionToken is a signed token and the moment it stops being valid.
type SessionToken struct {
	Token string
	Exp   time.Time
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is the validity window of issued tokens.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for actor.
func (m *TokenManager) Issue(actor models.Actor) (SessionToken, error) {
	now := m.now().UTC()
	exp := now.Add(m.ttl)
	claims := SessionClaims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return SessionToken{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// Verify checks the signature and expiry of raw and returns the actor it names.
func (m *TokenManager) Verify(raw string) (models.Actor, error) {
	var claims SessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !tok.Valid {
		return models.Actor{}, ErrInvalidSession
	}
	if claims.Subject == "" {
		return models.Actor{}, ErrInvalidSession
	}
	if claims.Role != models.RoleUser && claims.Role != models.RoleAdmin {
		return models.Actor{}, ErrInvalidSession
	}

	return models.Actor{UserID: claims.Subject, Role: claims.Role}, nil
}
