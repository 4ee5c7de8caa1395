package auth

import (
	"errors"
	"fmt"
	"net/http"
	"shooter-sync/internal/constants"
	"shooter-sync/internal/domain"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "shooter-sync"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Tokens mints and verifies the HS256 tokens that bind a websocket
// connection to one session.
type Tokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokens(secret string) (*Tokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	return &Tokens{key: []byte(secret), ttl: constants.TokenTTL, now: time.Now}, nil
}

func (t *Tokens) Issue(id domain.SessionID) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(int(id)),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse returns the session a token was issued for.
func (t *Tokens) Parse(tok string) (domain.SessionID, error) {
	if tok == "" {
		return 0, ErrMissingToken
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	return domain.SessionID(id), nil
}

// FromRequest reads a bearer token, falling back to the token query
// parameter browsers use for websockets.
func FromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
