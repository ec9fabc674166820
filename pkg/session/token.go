package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lucirr/dip-console/pkg/authz"
)

// Token is the long-lived session token carried by the browser between
// requests. It is the single place the sign-in pipeline writes to;
// everything downstream only reads what enrichment wrote.
//
// Roles distinguishes "never populated" (nil) from "populated but empty"
// (zero-length): a role lookup that succeeded with no roles is not the same
// state as a lookup that never ran or failed.
type Token struct {
	ID          string
	Subject     string
	Username    string
	Nickname    string
	Roles       authz.RoleSet
	UID         string
	AccessToken string
	ExpiresAt   time.Time
}

// HasRoles reports whether enrichment populated the role set, empty or not.
func (t *Token) HasRoles() bool {
	return t.Roles != nil
}

type tokenClaims struct {
	Username    string   `json:"username,omitempty"`
	Nickname    string   `json:"nickname,omitempty"`
	Roles       []string `json:"roles"` // no omitempty: empty-but-present must survive
	UID         string   `json:"uid,omitempty"`
	AccessToken string   `json:"at,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs session tokens into compact JWTs and parses them back,
// verifying signature and expiry.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewCodec creates a token codec. The signing secret must be at least 32
// bytes.
func NewCodec(secret string, issuer string, ttl time.Duration) (*Codec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session signing secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Codec{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// TTL returns the configured session lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// NewToken creates an unsigned token for a fresh sign-in.
func (c *Codec) NewToken(subject string) *Token {
	return &Token{
		ID:        uuid.NewString(),
		Subject:   subject,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Sign serializes the token as a signed JWT.
func (c *Codec) Sign(token *Token) (string, error) {
	claims := tokenClaims{
		Username:    token.Username,
		Nickname:    token.Nickname,
		UID:         token.UID,
		AccessToken: token.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        token.ID,
			Subject:   token.Subject,
			Issuer:    c.issuer,
			ExpiresAt: jwt.NewNumericDate(token.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if token.Roles != nil {
		claims.Roles = token.Roles.Strings()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies a signed JWT and reconstructs the session token. Expired or
// tampered tokens fail.
func (c *Codec) Parse(raw string) (*Token, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}

	token := &Token{
		ID:          claims.ID,
		Subject:     claims.Subject,
		Username:    claims.Username,
		Nickname:    claims.Nickname,
		UID:         claims.UID,
		AccessToken: claims.AccessToken,
	}
	if claims.ExpiresAt != nil {
		token.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.Roles != nil {
		token.Roles = authz.NewRoleSet(claims.Roles)
	}
	return token, nil
}
