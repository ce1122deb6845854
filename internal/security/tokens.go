// Package security issues and validates the signed session tokens that carry
// the authenticated subject across requests.
package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for every validation failure: wrong segment
	// count, bad signature, missing or past expiry, empty subject. Callers must
	// not learn which; the cause is only for server-side logs.
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// TokenCodec issues and validates HS256 access tokens signed with a shared secret.
type TokenCodec struct {
	secret []byte
	issuer string
}

// NewTokenCodec returns a TokenCodec that signs with the given shared secret.
// issuer is set on claims and validated on every token.
func NewTokenCodec(secret, issuer string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("security: secret is empty")
	}
	return &TokenCodec{secret: []byte(secret), issuer: issuer}, nil
}

// Issue issues an access token for the given subject with an absolute expiry of now+ttl.
// Returns the signed token and its expiration time.
func (c *TokenCodec) Issue(subject string, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	if subject == "" || ttl <= 0 {
		return "", time.Time{}, ErrInvalidToken
	}
	now := time.Now().UTC()
	expiresAt = now.Add(ttl)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses and validates the token (structure, signature, exp, iss) and
// returns the embedded subject. All failures collapse to ErrInvalidToken.
func (c *TokenCodec) Validate(tokenString string) (subject string, err error) {
	// A well-formed token has exactly three dot-separated segments.
	if len(strings.Split(tokenString, ".")) != 3 {
		return "", ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// SubjectUnverified extracts the sub claim without verifying the signature.
// Only for tokens whose signature is checked elsewhere, such as the password
// reset tokens minted by the managed auth provider; never use it to
// authenticate a request.
func SubjectUnverified(tokenString string) (string, error) {
	if len(strings.Split(tokenString, ".")) != 3 {
		return "", ErrInvalidToken
	}
	var claims AccessClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
