// Package identity verifies the identity provider's session tokens and
// webhook deliveries. The rest of the backend only ever sees the external
// user id these yield.
package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// Claims are the session token claims we rely on. Subject is the
// provider's user id.
type Claims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates session tokens signed either with a shared secret
// (HS256) or with the provider's RSA key (RS256)
type Verifier struct {
	secret    []byte
	publicKey *rsa.PublicKey
	issuer    string
}

// NewVerifier creates a verifier. publicKeyPEM takes precedence over secret
// when both are set. An empty issuer disables the issuer check.
func NewVerifier(secret, publicKeyPEM, issuer string) (*Verifier, error) {
	v := &Verifier{issuer: issuer}
	if publicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse identity public key: %w", err)
		}
		v.publicKey = key
		return v, nil
	}
	if secret == "" {
		return nil, errors.New("identity verifier needs a secret or a public key")
	}
	v.secret = []byte(secret)
	return v, nil
}

// Verify parses and validates a token, returning the external user id
func (v *Verifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.key, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (v *Verifier) key(token *jwt.Token) (any, error) {
	if v.publicKey != nil {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}

// Generate mints an HS256 session token for externalID. Only verifiers built
// from a shared secret can mint tokens; it is meant for local development.
func (v *Verifier) Generate(externalID string, ttl time.Duration) (string, error) {
	if v.secret == nil {
		return "", errors.New("token generation requires a shared secret")
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   externalID,
			Issuer:    v.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
