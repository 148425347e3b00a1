package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired signals that the provided bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided bearer token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// TokenClaims carries the decoded claims the platform cares about.
type TokenClaims struct {
	Subject string
	Email   string
	Name    string
	Claims  map[string]any
}

// TokenVerifier verifies bearer tokens and returns the decoded claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (TokenClaims, error)
}

// JWTVerifier validates HMAC-signed JWTs issued by the identity service.
type JWTVerifier struct {
	secret []byte
	issuer string
}

var _ TokenVerifier = (*JWTVerifier)(nil)

// NewJWTVerifier constructs a verifier for HS256 tokens signed with secret.
// Issuer is optional; when set the token's iss claim must match.
func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	return &JWTVerifier{secret: []byte(secret), issuer: strings.TrimSpace(issuer)}, nil
}

// VerifyToken parses and validates the token signature, expiry and issuer.
func (v *JWTVerifier) VerifyToken(_ context.Context, tokenStr string) (TokenClaims, error) {
	if v == nil {
		return TokenClaims{}, ErrTokenInvalid
	}
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return TokenClaims{}, ErrTokenInvalid
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}

	if v.issuer != "" {
		if !claims.VerifyIssuer(v.issuer, true) {
			return TokenClaims{}, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
		}
	}

	subject, _ := claims["sub"].(string)
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return TokenClaims{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	decoded := TokenClaims{
		Subject: subject,
		Claims:  map[string]any(claims),
	}
	if email, ok := claims["email"].(string); ok {
		decoded.Email = strings.TrimSpace(email)
	}
	if name, ok := claims["name"].(string); ok {
		decoded.Name = strings.TrimSpace(name)
	}
	return decoded, nil
}
