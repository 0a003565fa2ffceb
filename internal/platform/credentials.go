package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialProvider supplies the bearer token for platform API calls. The
// OAuth/device-flow mechanics behind the token are outside this module.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider serves a fixed bearer token. When the token is a JWT its
// expiry claim is checked on every use so an expired token fails loudly at the
// call site instead of as an opaque 401.
type StaticTokenProvider struct {
	token     string
	expiresAt time.Time
}

// NewStaticTokenProvider wraps a bearer token. Non-JWT tokens are treated as
// opaque and never expire locally.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	p := &StaticTokenProvider{token: token}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			p.expiresAt = exp.Time
		}
	}
	return p
}

// Token implements CredentialProvider.
func (p *StaticTokenProvider) Token(_ context.Context) (string, error) {
	if p.token == "" {
		return "", &ValidationError{Message: "no API token configured"}
	}
	if !p.expiresAt.IsZero() && time.Now().After(p.expiresAt) {
		return "", fmt.Errorf("bearer token expired at %s", p.expiresAt.Format(time.RFC3339))
	}
	return p.token, nil
}
