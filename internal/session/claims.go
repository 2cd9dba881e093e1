package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nonfou/mpayctl/internal/api"
	"github.com/nonfou/mpayctl/internal/credstore"
)

// TokenClaims are the registered claims of a JWT access token.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ParseAccessToken decodes the claims of a JWT access token without
// verifying its signature. The console holds no key material; the claims
// are used for display and expiry bookkeeping only, never for trust.
func ParseAccessToken(token string) (TokenClaims, error) {
	var claims jwt.RegisteredClaims

	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenClaims{}, fmt.Errorf("session: decoding access token: %w", err)
	}

	tc := TokenClaims{Subject: claims.Subject}

	if claims.IssuedAt != nil {
		tc.IssuedAt = claims.IssuedAt.Time
	}

	if claims.ExpiresAt != nil {
		tc.ExpiresAt = claims.ExpiresAt.Time
	}

	return tc, nil
}

var errNoAccessToken = errors.New("response carried no access token")

// credentialFromResponse turns a login or refresh payload into a
// Credential. Expiry comes from expiresIn, else from the token's exp claim,
// else stays unknown. A rotated-away refresh token is kept when the backend
// does not send a new one.
func credentialFromResponse(tr api.TokenResponse, previousRefresh string, now time.Time) (credstore.Credential, error) {
	if tr.AccessToken == "" {
		return credstore.Credential{}, errNoAccessToken
	}

	c := credstore.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}

	if c.RefreshToken == "" {
		c.RefreshToken = previousRefresh
	}

	switch {
	case tr.ExpiresIn > 0:
		c.Expiry = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		if claims, err := ParseAccessToken(tr.AccessToken); err == nil {
			c.Expiry = claims.ExpiresAt
		}
	}

	return c, nil
}
