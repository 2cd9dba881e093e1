// Package credstore holds the session credential (access and refresh
// token) in memory and mirrors it to a durable Persister. The store is the
// single shared resource of the session: every read observes the latest
// committed snapshot, and every Set or Clear bumps a generation counter so
// concurrent users can tell whether the token they hold is still current.
package credstore

import (
	"time"

	"golang.org/x/oauth2"
)

// Credential is the token pair. An empty AccessToken means not
// authenticated. TokenType and Expiry are informational.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// IsZero reports whether neither token is present.
func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Authenticated reports whether an access token is present.
func (c Credential) Authenticated() bool {
	return c.AccessToken != ""
}

// HasRefreshToken reports whether a refresh token is present.
func (c Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// Expired reports whether a known expiry has passed. A zero Expiry is
// never considered expired; staleness is discovered on the first 401.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// Token converts the credential to an oauth2.Token, which is the on-disk
// representation and knows how to set the Authorization header.
func (c Credential) Token() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    tokenType,
		Expiry:       c.Expiry,
	}
}

// FromToken converts a persisted oauth2.Token back into a Credential.
// A nil token yields the zero Credential.
func FromToken(tok *oauth2.Token) Credential {
	if tok == nil {
		return Credential{}
	}

	return Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
}

func (c Credential) equal(o Credential) bool {
	return c.AccessToken == o.AccessToken &&
		c.RefreshToken == o.RefreshToken &&
		c.TokenType == o.TokenType &&
		c.Expiry.Equal(o.Expiry)
}
