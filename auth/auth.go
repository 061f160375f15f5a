// Package auth fetches OAuth2 client-credential tokens for grid data
// providers that gate their APIs behind authentication.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenProvider caches a client-credentials token and renews it once it
// stops validating.
type TokenProvider struct {
	conf  clientcredentials.Config
	token *oauth2.Token
}

func NewTokenProvider(conf Conf) *TokenProvider {
	return &TokenProvider{conf: conf.toOauth2Config()}
}

// Token returns the cached access token, requesting a fresh one when the
// cached token is missing or expired.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.token == nil || !p.token.Valid() {
		tok, err := p.conf.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("token request: %w", err)
		}
		p.token = tok
	}
	return p.token.AccessToken, nil
}

// Authorize places a bearer token on the request.
func (p *TokenProvider) Authorize(r *http.Request) error {
	if _, err := p.Token(r.Context()); err != nil {
		return err
	}
	p.token.SetAuthHeader(r)
	return nil
}
