package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token123","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenCached(t *testing.T) {
	srv := newTokenServer(t)
	p := NewTokenProvider(Conf{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL})

	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "token123" {
		t.Fatalf("unexpected token %s", tok)
	}

	srv.Close()
	if tok, err = p.Token(context.Background()); err != nil || tok != "token123" {
		t.Fatalf("cached token not reused: %s, %v", tok, err)
	}
}

func TestAuthorize(t *testing.T) {
	srv := newTokenServer(t)
	p := NewTokenProvider(Conf{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL})

	req, _ := http.NewRequest("GET", "http://example.com", nil)
	if err := p.Authorize(req); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer token123" {
		t.Fatalf("authorization header = %q", got)
	}
}
