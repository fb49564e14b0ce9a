// Package drive implements the storage-provider side of the gateway: a
// Drive-style REST client streaming uploads and downloads, and the
// delegated credential manager that exchanges a long-lived refresh
// credential for short-lived access tokens.
package drive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/dostvardhan/drivegate"
)

// CredentialConfig holds the deployment's delegated credential.
type CredentialConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// Credentials owns the process-wide access token derived from the single
// refresh credential. The cached token never leaves the process and is
// re-derived whenever it expires or the provider rejects it.
//
// The read-check-refresh cycle runs under one mutex, so concurrent
// requests racing an expiry trigger exactly one exchange and never
// observe a half-written token/expiry pair.
type Credentials struct {
	oauthCfg     *oauth2.Config
	refreshToken string

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewCredentials validates the refresh credential. A missing credential
// is a startup error, not something to discover on the first upload.
func NewCredentials(cfg CredentialConfig) (*Credentials, error) {
	if cfg.RefreshToken == "" {
		return nil, errors.New("new credentials: refresh token cannot be empty")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("new credentials: client id and secret cannot be empty")
	}
	if cfg.TokenURL == "" {
		return nil, errors.New("new credentials: token url cannot be empty")
	}

	return &Credentials{
		oauthCfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
		refreshToken: cfg.RefreshToken,
	}, nil
}

// AccessToken returns a valid short-lived access token, exchanging the
// refresh credential when the cached token is missing or expired.
func (c *Credentials) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tok.Valid() {
		return c.tok.AccessToken, nil
	}

	src := c.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: c.refreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", drivegate.ErrCredential, err)
	}

	c.tok = tok
	return tok.AccessToken, nil
}

// Invalidate clears the cached access token, forcing the next
// AccessToken call to re-exchange. The client calls this at most once
// per request after a provider authorization failure.
func (c *Credentials) Invalidate() {
	c.mu.Lock()
	c.tok = nil
	c.mu.Unlock()
}
