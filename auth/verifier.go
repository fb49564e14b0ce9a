package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSubject is returned when a verified token carries no subject claim.
var ErrNoSubject = errors.New("token has no subject")

// asymmetricAlgs is the closed set of accepted signing algorithms.
// Symmetric algorithms are rejected before signature verification: a
// caller presenting an HS* token could otherwise forge signatures using
// the published public key as a shared secret.
var asymmetricAlgs = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
	jwt.SigningMethodPS256.Alg(),
	jwt.SigningMethodPS384.Alg(),
	jwt.SigningMethodPS512.Alg(),
	jwt.SigningMethodES256.Alg(),
	jwt.SigningMethodES384.Alg(),
	jwt.SigningMethodES512.Alg(),
	jwt.SigningMethodEdDSA.Alg(),
}

// Identity is the fixed projection of a verified token's claims.
// It is request-scoped and never persisted.
type Identity struct {
	Subject string
	Email   string
	Claims  map[string]any
}

// VerifierConfig holds configuration for the token verifier.
type VerifierConfig struct {
	// Issuer is the expected `iss` claim, matched exactly.
	Issuer string
	// Audience must appear in the token's `aud` claim.
	Audience string
	// DisableAudienceCheck skips the audience check entirely. This is a
	// narrower trust mode for providers that issue no audience claim,
	// never a default.
	DisableAudienceCheck bool
}

// Verifier validates bearer tokens against the key resolver and extracts
// identity claims. Every check fails closed: a single failing check
// rejects the token.
type Verifier struct {
	resolver *KeyResolver
	cfg      VerifierConfig
}

func NewVerifier(resolver *KeyResolver, cfg VerifierConfig) (*Verifier, error) {
	if resolver == nil {
		return nil, errors.New("new verifier: resolver cannot be nil")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("new verifier: issuer cannot be empty")
	}
	if cfg.Audience == "" && !cfg.DisableAudienceCheck {
		return nil, errors.New("new verifier: audience cannot be empty unless the audience check is explicitly disabled")
	}
	return &Verifier{resolver: resolver, cfg: cfg}, nil
}

// Verify validates signature, issuer, audience, and expiry of a bearer
// token and returns the caller's identity.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(asymmetricAlgs),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithExpirationRequired(),
	}
	if !v.cfg.DisableAudienceCheck {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	parsed, err := jwt.NewParser(opts...).Parse(token, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token header missing kid")
		}
		return v.resolver.Key(ctx, kid)
	})
	if err != nil {
		return Identity{}, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("verify token: unexpected claims type")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, fmt.Errorf("verify token: %w", ErrNoSubject)
	}

	email, _ := claims["email"].(string)

	return Identity{
		Subject: subject,
		Email:   email,
		Claims:  claims,
	}, nil
}
