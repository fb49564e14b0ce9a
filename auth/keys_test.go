package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dostvardhan/drivegate/auth"
)

// newSigningKey generates an RSA key pair for test tokens.
func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "generate rsa key")
	return key
}

// jwksServer serves a JWKS document holding the public halves of the
// given keys and counts every fetch.
type jwksServer struct {
	*httptest.Server
	fetches atomic.Int64
}

func newJWKSServer(t *testing.T, keys map[string]*rsa.PrivateKey) *jwksServer {
	t.Helper()

	set := jwk.NewSet()
	for kid, priv := range keys {
		pub, err := jwk.FromRaw(priv.Public())
		require.NoError(t, err, "jwk from raw")
		require.NoError(t, pub.Set(jwk.KeyIDKey, kid))
		require.NoError(t, pub.Set(jwk.AlgorithmKey, "RS256"))
		require.NoError(t, set.AddKey(pub))
	}

	body, err := json.Marshal(set)
	require.NoError(t, err, "marshal jwks")

	srv := &jwksServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestKeyResolver_MissTriggersSingleFetch(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, map[string]*rsa.PrivateKey{"kid-1": key})

	resolver, err := auth.NewKeyResolver(auth.KeyResolverConfig{
		URL:              srv.URL,
		FetchesPerMinute: 60,
	})
	require.NoError(t, err)

	got, err := resolver.Key(context.Background(), "kid-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), srv.fetches.Load())

	pub, ok := got.(*rsa.PublicKey)
	require.True(t, ok, "expected *rsa.PublicKey, got %T", got)
	assert.Equal(t, key.PublicKey.N, pub.N)
}

func TestKeyResolver_FreshHitSkipsUpstream(t *testing.T) {
	srv := newJWKSServer(t, map[string]*rsa.PrivateKey{"kid-1": newSigningKey(t)})

	resolver, err := auth.NewKeyResolver(auth.KeyResolverConfig{
		URL:              srv.URL,
		FetchesPerMinute: 60,
	})
	require.NoError(t, err)

	for range 5 {
		_, err := resolver.Key(context.Background(), "kid-1")
		assert.NoError(t, err)
	}

	assert.Equal(t, int64(1), srv.fetches.Load(), "cache hits must not refetch")
}

func TestKeyResolver_UnknownKeyAfterFetch(t *testing.T) {
	srv := newJWKSServer(t, map[string]*rsa.PrivateKey{"kid-1": newSigningKey(t)})

	resolver, err := auth.NewKeyResolver(auth.KeyResolverConfig{
		URL:              srv.URL,
		FetchesPerMinute: 60,
	})
	require.NoError(t, err)

	_, err = resolver.Key(context.Background(), "kid-unknown")
	assert.ErrorIs(t, err, auth.ErrKeyNotFound)
	assert.Equal(t, int64(1), srv.fetches.Load(), "a miss fetches exactly once")
}

func TestKeyResolver_RateLimitedMissWithoutCacheFails(t *testing.T) {
	srv := newJWKSServer(t, map[string]*rsa.PrivateKey{"kid-1": newSigningKey(t)})

	resolver, err := auth.NewKeyResolver(auth.KeyResolverConfig{
		URL:              srv.URL,
		FetchesPerMinute: 1,
	})
	require.NoError(t, err)

	// Burn the single allowed fetch on an unknown key id.
	_, err = resolver.Key(context.Background(), "kid-unknown")
	assert.ErrorIs(t, err, auth.ErrKeyNotFound)

	// The next unknown-key miss is rate limited and has nothing cached
	// to fall back on.
	_, err = resolver.Key(context.Background(), "kid-other")
	assert.ErrorIs(t, err, auth.ErrUpstreamUnavailable)
	assert.Equal(t, int64(1), srv.fetches.Load())
}

func TestKeyResolver_RateLimitedServesStaleKey(t *testing.T) {
	srv := newJWKSServer(t, map[string]*rsa.PrivateKey{"kid-1": newSigningKey(t)})

	resolver, err := auth.NewKeyResolver(auth.KeyResolverConfig{
		URL:              srv.URL,
		TTL:              time.Nanosecond, // everything is stale immediately
		FetchesPerMinute: 1,
	})
	require.NoError(t, err)

	_, err = resolver.Key(context.Background(), "kid-1")
	require.NoError(t, err)

	// Stale entry plus exhausted limiter: the previous cached key is
	// still served rather than failing the request.
	got, err := resolver.Key(context.Background(), "kid-1")
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, int64(1), srv.fetches.Load())
}

func TestKeyResolver_UpstreamDownFallsBackToCache(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, map[string]*rsa.PrivateKey{"kid-1": key})

	resolver, err := auth.NewKeyResolver(auth.KeyResolverConfig{
		URL:              srv.URL,
		TTL:              time.Nanosecond,
		FetchesPerMinute: 60,
	})
	require.NoError(t, err)

	_, err = resolver.Key(context.Background(), "kid-1")
	require.NoError(t, err)

	srv.Close()

	// The refresh attempt fails but the cached key is returned.
	got, err := resolver.Key(context.Background(), "kid-1")
	assert.NoError(t, err)
	assert.NotNil(t, got)
}

func TestKeyResolver_EmptyURL(t *testing.T) {
	_, err := auth.NewKeyResolver(auth.KeyResolverConfig{})
	assert.Error(t, err)
}
