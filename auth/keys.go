// Package auth implements bearer-token authentication for the gateway:
// a rate-limited JWKS key resolver, a fail-closed token verifier, and an
// allow-list authorization policy.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/time/rate"
)

var (
	// ErrKeyNotFound is returned when the key set does not contain the requested key id.
	ErrKeyNotFound = errors.New("signing key not found")
	// ErrUpstreamUnavailable is returned when the key set cannot be fetched
	// and no cached copy exists.
	ErrUpstreamUnavailable = errors.New("key set unavailable")
)

// KeyResolver fetches and caches an identity provider's public signing
// keys by key id. Key sets are fetched whole: a miss on one key id
// repopulates the entire cache. Upstream fetches are rate limited so a
// storm of malformed tokens cannot hammer the provider; while limited,
// the resolver serves the previous cached key set.
type KeyResolver struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	ttl        time.Duration

	mu        sync.RWMutex
	keys      map[string]any
	fetchedAt time.Time
}

// KeyResolverConfig holds configuration for the KeyResolver.
type KeyResolverConfig struct {
	// URL is the provider's published key-set endpoint.
	URL string
	// TTL bounds how long a fetched key set is considered fresh (default: 15m).
	TTL time.Duration
	// FetchesPerMinute caps upstream fetches (default: 5).
	FetchesPerMinute int
	// HTTPClient overrides the client used for fetches (default: http.DefaultClient).
	HTTPClient *http.Client
}

func NewKeyResolver(cfg KeyResolverConfig) (*KeyResolver, error) {
	if cfg.URL == "" {
		return nil, errors.New("new key resolver: url cannot be empty")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	perMinute := cfg.FetchesPerMinute
	if perMinute <= 0 {
		perMinute = 5
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &KeyResolver{
		url:        cfg.URL,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		ttl:        ttl,
	}, nil
}

// Key returns the public key material for the given key id.
//
// A fresh cache hit performs no network I/O. On a miss or a stale cache
// the resolver attempts one rate-limited fetch of the whole key set; if
// the limiter denies the fetch, or the fetch fails, the previous cached
// key is returned when present, otherwise ErrUpstreamUnavailable.
func (r *KeyResolver) Key(ctx context.Context, keyID string) (any, error) {
	r.mu.RLock()
	key, cached := r.keys[keyID]
	fresh := time.Since(r.fetchedAt) < r.ttl
	r.mu.RUnlock()

	if cached && fresh {
		return key, nil
	}

	if !r.limiter.Allow() {
		if cached {
			return key, nil
		}
		return nil, fmt.Errorf("resolve key %s: rate limited: %w", keyID, ErrUpstreamUnavailable)
	}

	if err := r.refresh(ctx); err != nil {
		if cached {
			return key, nil
		}
		return nil, fmt.Errorf("resolve key %s: %w", keyID, err)
	}

	r.mu.RLock()
	key, cached = r.keys[keyID]
	r.mu.RUnlock()

	if !cached {
		return nil, fmt.Errorf("resolve key %s: %w", keyID, ErrKeyNotFound)
	}

	return key, nil
}

// refresh fetches the key set and replaces the cache wholesale.
func (r *KeyResolver) refresh(ctx context.Context) error {
	set, err := jwk.Fetch(ctx, r.url, jwk.WithHTTPClient(r.httpClient))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	keys := make(map[string]any, set.Len())
	for i := 0; i < set.Len(); i++ {
		k, ok := set.Key(i)
		if !ok {
			continue
		}
		if k.KeyID() == "" {
			continue
		}

		var raw any
		if rawErr := k.Raw(&raw); rawErr != nil {
			return fmt.Errorf("%w: raw key %s: %v", ErrUpstreamUnavailable, k.KeyID(), rawErr)
		}
		keys[k.KeyID()] = raw
	}

	r.mu.Lock()
	r.keys = keys
	r.fetchedAt = time.Now()
	r.mu.Unlock()

	return nil
}
