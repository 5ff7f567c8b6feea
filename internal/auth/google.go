package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/derailed-dash/rickbot/pkg/models"
)

const defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// clockSkew tolerates small drift between us and the token issuer.
const clockSkew = 30 * time.Second

var errNoKeyID = errors.New("token has no kid header")

// GoogleVerifier validates Google-issued ID tokens (RS256) against a
// configured OAuth client id.
type GoogleVerifier struct {
	clientID string
	keys     *jwksCache
}

// GoogleConfig configures the Google ID token verifier.
type GoogleConfig struct {
	ClientID string
	// JWKSURL overrides the Google certs endpoint, for tests.
	JWKSURL string
	// HTTPClient overrides the client used for JWKS fetches.
	HTTPClient *http.Client
}

// NewGoogleVerifier builds a verifier for the given client id.
func NewGoogleVerifier(cfg GoogleConfig) *GoogleVerifier {
	url := cfg.JWKSURL
	if url == "" {
		url = defaultGoogleJWKSURL
	}
	return &GoogleVerifier{
		clientID: strings.TrimSpace(cfg.ClientID),
		keys:     newJWKSCache(url, cfg.HTTPClient, 15*time.Minute),
	}
}

type googleClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Verify parses and validates token, returning the embedded identity.
// Bad signature, wrong audience, wrong issuer, and expiry (beyond the
// skew tolerance) all return an error.
func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*models.User, error) {
	if v.clientID == "" {
		return nil, errors.New("google client id not configured")
	}

	parsed, err := jwt.ParseWithClaims(token, &googleClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errNoKeyID
		}
		return v.keys.key(ctx, kid)
	},
		jwt.WithAudience(v.clientID),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}

	claims, ok := parsed.Claims.(*googleClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid id token")
	}
	switch claims.Issuer {
	case "accounts.google.com", "https://accounts.google.com":
	default:
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("id token has no subject")
	}

	return &models.User{
		ID:       claims.Subject,
		Email:    strings.TrimSpace(claims.Email),
		Name:     strings.TrimSpace(claims.Name),
		Provider: models.ProviderGoogle,
	}, nil
}

// jwksCache caches RSA public keys from a JWKS endpoint with a TTL.
// Safe for concurrent use.
type jwksCache struct {
	url        string
	httpClient *http.Client
	ttl        time.Duration

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

func newJWKSCache(url string, client *http.Client, ttl time.Duration) *jwksCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &jwksCache{
		url:        url,
		httpClient: client,
		ttl:        ttl,
		keys:       map[string]*rsa.PublicKey{},
	}
}

// key returns the public key for kid, refreshing the cache if needed.
// A stale cached key is still served when a refresh fails.
func (c *jwksCache) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := time.Since(c.fetched) < c.ttl
	c.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	keys, err := c.refresh(ctx)
	if err != nil {
		if ok {
			return key, nil
		}
		return nil, err
	}
	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("signing key %q not found", kid)
	}
	return key, nil
}

func (c *jwksCache) refresh(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Since(c.fetched) < c.ttl && len(c.keys) > 0 {
		return c.keys, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks fetch failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(payload.Keys))
	for _, k := range payload.Keys {
		if k.Kty != "RSA" {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		e := 0
		for _, b := range eBytes {
			e = e<<8 + int(b)
		}
		keys[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: e}
	}

	c.keys = keys
	c.fetched = time.Now()
	return c.keys, nil
}
