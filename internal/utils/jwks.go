package utils

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
)

var (
	ErrIdentityRejected = errors.New("identity token rejected")
	ErrNoSigningKey     = errors.New("no matching signing key")
)

// JWK is one entry of an identity provider's published key set.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySource fetches the current key set from the identity provider.
type KeySource interface {
	FetchKeys(ctx context.Context) ([]JWK, error)
}

type HTTPKeySource struct {
	URL    string
	Client *http.Client
}

func NewHTTPKeySource(url string) *HTTPKeySource {
	return &HTTPKeySource{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPKeySource) FetchKeys(ctx context.Context) ([]JWK, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	var set struct {
		Keys []JWK `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}
	return set.Keys, nil
}

// JWKSCache holds the last fetched key set and refreshes it lazily once it
// is older than the freshness window.
type JWKSCache struct {
	source    KeySource
	freshness time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	keys    []JWK
	fetched time.Time
}

func NewJWKSCache(source KeySource, freshness time.Duration) *JWKSCache {
	return &JWKSCache{source: source, freshness: freshness, now: time.Now}
}

var (
	sharedJWKSMu sync.Mutex
	sharedJWKS   = map[string]*JWKSCache{}
)

// SharedJWKSCache returns the process-wide cache for url, creating it on
// first use.
func SharedJWKSCache(url string, freshness time.Duration) *JWKSCache {
	sharedJWKSMu.Lock()
	defer sharedJWKSMu.Unlock()

	if c, ok := sharedJWKS[url]; ok {
		return c
	}
	c := NewJWKSCache(NewHTTPKeySource(url), freshness)
	sharedJWKS[url] = c
	return c
}

func (c *JWKSCache) Keys(ctx context.Context) ([]JWK, error) {
	c.mu.RLock()
	if c.keys != nil && c.now().Sub(c.fetched) < c.freshness {
		keys := c.keys
		c.mu.RUnlock()
		return keys, nil
	}
	c.mu.RUnlock()

	return c.refresh(ctx)
}

func (c *JWKSCache) refresh(ctx context.Context) ([]JWK, error) {
	keys, err := c.source.FetchKeys(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keys = keys
	c.fetched = c.now()
	c.mu.Unlock()
	return keys, nil
}

func (c *JWKSCache) LastFetched() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetched
}

// VerifyAsymmetric accepts only RS256 identity tokens signed by a key in the
// cached set whose issuer starts with issuerBase. Every failure collapses to
// ErrIdentityRejected.
func VerifyAsymmetric(ctx context.Context, token string, keys *JWKSCache, issuerBase string, now time.Time) (map[string]interface{}, error) {
	if issuerBase == "" {
		return nil, ErrIdentityRejected
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodRS256 {
			return nil, ErrIdentityRejected
		}
		set, err := keys.Keys(ctx)
		if err != nil {
			return nil, err
		}
		kid, _ := t.Header["kid"].(string)
		return selectRSAKey(set, kid)
	})
	if err != nil {
		return nil, ErrIdentityRejected
	}

	iss, _ := claims["iss"].(string)
	if !strings.HasPrefix(iss, issuerBase) {
		return nil, ErrIdentityRejected
	}

	return map[string]interface{}(claims), nil
}

// selectRSAKey picks the key matching kid, or the only key when kid is empty.
func selectRSAKey(set []JWK, kid string) (*rsa.PublicKey, error) {
	var candidate *JWK
	if kid != "" {
		for i := range set {
			if set[i].Kid == kid {
				candidate = &set[i]
				break
			}
		}
	} else if len(set) == 1 {
		candidate = &set[0]
	}

	if candidate == nil || candidate.Kty != "RSA" {
		return nil, ErrNoSigningKey
	}
	return parseRSAPublicKey(candidate.N, candidate.E)
}

func parseRSAPublicKey(nEncoded, eEncoded string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(nEncoded, "="))
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(eEncoded, "="))
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, ErrNoSigningKey
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

// IdentityVerifier resolves a sender's subject from a bearer credential.
type IdentityVerifier struct {
	keys       *JWKSCache
	issuerBase string
	now        func() time.Time
}

func NewIdentityVerifier(keys *JWKSCache, issuerBase string) *IdentityVerifier {
	return &IdentityVerifier{keys: keys, issuerBase: issuerBase, now: time.Now}
}

func (v *IdentityVerifier) Subject(ctx context.Context, token string) (string, error) {
	claims, err := VerifyAsymmetric(ctx, token, v.keys, v.issuerBase, v.now())
	if err != nil {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrIdentityRejected
	}
	return sub, nil
}
