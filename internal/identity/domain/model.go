package domain

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"
)

// SigningKey is one public key published by the identity provider.
// Immutable once fetched.
type SigningKey struct {
	KeyID     string
	Algorithm string
	PublicKey *rsa.PublicKey
}

// KeySnapshot is an immutable view of the provider's published key set.
// A snapshot is replaced wholesale on refresh, never mutated in place.
type KeySnapshot struct {
	keys      map[string]SigningKey
	fetchedAt time.Time
}

func NewKeySnapshot(keys []SigningKey, fetchedAt time.Time) *KeySnapshot {
	byID := make(map[string]SigningKey, len(keys))
	for _, k := range keys {
		byID[k.KeyID] = k
	}
	return &KeySnapshot{keys: byID, fetchedAt: fetchedAt}
}

// Lookup returns the key with the given id, if present in this snapshot.
func (s *KeySnapshot) Lookup(kid string) (SigningKey, bool) {
	if s == nil {
		return SigningKey{}, false
	}
	k, ok := s.keys[kid]
	return k, ok
}

func (s *KeySnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

func (s *KeySnapshot) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

// Claims is the verified content of one bearer token. Not persisted;
// its lifetime is a single request.
type Claims struct {
	Subject   string
	Email     string
	Issuer    string
	ExpiresAt time.Time
	Raw       map[string]any
}

// KeySource provides the current key snapshot, optionally forcing a
// refresh from the identity provider.
type KeySource interface {
	Snapshot(ctx context.Context, forceRefresh bool) (*KeySnapshot, error)
}

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

var (
	// ErrNotConfigured means identity-provider settings are missing;
	// callers surface this as service-unavailable, not as a bad token.
	ErrNotConfigured = errors.New("identity_not_configured")

	// ErrKeyFetch is a transient failure reaching or decoding the
	// provider's published key set.
	ErrKeyFetch = errors.New("key_fetch_failed")

	ErrMalformedToken   = errors.New("malformed_token")
	ErrUnknownKey       = errors.New("unknown_signing_key")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrExpiredToken     = errors.New("expired_token")
	ErrMissingClaim     = errors.New("missing_claim")
	ErrInvalidAudience  = errors.New("invalid_audience")
)
