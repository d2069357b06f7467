package kodo

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultDir is the logical directory an upload is namespaced under when
// the caller does not supply one.
const DefaultDir = "public"

// defaultExpires is the token lifetime in seconds when the policy does
// not carry one.
const defaultExpires = 3600

// ErrInvalidSaveKey is returned when a policy override sets saveKey to a
// non-string value.
var ErrInvalidSaveKey = errors.New("kodo: saveKey must be a string")

// TokenIssuer builds signed, time-limited upload tokens from a static
// base policy and per-call overrides. It holds no state between calls
// and never persists issued tokens.
type TokenIssuer struct {
	creds *Credentials
	base  map[string]any
	now   func() time.Time
}

// TokenIssuerOption configures a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithClock overrides the wall-clock source used to compute the policy
// deadline. Intended for tests.
func WithClock(now func() time.Time) TokenIssuerOption {
	return func(i *TokenIssuer) {
		i.now = now
	}
}

// NewTokenIssuer creates a TokenIssuer over the given base policy.
func NewTokenIssuer(creds *Credentials, base map[string]any, opts ...TokenIssuerOption) *TokenIssuer {
	i := &TokenIssuer{
		creds: creds,
		base:  base,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue builds and signs an upload token. dir defaults to "public" and
// becomes the path prefix of the effective saveKey. overrides are merged
// shallowly over the base policy, override values winning on collision.
// The relative "expires" field is converted to an absolute "deadline"
// before signing; expiry enforcement is the provider's job at upload time.
func (i *TokenIssuer) Issue(dir string, overrides map[string]any) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}

	merged := make(map[string]any, len(i.base)+len(overrides))
	for k, v := range i.base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	saveKey := ""
	if v, ok := merged["saveKey"]; ok {
		s, ok := v.(string)
		if !ok {
			return "", ErrInvalidSaveKey
		}
		saveKey = s
	}
	merged["saveKey"] = dir + "/" + saveKey

	expires := defaultExpires
	if v, ok := merged["expires"]; ok {
		n, err := asSeconds(v)
		if err != nil {
			return "", err
		}
		expires = n
	}
	delete(merged, "expires")
	merged["deadline"] = i.now().Unix() + int64(expires)

	policy, err := json.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("kodo: marshal policy: %w", err)
	}

	return i.creds.SignWithData(policy), nil
}

// asSeconds coerces the numeric shapes an "expires" value can arrive in
// (config int, JSON float64, json.Number) into whole seconds.
func asSeconds(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("kodo: invalid expires: %w", err)
		}
		return int(f), nil
	default:
		return 0, fmt.Errorf("kodo: invalid expires type %T", v)
	}
}
