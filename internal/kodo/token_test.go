package kodo

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer(t *testing.T, base map[string]any) *TokenIssuer {
	t.Helper()
	creds, err := NewCredentials("test-ak", "test-sk")
	require.NoError(t, err)
	return NewTokenIssuer(creds, base, WithClock(func() time.Time {
		return time.Unix(1700000000, 0)
	}))
}

// decodePolicy extracts the signed policy from an issued token.
func decodePolicy(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.SplitN(token, ":", 3)
	require.Len(t, parts, 3)
	raw, err := base64.URLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	var policy map[string]any
	require.NoError(t, json.Unmarshal(raw, &policy))
	return policy
}

func TestTokenIssuer_Issue_DefaultDir(t *testing.T) {
	issuer := testIssuer(t, map[string]any{
		"scope":   "media",
		"saveKey": "$(etag)$(ext)",
	})

	token, err := issuer.Issue("", nil)
	require.NoError(t, err)

	policy := decodePolicy(t, token)
	assert.Equal(t, "public/$(etag)$(ext)", policy["saveKey"])
	assert.Equal(t, "media", policy["scope"])
}

func TestTokenIssuer_Issue_SaveKeyNamespacing(t *testing.T) {
	issuer := testIssuer(t, map[string]any{
		"scope":   "media",
		"saveKey": "$(year)$(mon)/$(etag)$(ext)",
	})

	token, err := issuer.Issue("avatars", nil)
	require.NoError(t, err)

	policy := decodePolicy(t, token)
	assert.Equal(t, "avatars/$(year)$(mon)/$(etag)$(ext)", policy["saveKey"])
}

func TestTokenIssuer_Issue_OverridesWin(t *testing.T) {
	issuer := testIssuer(t, map[string]any{
		"scope":      "media",
		"saveKey":    "$(etag)$(ext)",
		"insertOnly": 1,
		"fsizeLimit": int64(1024),
	})

	token, err := issuer.Issue("docs", map[string]any{
		"saveKey":    "custom/$(etag)",
		"insertOnly": 0,
	})
	require.NoError(t, err)

	policy := decodePolicy(t, token)
	// Override wins on collision, namespaced under the directory.
	assert.Equal(t, "docs/custom/$(etag)", policy["saveKey"])
	assert.Equal(t, float64(0), policy["insertOnly"])
	// Base fields not present in overrides are preserved unchanged.
	assert.Equal(t, "media", policy["scope"])
	assert.Equal(t, float64(1024), policy["fsizeLimit"])
}

func TestTokenIssuer_Issue_DeadlineFromExpires(t *testing.T) {
	issuer := testIssuer(t, map[string]any{
		"scope":   "media",
		"saveKey": "$(etag)",
		"expires": 600,
	})

	token, err := issuer.Issue("", nil)
	require.NoError(t, err)

	policy := decodePolicy(t, token)
	assert.Equal(t, float64(1700000600), policy["deadline"])
	assert.NotContains(t, policy, "expires")
}

func TestTokenIssuer_Issue_DefaultExpires(t *testing.T) {
	issuer := testIssuer(t, map[string]any{
		"scope":   "media",
		"saveKey": "$(etag)",
	})

	token, err := issuer.Issue("", nil)
	require.NoError(t, err)

	policy := decodePolicy(t, token)
	assert.Equal(t, float64(1700003600), policy["deadline"])
}

func TestTokenIssuer_Issue_ExpiresOverrideAsJSONNumber(t *testing.T) {
	issuer := testIssuer(t, map[string]any{
		"scope":   "media",
		"saveKey": "$(etag)",
	})

	// Overrides decoded from JSON carry numbers as float64.
	token, err := issuer.Issue("", map[string]any{"expires": float64(120)})
	require.NoError(t, err)

	policy := decodePolicy(t, token)
	assert.Equal(t, float64(1700000120), policy["deadline"])
}

func TestTokenIssuer_Issue_InvalidSaveKeyType(t *testing.T) {
	issuer := testIssuer(t, map[string]any{
		"scope":   "media",
		"saveKey": "$(etag)",
	})

	_, err := issuer.Issue("", map[string]any{"saveKey": 42})
	assert.ErrorIs(t, err, ErrInvalidSaveKey)
}

func TestTokenIssuer_Issue_BaseNotMutated(t *testing.T) {
	base := map[string]any{
		"scope":   "media",
		"saveKey": "$(etag)",
	}
	issuer := testIssuer(t, base)

	_, err := issuer.Issue("docs", map[string]any{"insertOnly": 0})
	require.NoError(t, err)

	assert.Equal(t, "$(etag)", base["saveKey"])
	assert.NotContains(t, base, "insertOnly")
	assert.NotContains(t, base, "deadline")
}

func TestTokenIssuer_Issue_SignatureVerifies(t *testing.T) {
	creds, err := NewCredentials("test-ak", "test-sk")
	require.NoError(t, err)
	issuer := NewTokenIssuer(creds, map[string]any{"scope": "media", "saveKey": "$(etag)"})

	token, err := issuer.Issue("", nil)
	require.NoError(t, err)

	parts := strings.SplitN(token, ":", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, creds.Sign([]byte(parts[2]))+":"+parts[2], token)
}
