package kodo

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCredentials(t *testing.T) {
	t.Run("missing access key", func(t *testing.T) {
		_, err := NewCredentials("", "sk")
		assert.ErrorIs(t, err, ErrAccessKeyRequired)
	})

	t.Run("missing secret key", func(t *testing.T) {
		_, err := NewCredentials("ak", "")
		assert.ErrorIs(t, err, ErrSecretKeyRequired)
	})

	t.Run("success", func(t *testing.T) {
		creds, err := NewCredentials("ak", "sk")
		require.NoError(t, err)
		assert.Equal(t, "ak", creds.AccessKey)
	})
}

func TestCredentials_Sign(t *testing.T) {
	creds, err := NewCredentials("test-ak", "test-sk")
	require.NoError(t, err)

	got := creds.Sign([]byte("hello"))

	h := hmac.New(sha1.New, []byte("test-sk"))
	h.Write([]byte("hello"))
	want := "test-ak:" + base64.URLEncoding.EncodeToString(h.Sum(nil))
	assert.Equal(t, want, got)
}

func TestCredentials_SignWithData(t *testing.T) {
	creds, err := NewCredentials("test-ak", "test-sk")
	require.NoError(t, err)

	token := creds.SignWithData([]byte(`{"scope":"bucket"}`))

	parts := strings.SplitN(token, ":", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "test-ak", parts[0])

	// The trailing part round-trips to the signed data.
	decoded, err := base64.URLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Equal(t, `{"scope":"bucket"}`, string(decoded))

	// The middle part is the HMAC over the encoded data.
	h := hmac.New(sha1.New, []byte("test-sk"))
	h.Write([]byte(parts[2]))
	assert.Equal(t, base64.URLEncoding.EncodeToString(h.Sum(nil)), parts[1])
}

func TestCredentials_SignRequest(t *testing.T) {
	creds, err := NewCredentials("test-ak", "test-sk")
	require.NoError(t, err)

	t.Run("path only", func(t *testing.T) {
		token := creds.SignRequest("/pfop/", "", nil)
		assert.True(t, strings.HasPrefix(token, "QBox test-ak:"))

		h := hmac.New(sha1.New, []byte("test-sk"))
		h.Write([]byte("/pfop/\n"))
		want := "QBox test-ak:" + base64.URLEncoding.EncodeToString(h.Sum(nil))
		assert.Equal(t, want, token)
	})

	t.Run("path with query and body", func(t *testing.T) {
		token := creds.SignRequest("/pfop/", "v=2", []byte("bucket=b&key=k"))

		h := hmac.New(sha1.New, []byte("test-sk"))
		h.Write([]byte("/pfop/?v=2\nbucket=b&key=k"))
		want := "QBox test-ak:" + base64.URLEncoding.EncodeToString(h.Sum(nil))
		assert.Equal(t, want, token)
	})
}
