package config

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the four required variables.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KODO_ACCESS_KEY", "test-access-key")
	t.Setenv("KODO_SECRET_KEY", "test-secret-key")
	t.Setenv("KODO_BUCKET", "test-bucket")
	t.Setenv("KODO_DOMAIN", "cdn.example.com")
}

func TestLoad_RequiredVariables(t *testing.T) {
	clearEnv := func() {
		os.Unsetenv("PORT")
		os.Unsetenv("KODO_ACCESS_KEY")
		os.Unsetenv("KODO_SECRET_KEY")
		os.Unsetenv("KODO_BUCKET")
		os.Unsetenv("KODO_DOMAIN")
		os.Unsetenv("KODO_PIPELINE")
		os.Unsetenv("PERSISTENT_NOTIFY_URL")
		os.Unsetenv("MYSQL_DSN")
		os.Unsetenv("LOG_FORMAT")
		os.Unsetenv("LOG_LEVEL")
	}

	t.Run("missing KODO_ACCESS_KEY returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("KODO_SECRET_KEY", "sk")
		t.Setenv("KODO_BUCKET", "b")
		t.Setenv("KODO_DOMAIN", "d")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAccessKeyRequired)
	})

	t.Run("missing KODO_SECRET_KEY returns error", func(t *testing.T) {
		clearEnv()
		t.Setenv("KODO_ACCESS_KEY", "ak")
		t.Setenv("KODO_BUCKET", "b")
		t.Setenv("KODO_DOMAIN", "d")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSecretKeyRequired)
	})

	t.Run("all required variables present succeeds", func(t *testing.T) {
		clearEnv()
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "test-access-key", cfg.AccessKey)
		assert.Equal(t, "test-secret-key", cfg.SecretKey)
		assert.Equal(t, "test-bucket", cfg.Bucket)
		assert.Equal(t, "cdn.example.com", cfg.Domain)
	})
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "$(year)$(mon)/$(etag)$(ext)", cfg.PolicySaveKey)
	assert.Equal(t, 3600, cfg.PolicyExpires)
	assert.Equal(t, 1, cfg.PolicyInsertOnly)
	assert.Equal(t, int64(104857600), cfg.PolicyFsizeLimit)
	assert.Equal(t, "application/x-www-form-urlencoded", cfg.CallbackBodyType)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.MySQLEnabled())
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("KODO_PIPELINE", "media-pipeline")
	t.Setenv("PERSISTENT_NOTIFY_URL", "http://cdn.example.com/qiniu/persistent-notify")
	t.Setenv("POLICY_EXPIRES", "600")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/kodo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "media-pipeline", cfg.Pipeline)
	assert.Equal(t, "http://cdn.example.com/qiniu/persistent-notify", cfg.NotifyURL)
	assert.Equal(t, 600, cfg.PolicyExpires)
	assert.True(t, cfg.MySQLEnabled())
}

func TestConfig_BasePolicy(t *testing.T) {
	t.Run("scope falls back to bucket", func(t *testing.T) {
		cfg := &Config{
			Bucket:           "media",
			PolicySaveKey:    "$(etag)$(ext)",
			PolicyExpires:    3600,
			PolicyInsertOnly: 1,
			PolicyFsizeLimit: 1024,
		}

		policy := cfg.BasePolicy()
		assert.Equal(t, "media", policy["scope"])
		assert.Equal(t, "$(etag)$(ext)", policy["saveKey"])
		assert.NotContains(t, policy, "callbackUrl")
	})

	t.Run("callback fields included when callback url set", func(t *testing.T) {
		cfg := &Config{
			Bucket:           "media",
			PolicyScope:      "media:prefix",
			CallbackURL:      "http://cdn.example.com/qiniu/callback",
			CallbackHost:     "cdn.example.com",
			CallbackBody:     "bucket=$(bucket)&key=$(key)",
			CallbackBodyType: "application/x-www-form-urlencoded",
		}

		policy := cfg.BasePolicy()
		assert.Equal(t, "media:prefix", policy["scope"])
		assert.Equal(t, "http://cdn.example.com/qiniu/callback", policy["callbackUrl"])
		assert.Equal(t, "cdn.example.com", policy["callbackHost"])
		assert.Equal(t, "bucket=$(bucket)&key=$(key)", policy["callbackBody"])
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"valid", Config{AccessKey: "ak", SecretKey: "sk", Bucket: "b", Domain: "d"}, nil},
		{"missing access key", Config{SecretKey: "sk", Bucket: "b", Domain: "d"}, ErrAccessKeyRequired},
		{"missing secret key", Config{AccessKey: "ak", Bucket: "b", Domain: "d"}, ErrSecretKeyRequired},
		{"missing bucket", Config{AccessKey: "ak", SecretKey: "sk", Domain: "d"}, ErrBucketRequired},
		{"missing domain", Config{AccessKey: "ak", SecretKey: "sk", Bucket: "b"}, ErrDomainRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_String_MasksSecrets(t *testing.T) {
	cfg := &Config{
		AccessKey: "very-secret-ak",
		SecretKey: "very-secret-sk",
		Bucket:    "media",
		Domain:    "cdn.example.com",
		MySQLDSN:  "user:password@tcp(localhost)/db",
	}

	s := cfg.String()
	assert.NotContains(t, s, "very-secret-ak")
	assert.NotContains(t, s, "very-secret-sk")
	assert.NotContains(t, s, "password")
	assert.Contains(t, s, "media")
}

func TestConfig_NewLogger(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		cfg := &Config{LogFormat: "json", LogLevel: "debug"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("text format default level", func(t *testing.T) {
		cfg := &Config{LogFormat: "text", LogLevel: "bogus"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
		assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
		assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}
