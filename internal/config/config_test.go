package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, DefaultJWTSecret, c.JWTSecret)
	assert.Equal(t, 7*24*time.Hour, c.TokenTTL)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, PolicyConceal, c.CrossOwnerPolicy)
	assert.Equal(t, BackendFile, c.StoreBackend)
	assert.Equal(t, "data", c.DataDir)
	assert.NoError(t, c.Validate())
	assert.True(t, c.UsesDevSecret())
	assert.False(t, c.GitHubEnabled())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	c, err := load(nil, "", envFrom(map[string]string{
		"PORT":               "9090",
		"JWT_SECRET":         "a-production-secret-of-some-length",
		"TOKEN_TTL":          "24h",
		"BCRYPT_COST":        "12",
		"COOKIE_SECURE":      "true",
		"CROSS_OWNER_POLICY": "forbid",
		"STORE_BACKEND":      "redis",
		"REDIS_ADDR":         "redis:6379",
		"REDIS_DB":           "2",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	assert.Equal(t, 12, c.BcryptCost)
	assert.True(t, c.CookieSecure)
	assert.Equal(t, PolicyForbid, c.CrossOwnerPolicy)
	assert.Equal(t, BackendRedis, c.StoreBackend)
	assert.Equal(t, "redis:6379", c.RedisAddr)
	assert.Equal(t, 2, c.RedisDB)
	assert.False(t, c.UsesDevSecret())
}

func TestLoad_BadEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric port", map[string]string{"PORT": "eighty"}},
		{"bad ttl", map[string]string{"TOKEN_TTL": "a week"}},
		{"bad bool", map[string]string{"COOKIE_SECURE": "maybe"}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}},
		{"unknown policy", map[string]string{"CROSS_OWNER_POLICY": "shrug"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(nil, "", envFrom(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	c, err := load(
		[]string{"-port", "7000", "--store=sqlite", "-sqlite", "/tmp/x.db", "-command", "list-users"},
		"",
		envFrom(map[string]string{"PORT": "9090", "STORE_BACKEND": "redis"}),
	)
	require.NoError(t, err)

	assert.Equal(t, 7000, c.Port)
	assert.Equal(t, BackendSQLite, c.StoreBackend)
	assert.Equal(t, "/tmp/x.db", c.SQLitePath)
}

func TestLoad_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"store_backend": "s3",
		"s3_bucket": "vault",
		"s3_endpoint": "http://127.0.0.1:9000/",
		"token_ttl": "1h"
	}`), 0o644))

	c, err := load([]string{"-config", path}, "", envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, BackendS3, c.StoreBackend)
	assert.Equal(t, "vault", c.S3Bucket)
	assert.Equal(t, "http://127.0.0.1:9000/", c.S3Endpoint)
	assert.Equal(t, time.Hour, c.TokenTTL)
	assert.Equal(t, 8080, c.Port, "fields absent from the file keep earlier values")
}

func TestLoad_FlagsBeatJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 9000, "store_backend": "redis"}`), 0o644))

	c, err := load([]string{"-port", "7000", "-config", path}, "", envFrom(map[string]string{"PORT": "6000"}))
	require.NoError(t, err)

	assert.Equal(t, 7000, c.Port, "flag beats file and env")
	assert.Equal(t, BackendRedis, c.StoreBackend, "file beats defaults")
}

func TestLoad_JSONFileMissing(t *testing.T) {
	_, err := load([]string{"-config", "/does/not/exist.json"}, "", envFrom(nil))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRACKER_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("TRACKER_TEST_DOTENV", "")
	os.Unsetenv("TRACKER_TEST_DOTENV")

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("TRACKER_TEST_DOTENV"))

	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "separate value",
			args: []string{"-port", "80", "-command", "list-users"},
			want: []string{"-port", "80"},
		},
		{
			name: "equals form and double dash",
			args: []string{"--store=redis", "-email=a@x.com"},
			want: []string{"--store=redis"},
		},
		{
			name: "boolean-looking flag followed by another flag",
			args: []string{"-config", "-port", "1"},
			want: []string{"-config", "-port", "1"},
		},
		{
			name: "positional arguments dropped",
			args: []string{"serve", "-port", "1"},
			want: []string{"-port", "1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filterArgs(tt.args, configFlags))
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warn", "error", ""} {
		_, err := ParseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
