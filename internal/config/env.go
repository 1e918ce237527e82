package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv reads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables onto c.
func applyEnv(c *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v := getenv(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not an integer", name, v)
		}
		*dst = n
		return nil
	}

	if err := integer("PORT", &c.Port); err != nil {
		return err
	}
	str("STATIC_DIR", &c.StaticDir)
	str("LOG_LEVEL", &c.LogLevel)

	str("JWT_SECRET", &c.JWTSecret)
	if v := getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: TOKEN_TTL=%q: %w", v, err)
		}
		c.TokenTTL = d
	}
	if err := integer("BCRYPT_COST", &c.BcryptCost); err != nil {
		return err
	}
	if v := getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: COOKIE_SECURE=%q is not a boolean", v)
		}
		c.CookieSecure = b
	}
	str("CROSS_OWNER_POLICY", &c.CrossOwnerPolicy)

	str("STORE_BACKEND", &c.StoreBackend)
	str("DATA_DIR", &c.DataDir)
	str("SQLITE_PATH", &c.SQLitePath)
	str("DATABASE_URL", &c.PostgresDSN)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	if err := integer("REDIS_DB", &c.RedisDB); err != nil {
		return err
	}
	str("REDIS_PREFIX", &c.RedisPrefix)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)
	str("S3_PREFIX", &c.S3Prefix)

	str("GITHUB_CLIENT_ID", &c.GitHubClientID)
	str("GITHUB_CLIENT_SECRET", &c.GitHubClientSecret)
	str("GITHUB_CALLBACK_URL", &c.GitHubCallbackURL)
	return nil
}
