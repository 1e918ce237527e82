package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// fileConfig is the JSON file shape. Pointer fields distinguish "absent"
// from zero so a file only overrides what it mentions.
type fileConfig struct {
	Port             *int    `json:"port"`
	StaticDir        *string `json:"static_dir"`
	LogLevel         *string `json:"log_level"`
	JWTSecret        *string `json:"jwt_secret"`
	TokenTTL         *string `json:"token_ttl"`
	BcryptCost       *int    `json:"bcrypt_cost"`
	CookieSecure     *bool   `json:"cookie_secure"`
	CrossOwnerPolicy *string `json:"cross_owner_policy"`
	StoreBackend     *string `json:"store_backend"`
	DataDir          *string `json:"data_dir"`
	SQLitePath       *string `json:"sqlite_path"`
	PostgresDSN      *string `json:"postgres_dsn"`
	RedisAddr        *string `json:"redis_addr"`
	RedisPassword    *string `json:"redis_password"`
	RedisDB          *int    `json:"redis_db"`
	RedisPrefix      *string `json:"redis_prefix"`
	S3Bucket         *string `json:"s3_bucket"`
	S3Region         *string `json:"s3_region"`
	S3Endpoint       *string `json:"s3_endpoint"`
	S3AccessKey      *string `json:"s3_access_key"`
	S3SecretKey      *string `json:"s3_secret_key"`
	S3Prefix         *string `json:"s3_prefix"`
}

func applyJSONFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	var f fileConfig
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	setStr := func(src *string, dst *string) {
		if src != nil {
			*dst = *src
		}
	}
	if f.Port != nil {
		c.Port = *f.Port
	}
	setStr(f.StaticDir, &c.StaticDir)
	setStr(f.LogLevel, &c.LogLevel)
	setStr(f.JWTSecret, &c.JWTSecret)
	if f.TokenTTL != nil {
		d, err := time.ParseDuration(*f.TokenTTL)
		if err != nil {
			return fmt.Errorf("config: token_ttl %q: %w", *f.TokenTTL, err)
		}
		c.TokenTTL = d
	}
	if f.BcryptCost != nil {
		c.BcryptCost = *f.BcryptCost
	}
	if f.CookieSecure != nil {
		c.CookieSecure = *f.CookieSecure
	}
	setStr(f.CrossOwnerPolicy, &c.CrossOwnerPolicy)
	setStr(f.StoreBackend, &c.StoreBackend)
	setStr(f.DataDir, &c.DataDir)
	setStr(f.SQLitePath, &c.SQLitePath)
	setStr(f.PostgresDSN, &c.PostgresDSN)
	setStr(f.RedisAddr, &c.RedisAddr)
	setStr(f.RedisPassword, &c.RedisPassword)
	if f.RedisDB != nil {
		c.RedisDB = *f.RedisDB
	}
	setStr(f.RedisPrefix, &c.RedisPrefix)
	setStr(f.S3Bucket, &c.S3Bucket)
	setStr(f.S3Region, &c.S3Region)
	setStr(f.S3Endpoint, &c.S3Endpoint)
	setStr(f.S3AccessKey, &c.S3AccessKey)
	setStr(f.S3SecretKey, &c.S3SecretKey)
	setStr(f.S3Prefix, &c.S3Prefix)
	return nil
}
