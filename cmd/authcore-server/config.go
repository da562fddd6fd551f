package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type serverConfig struct {
	HTTPAddr    string
	RedisAddr   string
	RedisDB     int
	PostgresDSN string

	NSQAddr  string
	NSQTopic string

	JWTPrivateKey ed25519.PrivateKey
	JWTPublicKey  ed25519.PublicKey
	JWTIssuer     string

	DevSender bool
}

// loadConfig reads a local .env when present, then the process environment.
// AUTHCORE_JWT_SEED is a base64 ed25519 seed; when empty a throwaway keypair
// is generated, which is only acceptable for local runs since tokens do not
// survive restarts.
func loadConfig() (*serverConfig, error) {
	_ = godotenv.Load()

	cfg := &serverConfig{
		HTTPAddr:    envOr("AUTHCORE_HTTP_ADDR", ":8080"),
		RedisAddr:   envOr("AUTHCORE_REDIS_ADDR", "localhost:6379"),
		PostgresDSN: os.Getenv("AUTHCORE_POSTGRES_DSN"),
		NSQAddr:     os.Getenv("AUTHCORE_NSQ_ADDR"),
		NSQTopic:    envOr("AUTHCORE_NSQ_TOPIC", "otp-delivery"),
		JWTIssuer:   envOr("AUTHCORE_JWT_ISSUER", "authcore"),
		DevSender:   os.Getenv("AUTHCORE_NSQ_ADDR") == "",
	}

	if v := os.Getenv("AUTHCORE_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTHCORE_REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}

	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("AUTHCORE_POSTGRES_DSN is required")
	}

	if seed := os.Getenv("AUTHCORE_JWT_SEED"); seed != "" {
		raw, err := base64.StdEncoding.DecodeString(seed)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTHCORE_JWT_SEED: %w", err)
		}
		if len(raw) != ed25519.SeedSize {
			return nil, fmt.Errorf("AUTHCORE_JWT_SEED must be a %d-byte seed", ed25519.SeedSize)
		}
		priv := ed25519.NewKeyFromSeed(raw)
		cfg.JWTPrivateKey = priv
		cfg.JWTPublicKey = priv.Public().(ed25519.PublicKey)
	} else {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("generate dev jwt key: %w", err)
		}
		cfg.JWTPrivateKey = priv
		cfg.JWTPublicKey = pub
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
