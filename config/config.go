package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

// Config carries everything main needs to stand up a room instance.
type Config struct {
	HostPort      string
	RoomName      string
	RedisEndpoint string
	JWTSecret     []byte
	DevMode       bool
	AllowedOrigin string
	MDNSAdvertise bool
	OauthConfigs  map[string]*oauth2.Config
}

// Load reads configuration from the environment, with a .env file as a
// convenience for local runs. REDIS_ENDPOINT left empty selects the
// in-process bus, which is the single-instance mode.
func Load() (Config, error) {
	godotenv.Load()

	cfg := Config{
		HostPort:      getEnv("HOST_PORT", "8080"),
		RoomName:      getEnv("ROOM_NAME", "main"),
		RedisEndpoint: os.Getenv("REDIS_ENDPOINT"),
		DevMode:       os.Getenv("DEV_MODE") == "true",
		MDNSAdvertise: os.Getenv("MDNS_ADVERTISE") == "true",
	}
	cfg.AllowedOrigin = getEnv("ALLOWED_ORIGIN", "http://localhost:"+cfg.HostPort)

	secret := os.Getenv("JWT_SECRET")
	switch {
	case secret != "":
		decoded, err := base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return Config{}, fmt.Errorf("failed to decode base64 JWT_SECRET: %w", err)
		}
		cfg.JWTSecret = decoded

	case cfg.DevMode:
		// Tokens die with the process; good enough for local rooms.
		cfg.JWTSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.JWTSecret); err != nil {
			return Config{}, fmt.Errorf("failed to generate dev jwt secret: %w", err)
		}
		log.Printf("DEV_MODE: using an ephemeral JWT secret")

	default:
		return Config{}, errors.New("JWT_SECRET is required outside dev mode")
	}

	cfg.OauthConfigs = map[string]*oauth2.Config{}
	redirectURL := os.Getenv("OAUTH_REDIRECT_URL")
	if id := os.Getenv("GITHUB_CLIENT_ID"); id != "" {
		cfg.OauthConfigs["github"] = &oauth2.Config{
			ClientID:     id,
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  redirectURL,
		}
	}
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		cfg.OauthConfigs["google"] = &oauth2.Config{
			ClientID:     id,
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  redirectURL,
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
