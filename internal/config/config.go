package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvPresenceURL  = "PRESENCE_URL"
	EnvAuthEndpoint = "PRESENCE_AUTH_ENDPOINT"
	EnvRoom         = "PRESENCE_ROOM"
	EnvAddr         = "LIVECURSOR_ADDR"
	EnvOrigins      = "LIVECURSOR_ORIGINS"
	EnvDatabaseURL  = "DATABASE_URL"

	DefaultRoom = "live-cursor"
	DefaultAddr = ":8080"
)

var (
	ErrMissingPresenceURL = errors.New("config: " + EnvPresenceURL + " is required")
	ErrMissingRoom        = errors.New("config: room name is empty")
	ErrMissingAddr        = errors.New("config: listen address is empty")
)

type Config struct {
	PresenceURL  string
	AuthEndpoint string
	Room         string
	Addr         string
	Origins      []string
	DatabaseURL  string
}

// Load reads the given .env files (default ".env") when they exist, then
// the environment. Variables already set win over file values.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config load failed: %w", err)
	}

	cfg := Config{
		PresenceURL:  strings.TrimSpace(os.Getenv(EnvPresenceURL)),
		AuthEndpoint: strings.TrimSpace(os.Getenv(EnvAuthEndpoint)),
		Room:         strings.TrimSpace(os.Getenv(EnvRoom)),
		Addr:         strings.TrimSpace(os.Getenv(EnvAddr)),
		Origins:      splitList(os.Getenv(EnvOrigins)),
		DatabaseURL:  strings.TrimSpace(os.Getenv(EnvDatabaseURL)),
	}
	if cfg.Room == "" {
		cfg.Room = DefaultRoom
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return cfg, nil
}

// ValidateClient checks what a presence client needs to join.
func ValidateClient(cfg Config) error {
	if cfg.PresenceURL == "" {
		return ErrMissingPresenceURL
	}
	if _, err := url.Parse(cfg.PresenceURL); err != nil {
		return fmt.Errorf("config: invalid %s: %w", EnvPresenceURL, err)
	}
	if cfg.AuthEndpoint != "" {
		if _, err := url.Parse(cfg.AuthEndpoint); err != nil {
			return fmt.Errorf("config: invalid %s: %w", EnvAuthEndpoint, err)
		}
	}
	if cfg.Room == "" {
		return ErrMissingRoom
	}
	return nil
}

// ValidateServer checks what the relay server needs to listen.
func ValidateServer(cfg Config) error {
	if cfg.Addr == "" {
		return ErrMissingAddr
	}
	for _, o := range cfg.Origins {
		if strings.ContainsAny(o, " \t") {
			return fmt.Errorf("config: invalid origin pattern %q", o)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
