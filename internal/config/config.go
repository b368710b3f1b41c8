// Package config loads server configuration from the environment.
//
// Configuration comes from env vars, optionally seeded from dotenv files:
// .env.local is loaded first (local development overrides), then .env.
// Neither file is required — in production everything arrives as real
// environment variables. Parsing into the typed struct is done with
// go-envconfig so defaults and required-ness live next to the fields.
package config

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds every tunable the server reads at boot.
type Config struct {
	Port      int    `env:"PORT,default=3000"`
	DBPath    string `env:"DB_PATH,default=data/realliferpg.db"`
	StaticDir string `env:"STATIC_DIR,default=dist"`
	AssetDir  string `env:"ASSET_DIR,default=dist/assets/pets/shop"`

	// JWTSecret signs session tokens. Must be long and random:
	//   JWT_SECRET=$(openssl rand -hex 32)
	JWTSecret string `env:"JWT_SECRET"`

	// TokenTTL is the session token validity window. 168h = 7 days.
	TokenTTL string `env:"TOKEN_TTL,default=168h"`

	// BcryptCost overrides the password hashing work factor. Zero means the
	// auth package default.
	BcryptCost int `env:"BCRYPT_COST"`

	// Google OAuth credentials. All three empty → OAuth routes are not
	// registered and the server runs password-auth only.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`
}

// Load reads dotenv files (if present) and parses the environment.
func Load(ctx context.Context) (Config, error) {
	// godotenv.Load never overrides variables that are already set, so the
	// precedence is: real env > .env.local > .env.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	return cfg, nil
}

// GoogleEnabled reports whether a complete Google OAuth configuration was
// provided.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleCallbackURL != ""
}
