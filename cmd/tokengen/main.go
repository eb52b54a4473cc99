// Command tokengen issues operator bearer tokens for the API guard.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Val17-ui/CACESmodule-sub000/internal/auth"
	"github.com/Val17-ui/CACESmodule-sub000/internal/auth/jwt"
)

func main() {
	var (
		name   = flag.String("name", "", "Operator display name")
		role   = flag.String("role", auth.RoleTrainer, "Operator role: trainer or admin")
		ttl    = flag.Duration("ttl", 12*time.Hour, "Token lifetime")
		issuer = flag.String("issuer", "caces-module", "Token issuer, must match JWT_ISSUER")
	)
	flag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", "tokengen").Logger()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load("configs/.env")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal().Msg("JWT_SECRET environment variable is required")
	}
	if *name == "" {
		log.Fatal().Msg("-name is required")
	}
	if *role != auth.RoleTrainer && *role != auth.RoleAdmin {
		log.Fatal().Str("role", *role).Msg("unknown role")
	}

	manager := jwt.NewManager(jwt.TokenConfig{Secret: []byte(secret), TTL: *ttl, Issuer: *issuer})
	operatorID := uuid.New()
	token, err := manager.GenerateToken(jwt.Operator{ID: operatorID, Name: *name, Role: *role})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}

	log.Info().Str("operator_id", operatorID.String()).Str("role", *role).Dur("ttl", *ttl).Msg("token issued")
	fmt.Println(token)
}
