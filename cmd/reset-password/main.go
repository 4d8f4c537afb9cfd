package main

import (
	"flag"
	"os"

	"go-resale-dashboard/internal/config"
	"go-resale-dashboard/internal/model"
	"go-resale-dashboard/internal/repository"
	"go-resale-dashboard/pkg/database"
	"go-resale-dashboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// reset-password sets a new password for the operator account directly in
// Postgres and ends its sessions. Use it when the password is lost.
func main() {
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "operator email")
	password := flag.String("password", "", "new password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.Env, cfg.LogLevel)

	if *email == "" || len(*password) < 6 {
		log.Fatal().Msg("usage: reset-password -email <email> -password <at least 6 characters>")
	}

	db, err := database.ConnectDB(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	users := repository.NewUserRepo(db)

	user, err := users.FindByEmail(*email)
	if err != nil {
		log.Fatal().Err(err).Str("email", *email).Msg("operator not found in database")
	}

	var hashed model.User
	if err := hashed.SetPassword(*password); err != nil {
		log.Fatal().Err(err).Msg("failed to hash password")
	}
	if err := users.UpdatePassword(user.ID, hashed.Password); err != nil {
		log.Fatal().Err(err).Msg("failed to update password in DB")
	}
	if err := users.UpdateTokenVersion(user.ID, uuid.NewString()); err != nil {
		log.Fatal().Err(err).Msg("failed to end existing sessions")
	}

	log.Info().Str("email", user.Email).Msg("password has been reset")
}
