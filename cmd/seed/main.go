package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/service"
)

func main() {
	ingredientsPath := flag.String("ingredients", "", "JSON file of ingredients (defaults to the bundled list)")
	tagsPath := flag.String("tags", "", "JSON file of tags (defaults to the bundled list)")
	withUsers := flag.Bool("demo-users", false, "Also create demo accounts")
	password := flag.String("password", "foodgram-demo", "Password for demo accounts")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := database.Open(cfg.DB)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.RunMigrations(db, "migrations"); err != nil {
		logging.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx := context.Background()

	r, err := open(*ingredientsPath, "data/ingredients.json")
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open ingredients")
	}
	n, err := loadIngredients(ctx, db, r)
	r.Close()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load ingredients")
	}
	logging.Info().Int64("added", n).Msg("ingredients loaded")

	r, err = open(*tagsPath, "data/tags.json")
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open tags")
	}
	n, err = loadTags(ctx, db, r)
	r.Close()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load tags")
	}
	logging.Info().Int64("added", n).Msg("tags loaded")

	if *withUsers {
		created, err := seedUsers(ctx, service.NewUserService(db, nil), *password)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to create demo users")
		}
		logging.Info().Int("created", created).Msg("demo users created")
	}
}

// open reads path from disk, or the bundled file when path is empty.
func open(path, bundled string) (io.ReadCloser, error) {
	if path == "" {
		return defaults.Open(bundled)
	}
	return os.Open(path)
}
