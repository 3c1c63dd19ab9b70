package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/utilities"
)

var rootCmd = &cobra.Command{
	Use:   "bulletinctl",
	Short: "Operate the bulletin task service",
	Long: `Administrative commands for the bulletin task service.

Reads the same environment as the API server (DATABASE_URL, SLACK_BOT_TOKEN,
ANTHROPIC_API_KEY, DIGEST_CHANNEL, ...). A .env file in the working
directory is loaded when present.`,
	SilenceUsage: true,
}

func init() {
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs; close releases it.
type env struct {
	logger *zap.SugaredLogger
	db     *sqlx.DB
	close  func()
}

func open() (*env, error) {
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		_ = lg.Sync()
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return &env{
		logger: lg.Sugar(),
		db:     db,
		close: func() {
			db.Close()
			_ = lg.Sync()
		},
	}, nil
}

func (e *env) app() *app.App {
	return app.New(config.FromEnv(), e.db, e.logger)
}
