// Package app assembles services from configuration for the server and CLI.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/completion"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/notifier"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/slackbot"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/summary"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task"
	taskrepo "github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task/repo"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user/repo"
)

type App struct {
	Config     config.Config
	DB         *sqlx.DB
	Users      *user.Service
	Tasks      *task.Service
	Summarizer summary.Summarizer
	// Slack is nil when the bot token or signing secret is missing.
	Slack  *slack.Client
	logger *zap.SugaredLogger
}

// Migrate creates the tables in dependency order.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	steps := []struct {
		name   string
		ensure func(context.Context) error
	}{
		{"users", userrepo.NewUserRepo(db).EnsureTable},
		{"tasks", taskrepo.NewTaskRepo(db).EnsureTable},
		{"task_updates", taskrepo.NewUpdateRepo(db).EnsureTable},
	}
	for _, s := range steps {
		if err := s.ensure(ctx); err != nil {
			return fmt.Errorf("ensure %s table: %w", s.name, err)
		}
	}
	return nil
}

func New(cfg config.Config, db *sqlx.DB, logger *zap.SugaredLogger) *App {
	a := &App{
		Config: cfg,
		DB:     db,
		Users:  user.NewService(userrepo.NewUserRepo(db)),
		Tasks:  task.NewService(taskrepo.NewTaskRepo(db), taskrepo.NewUpdateRepo(db)),
		logger: logger,
	}

	if cfg.AIEnabled() {
		a.Summarizer = summary.New(completion.NewClient(completion.Config{
			APIKey:        cfg.AnthropicAPIKey,
			Model:         cfg.AnthropicModel,
			BaseURL:       cfg.AnthropicBaseURL,
			Timeout:       cfg.AITimeout,
			RatePerMinute: cfg.AIRatePerMinute,
		}), logger)
	} else {
		a.Summarizer = summary.New(nil, logger)
	}

	if cfg.SlackEnabled() {
		a.Slack = slack.New(cfg.SlackBotToken)
	} else {
		logger.Infow("slack credentials not set, chat integration disabled")
	}
	return a
}

// Poster returns the delivery target for scheduled messages. Without Slack,
// or when dryRun is set, messages are only logged.
func (a *App) Poster(dryRun bool) notifier.Poster {
	if dryRun || a.Slack == nil {
		return notifier.LogPoster{Logger: a.logger}
	}
	return notifier.NewSlackPoster(a.Slack)
}

func (a *App) Jobs(p notifier.Poster) *notifier.Jobs {
	return notifier.NewJobs(a.Tasks, a.Summarizer, p, a.Config.DigestChannel, a.logger)
}

// Handler builds the HTTP surface.
func (a *App) Handler() http.Handler {
	d := router.Deps{
		Logger:     a.logger,
		Config:     a.Config,
		DB:         a.DB,
		Users:      a.Users,
		Tasks:      a.Tasks,
		Summarizer: a.Summarizer,
	}
	if a.Slack != nil {
		d.Slack = slackbot.NewHandler(a.Slack, a.Config.SlackSigningSecret, a.Users, a.Tasks, a.logger)
	}
	return router.RegisterRoutes(d)
}
