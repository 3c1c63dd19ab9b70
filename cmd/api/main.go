package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/notifier"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/utilities"
)

func main() {
	// best-effort: a missing .env falls back to the real environment
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	cfg := config.FromEnv()
	sugar.Infow("starting bulletin service", "env", cfg.Env, "addr", cfg.HTTPAddr)

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Migrate(ctx, db); err != nil {
		sugar.Fatalf("migrate: %v", err)
	}

	a := app.New(cfg, db, sugar)

	var sched *notifier.Scheduler
	if a.Slack != nil {
		sched, err = notifier.NewScheduler(a.Jobs(a.Poster(false)), notifier.ScheduleConfig{
			Digest:   scheduleIf(cfg.DigestChannel != "", cfg.DigestSchedule),
			Reminder: cfg.ReminderSchedule,
			TimeZone: cfg.ScheduleTZ,
		}, sugar)
		if err != nil {
			sugar.Fatalf("scheduler: %v", err)
		}
		sched.Start()
		sugar.Infow("scheduler started", "jobs", sched.Entries(), "tz", cfg.ScheduleTZ)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if sched != nil {
		sched.Stop(doneCtx)
	}

	sugar.Info("goodbye")
}

// scheduleIf returns expr when enabled, otherwise an empty schedule.
func scheduleIf(enabled bool, expr string) string {
	if !enabled {
		return ""
	}
	return expr
}
