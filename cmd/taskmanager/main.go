package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"task-manager/internal/bot"
	"task-manager/internal/cloudstore"
	"task-manager/internal/config"
	"task-manager/internal/logger"
	"task-manager/internal/remote"
	"task-manager/internal/repository"
	"task-manager/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg)

	driver, closer, err := openDriver(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("open backend")
	}
	defer closer.Close()

	// One client per chat, so every chat holds its own session. Attempts are
	// counted per email across all chats.
	limiter := remote.NewAttemptLimiter(cfg.Session.SignInRate)
	newWorkspace := func() (*service.Workspace, error) {
		client, err := remote.NewClient(driver, remote.Options{
			Secret:     []byte(cfg.Session.Secret),
			SessionTTL: cfg.Session.TTL,
			Limiter:    limiter,
			Logger:     log,
		})
		if err != nil {
			return nil, err
		}
		return service.NewWorkspace(client, log), nil
	}

	loc := cfg.Location()
	telegramBot, err := bot.New(cfg.TelegramToken, newWorkspace, service.NewReminderService(loc), loc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create bot")
	}

	scheduler := service.NewSchedulerService(loc, log)
	if _, err := scheduler.ScheduleInterval(cfg.Session.CheckInterval, "sessions", telegramBot.CheckSessions); err != nil {
		log.Fatal().Err(err).Msg("schedule session checks")
	}
	if _, err := scheduler.ScheduleDaily(cfg.DigestTime, "digest", telegramBot.SendDigests); err != nil {
		log.Fatal().Err(err).Msg("schedule digest")
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Info().Str("backend", cfg.Backend).Str("digest_time", cfg.DigestTime).Msg("task manager bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("bot stopped with error")
		return
	}
	log.Info().Msg("shutdown complete")
}

func openDriver(ctx context.Context, cfg config.Config, log zerolog.Logger) (remote.Driver, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		client, err := cloudstore.Connect(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return cloudstore.NewDriver(client), client, nil
	default:
		db, err := repository.NewDB(cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("db handle: %w", err)
		}
		return repository.NewDriver(db), sqlDB, nil
	}
}
