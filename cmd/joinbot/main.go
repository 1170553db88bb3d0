package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/almatymeetups/join_request_bot/internal/approval"
	"github.com/almatymeetups/join_request_bot/internal/bot"
	"github.com/almatymeetups/join_request_bot/internal/config"
	"github.com/almatymeetups/join_request_bot/internal/db"
	"github.com/almatymeetups/join_request_bot/internal/flow"
	"github.com/almatymeetups/join_request_bot/internal/health"
	"github.com/almatymeetups/join_request_bot/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := logging.Component("main")

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err = db.RunMigrations(database); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create telegram bot")
	}

	requestRepo := db.NewRequestRepository(database.Conn)
	inviteRepo := db.NewInviteLinkRepository(database.Conn)

	transport := bot.NewTransport(botAPI)
	machine := approval.New(approval.Config{
		AdminChatID:        cfg.AdminChatID,
		TargetGroupID:      cfg.TargetGroupID,
		NotifyUserOnExpiry: true,
	}, requestRepo, inviteRepo, transport)

	flowEngine := flow.New(flow.DefaultQuestions(), requestRepo)

	botService := bot.New(botAPI, bot.Config{AdminChatID: cfg.AdminChatID}, flowEngine, machine, requestRepo)

	sweeper := approval.NewSweeper(approval.SweeperConfig{
		Timeout:  cfg.Timeout,
		Interval: cfg.SweepInterval,
	}, machine, requestRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = sweeper.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start sweeper")
	}

	healthServer := health.NewServer(cfg.HealthAddr)
	healthServer.Start()
	healthServer.SetBotActive(true)

	logger.Info().Str("bot", botAPI.Self.UserName).Msg("bot started")

	if err = botService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("update loop stopped")
	}

	healthServer.SetBotActive(false)

	if err = sweeper.Stop(); err != nil {
		logger.Error().Err(err).Msg("failed to stop sweeper")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down health endpoint")
	}
}
