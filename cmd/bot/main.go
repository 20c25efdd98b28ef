package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arthaus/photoshoot-bot/internal/admin"
	"github.com/arthaus/photoshoot-bot/internal/artifact"
	"github.com/arthaus/photoshoot-bot/internal/config"
	"github.com/arthaus/photoshoot-bot/internal/database"
	"github.com/arthaus/photoshoot-bot/internal/provider"
	"github.com/arthaus/photoshoot-bot/internal/repository"
	"github.com/arthaus/photoshoot-bot/internal/service"
	"github.com/arthaus/photoshoot-bot/internal/storage"
	"github.com/arthaus/photoshoot-bot/internal/telegram"
	"github.com/arthaus/photoshoot-bot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	providerClient := provider.NewClient(cfg, logr)

	accountRepo := repository.NewAccountRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	photoshootRepo := repository.NewPhotoshootRepository(db)
	styleRepo := repository.NewStyleRepository(db)

	downloader := telegram.NewFileDownloader(botAPI)
	artifacts := artifact.NewStore(cfg.ArtifactDir)

	accountService := service.NewAccountService(accountRepo, cfg.SuperAdminID)
	styleService := service.NewStyleService(styleRepo)
	paymentService := service.NewPaymentService(cfg, logr, paymentRepo, accountRepo)
	photoshootService := service.NewPhotoshootService(cfg, logr, accountRepo, photoshootRepo, providerClient, artifacts, downloader.Fetch)

	var archive telegram.ArtifactArchive
	if cfg.ArchiveEnabled() {
		s3Archive, err := storage.NewArchive(cfg)
		if err != nil {
			log.Fatalf("storage archive: %v", err)
		}
		archive = s3Archive
	}

	bot := telegram.NewBot(cfg, botAPI, logr, accountService, styleService, photoshootService, paymentService, archive)

	adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, accountService, styleService, photoshootService, paymentService)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}
