// cmd/discord/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"moobot/internal/config"
	"moobot/internal/discord"
	"moobot/internal/httpapi"
	"moobot/internal/logging"
	"moobot/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const appName = "moobot"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	closer := logging.Setup(cfg.LogLevel, cfg.LogFile)
	defer closer.Close()

	log.Info().Str("app", appName).Str("storage", cfg.StorageDriver).Msg("Starting bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(cfg.StorageDriver, cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	bot, err := discord.New(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	errCh := make(chan error, 2)
	running := 1
	go func() {
		errCh <- bot.Run(ctx)
	}()

	if cfg.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := httpapi.NewRouter(httpapi.Deps{
			Cowboard: store,
			Registry: bot.Registry(),
			Jobs:     bot.Jobs,
			Player:   bot.Audio(),
		})
		running++
		go func() {
			errCh <- httpapi.Serve(ctx, cfg.HTTPAddr, router)
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Received signal, shutting down")
	case err := <-errCh:
		running--
		if err != nil {
			log.Error().Err(err).Msg("Service stopped with error")
		}
	}
	cancel()

	for ; running > 0; running-- {
		if err := <-errCh; err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}
	log.Info().Msg("Bot exited cleanly")
}
