package main

import (
	"context"
	stdlog "log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mlundquist/saga-engine/internal/config"
	"github.com/mlundquist/saga-engine/internal/engine"
	"github.com/mlundquist/saga-engine/internal/handlers"
	"github.com/mlundquist/saga-engine/internal/logger"
	"github.com/mlundquist/saga-engine/internal/middleware"
	"github.com/mlundquist/saga-engine/internal/services"
	"github.com/mlundquist/saga-engine/internal/storage"
	"github.com/mlundquist/saga-engine/pkg/brain"
	"github.com/mlundquist/saga-engine/pkg/fate"
	"github.com/mlundquist/saga-engine/pkg/reviewer"
	"github.com/mlundquist/saga-engine/pkg/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Saga Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"brain_provider", cfg.Brain.Provider,
		"brain_model", cfg.Brain.Model,
		"voice_provider", cfg.Voice.Provider,
		"voice_model", cfg.Voice.Model)

	brainLLM, err := services.Resolve(cfg.Brain, log)
	if err != nil {
		log.Error("Failed to resolve Brain provider", "error", err)
		os.Exit(1)
	}
	voiceLLM, err := services.Resolve(cfg.Voice, log)
	if err != nil {
		log.Error("Failed to resolve Voice provider", "error", err)
		os.Exit(1)
	}

	store := storage.NewRedisStorage(cfg.RedisAddr, cfg.DataDir, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}

	var rev *reviewer.Reviewer
	if cfg.ReviewerEnabled {
		rev = reviewer.New(brainLLM, log)
	}

	eng := engine.New(engine.Config{
		Storage:    store,
		Brain:      brain.New(brainLLM, log),
		Voice:      voice.New(voiceLLM, log),
		Reviewer:   rev,
		Source:     fate.NewLockedSource(rand.New(rand.NewSource(time.Now().UnixNano()))),
		Logger:     log,
		BrainModel: cfg.Brain.Model,
		VoiceModel: cfg.Voice.Model,
	})

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(store, log))
	mux.Handle("/v1/turn", handlers.NewTurnHandler(eng, log))

	campaignHandler := handlers.NewCampaignHandler(eng, log)
	mux.Handle("/v1/campaigns", campaignHandler)
	mux.Handle("/v1/campaigns/", campaignHandler)

	mux.Handle("/v1/worlds", handlers.NewWorldHandler(store, log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
