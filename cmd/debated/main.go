// Command debated runs the debate orchestration server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/bossandy123/debate-agents-sub001/internal/config"
	"github.com/bossandy123/debate-agents-sub001/internal/database"
	"github.com/bossandy123/debate-agents-sub001/internal/debate"
	"github.com/bossandy123/debate-agents-sub001/internal/events"
	"github.com/bossandy123/debate-agents-sub001/internal/handlers"
	"github.com/bossandy123/debate-agents-sub001/internal/llm"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// PostgreSQL with in-memory fallback for standalone mode.
	var store database.Store
	pg, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.WithError(err).Warn("PostgreSQL unavailable, using in-memory store")
		store = database.NewMemoryStore()
	} else {
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("Failed to migrate database schema")
		}
		store = pg
	}

	provider := llm.NewOpenAIProvider(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout, log)
	bus := events.NewBus(cfg.Debate.BroadcastDebounce, cfg.Debate.ChannelGrace)
	defer bus.Close()

	orchestrator := debate.NewOrchestrator(store, provider, bus, debate.Options{
		WinThreshold:    cfg.Debate.WinThreshold,
		VoteScale:       cfg.Debate.VoteScale,
		VoteConcurrency: cfg.Debate.VoteConcurrency,
	}, log)

	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.RegisterRoutes(router,
		handlers.NewDebateHandler(orchestrator, log),
		handlers.NewStreamHandler(bus, log))

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
