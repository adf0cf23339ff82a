// Package main is the entry point for the Specky chat server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/phantasma-ai/specky/internal/chatlog"
	"github.com/phantasma-ai/specky/internal/config"
	"github.com/phantasma-ai/specky/internal/dialogue"
	"github.com/phantasma-ai/specky/internal/handler"
	"github.com/phantasma-ai/specky/internal/llm"
	"github.com/phantasma-ai/specky/internal/middleware"
	natsclient "github.com/phantasma-ai/specky/internal/nats"
	"github.com/phantasma-ai/specky/internal/service"
	"github.com/phantasma-ai/specky/pkg/logger"
	"github.com/phantasma-ai/specky/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting chat server",
		zap.String("root", cfg.RootPath),
		zap.String("provider", cfg.LLMProvider),
	)

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "specky", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	var opts []service.Option
	if cfg.LLMModel != "" {
		opts = append(opts, service.WithModel(cfg.LLMModel))
	}

	// Event publication is optional; an empty NATS_URL disables it.
	var natsClient *natsclient.Client
	if cfg.NATSURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		natsClient, err = natsclient.Connect(connectCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
			MaxAge:   cfg.NATSMaxAge,
			Replicas: cfg.NATSReplicas,
		}, log)
		cancel()
		if err != nil {
			log.Fatal("failed to connect event publisher", zap.Error(err))
		}
		defer natsClient.Close()

		opts = append(opts, service.WithEvents(natsClient))
	}

	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), cfg.APIKey, cfg.LLMBaseURL)
	if err != nil {
		log.Fatal("failed to create LLM client", zap.Error(err))
	}

	store, err := chatlog.NewStore(cfg.ChatLogPath(), dialogue.OpeningMenu(), log)
	if err != nil {
		log.Fatal("failed to open chat log store", zap.Error(err))
	}

	chatSvc := service.NewChatService(store, llmClient, cfg.AssistantText, log, opts...)

	sessions := middleware.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	router := handler.NewRouter(handler.RouterConfig{
		Sessions:          sessions,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Logger:            log,
	},
		handler.NewChatHandler(chatSvc, sessions, log),
		handler.NewHealthHandler(natsClient),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := chatSvc.Wait(shutdownCtx); err != nil {
		log.Warn("completions still in flight at shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
