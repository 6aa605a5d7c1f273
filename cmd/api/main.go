// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/shoplight/copilot-platform/internal/config"
	"github.com/shoplight/copilot-platform/internal/handler"
	"github.com/shoplight/copilot-platform/internal/llm"
	"github.com/shoplight/copilot-platform/internal/lock"
	"github.com/shoplight/copilot-platform/internal/middleware"
	natsclient "github.com/shoplight/copilot-platform/internal/nats"
	"github.com/shoplight/copilot-platform/internal/orchestrator"
	"github.com/shoplight/copilot-platform/internal/shop"
	"github.com/shoplight/copilot-platform/internal/store"
	"github.com/shoplight/copilot-platform/internal/tool"
	"github.com/shoplight/copilot-platform/pkg/logger"
	"github.com/shoplight/copilot-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "copilot-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Conversation store: MongoDB when configured, in-memory otherwise
	var (
		convStore   store.ConversationStore
		mongoClient *mongo.Client
	)
	if cfg.MongoURI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mongoClient, err = mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		cancel()
		if err != nil {
			log.Error("failed to connect to MongoDB", zap.Error(err))
			os.Exit(1)
		}
		defer mongoClient.Disconnect(ctx)

		mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDatabase))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.Error("failed to ensure indexes", zap.Error(err))
			os.Exit(1)
		}
		convStore = mongoStore
	} else {
		log.Warn("MONGO_URI not set, using in-memory store")
		convStore = store.NewMemoryStore()
	}

	// Turn lock: Redis when configured, in-process otherwise
	var locker lock.ConversationLocker
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, 0)
	} else {
		locker = lock.NewKeyedMutex()
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure JetStream stream exists
	events := natsclient.NewEventPublisher(natsClient)
	if err := events.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Initialize model client
	var llmClient llm.Client
	switch {
	case cfg.DefaultProvider == string(llm.ProviderOpenAI) && cfg.OpenAIAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	case cfg.AnthropicAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		llmClient, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	default:
		log.Error("no model API key configured")
		os.Exit(1)
	}
	if err != nil {
		log.Error("failed to create model client", zap.Error(err))
		os.Exit(1)
	}

	// Build and freeze the tool registry
	backend := shop.NewBackend()
	registry := tool.NewRegistry(cfg.ToolTimeout)
	for _, d := range backend.Descriptors() {
		if err := registry.Register(d); err != nil {
			log.Error("failed to register tool", zap.String("tool", d.Name), zap.Error(err))
			os.Exit(1)
		}
	}
	registry.Freeze()

	// Initialize orchestrator
	orch := orchestrator.New(convStore, registry, llmClient, locker, events, log, orchestrator.Config{
		Model:               cfg.Model,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
		ModelTimeout:        cfg.ModelTimeout,
		HistoryLimit:        cfg.HistoryLimit,
		TokenBudget:         cfg.TokenBudget,
		SystemPromptShopper: cfg.SystemPromptShopper,
		SystemPromptCopilot: cfg.SystemPromptCopilot,
	})

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient, mongoClient)
	turnHandler := handler.NewTurnHandler(orch, log)
	conversationHandler := handler.NewConversationHandler(convStore, log)
	messageHandler := handler.NewMessageHandler(convStore, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests*10, cfg.RateLimitWindow))

		// Turns are the expensive path: two model calls each.
		r.With(middleware.IdentityRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
			Post("/turns", turnHandler.Submit)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Delete("/", conversationHandler.Delete)
				r.Get("/messages", messageHandler.List)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
