package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vintrastudio/chat-platform/internal/config"
	"github.com/vintrastudio/chat-platform/internal/events"
	"github.com/vintrastudio/chat-platform/internal/handler"
	"github.com/vintrastudio/chat-platform/internal/llm"
	"github.com/vintrastudio/chat-platform/internal/middleware"
	"github.com/vintrastudio/chat-platform/internal/quota"
	"github.com/vintrastudio/chat-platform/internal/service"
	"github.com/vintrastudio/chat-platform/internal/store"
	"github.com/vintrastudio/chat-platform/pkg/logger"
	"github.com/vintrastudio/chat-platform/pkg/tracing"
)

func main() {
	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to open database", zap.Error(err))
		}
		st = pg
		log.Info("using postgres store")
	} else {
		st = store.NewMemory()
		log.Warn("DATABASE_URL not set, using in-memory store; data will not survive restarts")
	}

	var pub events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		np, err := events.Connect(ctx, events.Config{URL: cfg.NATSURL, Token: cfg.NATSToken}, log)
		if err != nil {
			log.Warn("failed to connect analytics bus, events disabled", zap.Error(err))
		} else {
			pub = np
			defer np.Close()
			log.Info("analytics bus connected", zap.String("url", cfg.NATSURL))
		}
	}

	clients := make(map[string]llm.Client)
	if cfg.OpenAIAPIKey != "" {
		c, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Fatal("failed to create openai client", zap.Error(err))
		}
		clients[llm.ProviderOpenAI] = c
	}
	if cfg.AnthropicAPIKey != "" {
		c, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Fatal("failed to create anthropic client", zap.Error(err))
		}
		clients[llm.ProviderAnthropic] = c
	}
	if len(clients) == 0 {
		log.Warn("no completion provider configured; assistant replies will fail")
	}
	router := llm.NewRouter(clients, log)

	qt := quota.NewTracker(st)
	sessionSvc := service.NewSessionService(st, qt, pub, log)
	assistantSvc := service.NewAssistantService(st, router, pub, log, cfg.AITimeout)

	widgetH := handler.NewWidgetHandler(sessionSvc, assistantSvc, log)
	adminH := handler.NewAdminHandler(sessionSvc, log)
	healthH := handler.NewHealthHandler(nil)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		// The widget is embedded on arbitrary customer sites.
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"},
		MaxAge:           300,
		AllowCredentials: false,
	}))

	r.Get("/health", healthH.Health)
	r.Get("/ready", healthH.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/widget.js", handler.Script)

	r.Route("/api/widget", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Post("/session", widgetH.CreateSession)
		r.Post("/message", widgetH.PostMessage)
		r.Get("/messages", widgetH.ListMessages)
		r.Post("/ai", widgetH.GenerateReply)
		r.Get("/config", widgetH.Config)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Get("/sessions", adminH.ListSessions)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Post("/reply", adminH.Reply)
			r.Post("/takeover", adminH.Takeover)
			r.Post("/reactivate", adminH.Reactivate)
			r.Post("/archive", adminH.Archive)
			r.Delete("/", adminH.Delete)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
