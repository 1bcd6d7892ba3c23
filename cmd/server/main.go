// Portfolio chat server: the portfolio page, its chat widget and the JSON API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/portfolio-chat/internal/api"
	"github.com/ashureev/portfolio-chat/internal/backend"
	"github.com/ashureev/portfolio-chat/internal/chat"
	"github.com/ashureev/portfolio-chat/internal/config"
	"github.com/ashureev/portfolio-chat/internal/convlog"
	"github.com/ashureev/portfolio-chat/internal/domain"
	"github.com/ashureev/portfolio-chat/internal/identity"
	"github.com/ashureev/portfolio-chat/internal/middleware"
	"github.com/ashureev/portfolio-chat/internal/notify"
	"github.com/ashureev/portfolio-chat/internal/profile"
	"github.com/ashureev/portfolio-chat/internal/session"
	"github.com/ashureev/portfolio-chat/internal/store"
	"github.com/ashureev/portfolio-chat/web"
)

// healthRetention bounds how long health transitions are kept.
const healthRetention = 7 * 24 * time.Hour

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "answer_service", cfg.Answer.URL)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("Database connected", "path", cfg.DBPath)

	answers := backend.NewHTTPClient(backend.HTTPClientConfig{
		BaseURL:      cfg.Answer.URL,
		AskTimeout:   cfg.Answer.AskTimeout,
		ProbeTimeout: cfg.Answer.HealthTimeout,
	}, logger)

	var prober backend.Prober = answers
	if cfg.Answer.HealthGRPCAddr != "" {
		grpcProber, err := backend.NewGRPCProber(backend.GRPCProberConfig{
			Address:      cfg.Answer.HealthGRPCAddr,
			ProbeTimeout: cfg.Answer.HealthTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer grpcProber.Close()
		prober = grpcProber
		slog.Info("Probing answering service over gRPC health", "address", cfg.Answer.HealthGRPCAddr)
	}

	sinks := notify.Multi{notify.NewLogSink(logger)}
	if cfg.RedisURL != "" {
		rdb, err := notify.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				slog.Warn("Failed to close redis client", "error", closeErr)
			}
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unreachable, notices will not be published until it recovers", "error", err)
		}
		sinks = append(sinks, notify.NewRedisPublisher(rdb, logger))
	}

	convLogger, err := convlog.New(convlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := convLogger.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// The server-wide monitor is the only poller of the answering
	// service. Sessions read its status through StatusProber.
	monitor := chat.NewHealthMonitor(prober, cfg.Answer.HealthTimeout, logger)
	poll := monitor.StartPolling(ctx, cfg.Answer.HealthInterval, healthRecorder(repo))
	defer monitor.Stop(poll)

	sessions := session.NewRegistry(ctx, func(visitorID, tabID string) *chat.Controller {
		ctrl := chat.NewController(answers, monitor.StatusProber(), chat.Options{
			SessionKey:     session.Key(visitorID, tabID),
			HealthInterval: cfg.Sessions.HealthInterval,
			ProbeTimeout:   cfg.Answer.HealthTimeout,
			AskTimeout:     cfg.Answer.AskTimeout,
			Sink:           sinks,
			Logger:         logger,
		})
		if convLogger != nil {
			events, _ := ctrl.Subscribe(chat.DefaultSubscriberBuffer)
			go convLogger.Follow(events, visitorID, tabID)
		}
		return ctrl
	}, logger)
	defer sessions.CloseAll()

	prof, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return err
	}
	renderer, err := profile.NewRenderer(web.Templates())
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, visitorKey)

	// Initialize handlers.
	statusHandler := api.NewStatusHandler(repo, monitor, sessions)
	chatHandler := api.NewChatHandler(sessions, repo, limiter.Handler)
	profileHandler := api.NewProfileHandler(prof, renderer)
	wsHandler := newWidgetHandler(sessions, repo, limiter, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	statusHandler.RegisterRoutes(r)
	r.Handle("/static/*", web.StaticHandler())

	// Visitor-scoped routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		chatHandler.RegisterRoutes(r)
		profileHandler.RegisterRoutes(r)
		r.Get("/ws/chat", wsHandler.ServeHTTP)
	})

	// Submits block until the answer resolves, so the write timeout must
	// outlast the ask timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Answer.AskTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sessions.StartSweeper(ctx, cfg.Sessions.SweepInterval, cfg.Sessions.TTL)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		maintenance(gctx, repo, limiter, cfg.Sessions.SweepInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}

// healthRecorder persists server-wide health transitions.
func healthRecorder(repo store.Repository) func(domain.HealthStatus) {
	var last domain.HealthStatus
	return func(status domain.HealthStatus) {
		if status == last {
			return
		}
		last = status
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.RecordHealth(ctx, status, time.Now()); err != nil {
			slog.Warn("Failed to record health transition", "status", status, "error", err)
		}
	}
}

// maintenance prunes limiter buckets and old health history on a ticker.
func maintenance(ctx context.Context, repo store.Repository, limiter *middleware.RateLimiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Prune(time.Hour); n > 0 {
				slog.Debug("Pruned idle rate limiters", "count", n)
			}
			if n, err := repo.PruneHealth(ctx, time.Now().Add(-healthRetention)); err != nil {
				slog.Warn("Failed to prune health history", "error", err)
			} else if n > 0 {
				slog.Info("Pruned health history", "count", n)
			}
		}
	}
}

// visitorKey counts requests per visitor, or per IP before identity is known.
func visitorKey(r *http.Request) string {
	if id := identity.VisitorIDFromContext(r.Context()); id != "" {
		return id
	}
	return identity.IPFromRequest(r)
}
