package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/amendezcabrera/villagelink-backend/api/routes"
	"github.com/amendezcabrera/villagelink-backend/internal/alerts"
	"github.com/amendezcabrera/villagelink-backend/internal/auth"
	"github.com/amendezcabrera/villagelink-backend/internal/chat"
	"github.com/amendezcabrera/villagelink-backend/internal/notifications"
	"github.com/amendezcabrera/villagelink-backend/internal/realtime"
	"github.com/amendezcabrera/villagelink-backend/internal/residents"
	"github.com/amendezcabrera/villagelink-backend/internal/users"
	"github.com/amendezcabrera/villagelink-backend/pkg/auth/session"
	"github.com/amendezcabrera/villagelink-backend/pkg/config"
	"github.com/amendezcabrera/villagelink-backend/pkg/db"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/maps"
	"github.com/amendezcabrera/villagelink-backend/pkg/metrics"
	"github.com/amendezcabrera/villagelink-backend/pkg/migrate"
	"github.com/amendezcabrera/villagelink-backend/pkg/pubsub"
	"github.com/amendezcabrera/villagelink-backend/pkg/pubsub/idempotency"
	"github.com/amendezcabrera/villagelink-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	usersRepo := users.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	chatMetrics := metrics.NewChatMetrics(prometheus.DefaultRegisterer)
	publisher, err := chat.NewPubSubPublisher(pubsubClient.MessagePublisher())
	if err != nil {
		logg.Error(ctx, "failed to create message publisher", err)
		os.Exit(1)
	}

	chatService, err := chat.NewService(chat.NewRepository(dbClient.DB()), usersRepo, publisher, chatMetrics, logg, cfg.Chat)
	if err != nil {
		logg.Error(ctx, "failed to create chat service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(
		notifications.NewRepository(dbClient.DB()),
		metrics.NewFanoutMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	alertsService, err := alerts.NewService(alerts.NewRepository(dbClient.DB()), usersRepo, notificationsService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create alerts service", err)
		os.Exit(1)
	}

	var mapsClient *maps.Client
	if cfg.GoogleMaps.APIKey != "" {
		mapsClient, err = maps.NewClient(cfg.GoogleMaps.APIKey)
		if err != nil {
			logg.Error(ctx, "failed to create maps client", err)
			os.Exit(1)
		}
	}

	residentsService, err := residents.NewService(usersRepo, mapsClient)
	if err != nil {
		logg.Error(ctx, "failed to create residents service", err)
		os.Exit(1)
	}

	hub := realtime.NewHub(chatMetrics, logg)

	// Each API instance subscribes to the message topic and fans events out
	// to its local websocket sessions.
	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create idempotency manager", err)
		os.Exit(1)
	}
	consumer, err := chat.NewConsumer(hub, pubsubClient.MessageSubscription(), idempotencyManager, logg)
	if err != nil {
		logg.Error(ctx, "failed to create message consumer", err)
		os.Exit(1)
	}
	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			logg.Error(ctx, "message consumer stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Sessions:      sessionManager,
			AuthService:   authService,
			ChatService:   chatService,
			Notifications: notificationsService,
			Alerts:        alertsService,
			Residents:     residentsService,
			Hub:           hub,
		}),
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			logg.Error(context.Background(), "error shutting down api server", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(startCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(startCtx, "api server shutting down gracefully")
}
