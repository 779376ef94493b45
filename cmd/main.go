/**
 * @description
 * This is the main entry point for the bounty-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, external API clients, message brokers, repositories, the core
 * application service, the cron scheduler, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Moderation-session store backend.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/pixclient, pkg/walletclient, pkg/rateclient: External service clients.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bountypix/bounty-service/internal/api"
	"github.com/bountypix/bounty-service/internal/app"
	"github.com/bountypix/bounty-service/internal/config"
	"github.com/bountypix/bounty-service/internal/store"
	"github.com/bountypix/bounty-service/pkg/pixclient"
	bsrabbit "github.com/bountypix/bounty-service/pkg/rabbitmq"
	"github.com/bountypix/bounty-service/pkg/rateclient"
	"github.com/bountypix/bounty-service/pkg/walletclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting bounty-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for fire-and-forget notifications.
	// A missing broker downgrades every publish to a log line, never a crash.
	var producer bsrabbit.Publisher
	rabbitProducer, err := bsrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &bsrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the external service clients.
	pixClient := pixclient.NewClient(cfg.PixAPIBaseURL, cfg.PixAPIKey)
	walletClient := walletclient.NewClient(cfg.WalletAPIBaseURL, cfg.WalletAPIKey)
	rateClient := rateclient.NewClient(cfg.RateAPIBaseURL)

	// Optional redis backend for the moderation-session store.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; moderation sessions disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; moderation sessions disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; moderation sessions disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}
	sessions := store.NewModerationSessionStore(
		redisClient,
		cfg.ModerationSessionPrefix,
		time.Duration(cfg.ModerationSessionTTLSeconds)*time.Second,
	)

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	bountyService := app.NewService(app.ServiceParams{
		Repo:                   repository,
		PixClient:              pixClient,
		WalletClient:           walletClient,
		RateClient:             rateClient,
		EventProducer:          producer,
		Sessions:               sessions,
		AdminUserIDs:           cfg.AdminIDs(),
		PixProcessingFeeCents:  cfg.PixProcessingFeeCents,
		LargeContributionCents: cfg.LargeContributionCents,
		WalletIndexOffset:      cfg.WalletIndexOffset,
	})

	// Initialize the API handlers and router.
	bountyHandlers := api.NewBountyHandlers(bountyService)
	webhookHandler := api.NewPixWebhookHandler(bountyService, cfg.PixWebhookSecret)
	router := api.BountyRoutes(bountyHandlers, webhookHandler, cfg.JWTSecret)

	// Wire up the deposit-detection consumer for the asset rail.
	depositConsumer := app.NewDepositConsumer(bountyService)

	rabbitConsumer, err := bsrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
	}
	defer rabbitConsumer.Close()

	depositBindings := map[string]func([]byte) bool{
		bsrabbit.RoutingKeyDepositDetected: depositConsumer.HandleMessage,
	}
	if err := rabbitConsumer.ConsumeWithBindings(bsrabbit.EventsExchange, cfg.DepositEventQueue, depositBindings); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"deposit consumer start failed\" err=%v", err)
	}

	// Start the cron scheduler for the funding-aggregate safety net.
	scheduler := app.NewScheduler(app.NewJobs(bountyService), cfg.AggregateRefreshSchedule)
	scheduler.Start()

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	<-scheduler.Stop().Done()

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
