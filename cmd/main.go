/**
 * @description
 * This is the main entry point for the payout-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the RabbitMQ job queue, the worker runtime that processes payouts,
 * and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Optional rate-limiting backend.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"errors"
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
	"github.com/transfa/payout-service/internal/api"
	"github.com/transfa/payout-service/internal/app"
	"github.com/transfa/payout-service/internal/config"
	"github.com/transfa/payout-service/internal/store"
	rmrabbit "github.com/transfa/payout-service/pkg/rabbitmq"
)

// unavailablePublisher stands in when RabbitMQ could not be reached at
// startup. Every publish fails, so payout creation applies the enqueue
// failure contract (record forced to failed, error surfaced) instead of
// silently losing jobs.
type unavailablePublisher struct{}

func (unavailablePublisher) Publish(context.Context, string, []byte) error {
	return errors.New("rabbitmq connection was not established at startup")
}

// waitForDB pings the database once per second until it answers or the
// timeout elapses, so the service tolerates the database booting after it.
func waitForDB(pool *pgxpool.Pool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := pool.Ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not reachable within %s: %w", timeout, err)
		}
		log.Printf("level=info component=bootstrap msg=\"database unavailable, waiting 1 second\" err=%v", err)
		time.Sleep(time.Second)
	}
}

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url must be configured\" env=DATABASE_URL")
	}

	log.Printf("level=info component=bootstrap msg=\"starting payout-service\" port=%s", cfg.ServerPort)

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
		log.Fatalf("level=fatal component=bootstrap msg=\"database pool creation failed\" err=%v", err)
	}
	defer dbpool.Close()

	if err := waitForDB(dbpool, time.Duration(cfg.DBWaitTimeoutSeconds)*time.Second); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database wait failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	repo := store.NewPostgresRepository(dbpool)

	// Initialize the RabbitMQ producer used to enqueue payout jobs. A broker
	// outage at startup does not prevent boot; creation requests will fail
	// their enqueue step and force the payout to failed per the contract.
	var publisher app.JobPublisher
	producer, err := rmrabbit.NewJobProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; payout creation will fail records\" err=%v", err)
		publisher = unavailablePublisher{}
	} else {
		defer producer.Close()
		publisher = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	enqueuer := app.NewQueueEnqueuer(publisher, cfg.PayoutJobQueue)

	// Assemble the processing pipeline: gateway simulator, engine, worker pool.
	gateway := app.NewSimulatedGateway(
		time.Duration(cfg.GatewayMinLatencyMS)*time.Millisecond,
		time.Duration(cfg.GatewayMaxLatencyMS)*time.Millisecond,
		cfg.GatewaySuccessPercent,
		nil,
	)
	engine := app.NewEngine(repo, gateway)
	retry := app.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.RetryBaseDelaySeconds) * time.Second,
		Multiplier:  2,
	}
	scheduler := app.NewScheduler(engine, retry,
		app.WithWorkers(cfg.WorkerCount),
		app.WithQueueSize(cfg.WorkerQueueSize),
	)
	scheduler.Start()

	// Start consuming payout jobs from the broker.
	consumer, err := rmrabbit.NewJobConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; background processing disabled\" err=%v", err)
	} else {
		jobConsumer := app.NewPayoutJobConsumer(scheduler)
		if err := consumer.Consume(cfg.PayoutJobQueue, cfg.WorkerPrefetch, jobConsumer.HandleMessage); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"failed to start job consumption\" err=%v", err)
		} else {
			log.Printf("level=info component=bootstrap msg=\"consuming payout jobs\" queue=%s", cfg.PayoutJobQueue)
		}
	}

	// Optional Redis-backed rate limiting on the create endpoint.
	var limiter api.RateLimiter
	if cfg.CreateRateLimitPerMinute > 0 && strings.TrimSpace(cfg.RedisURL) != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting disabled\" err=%v", pingErr)
			} else {
				defer redisClient.Close()
				limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis rate limiting enabled\"")
			}
		}
	}

	service := app.NewService(repo, enqueuer, time.Duration(cfg.EnqueueDelaySeconds)*time.Second)
	handlers := api.NewPayoutHandlers(service, limiter, cfg.CreateRateLimitPerMinute)
	router := api.PayoutRoutes(handlers, cfg.AllowedOrigins())

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=bootstrap msg=\"http server listening\" addr=%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("level=fatal component=bootstrap msg=\"http server failed\" err=%v", err)
		}
	}()

	// Wait for a termination signal, then shut down in dependency order:
	// stop accepting HTTP requests, stop broker deliveries, drain workers.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("level=info component=bootstrap msg=\"shutdown signal received\"")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=bootstrap msg=\"http shutdown error\" err=%v", err)
	}
	if consumer != nil {
		consumer.Close()
	}
	scheduler.Stop()
	log.Println("level=info component=bootstrap msg=\"payout-service stopped\"")
}
