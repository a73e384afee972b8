package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-registration/internal/config"
	"ms-registration/internal/database/migrations"
	"ms-registration/internal/kafka"
	"ms-registration/internal/order"
	"ms-registration/internal/order/db"
	"ms-registration/internal/order/order_api"
	rediswrap "ms-registration/internal/order/redis"
	"ms-registration/internal/payment"
	"ms-registration/internal/pricing"
	"ms-registration/internal/tickets"
	"ms-registration/internal/tickets/qr"

	"ms-registration/internal/logger"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	cfg := config.Load()
	appLogger := logger.NewLogger()
	defer appLogger.Close()

	table, err := pricing.Edition(cfg.Edition.Name)
	if err != nil {
		appLogger.Fatal("CONFIG", err.Error())
	}

	// --- PostgreSQL Setup ---
	sqldb, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		appLogger.Fatal("DATABASE", "Failed to open Postgres: "+err.Error())
	}
	defer sqldb.Close()

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		appLogger.Fatal("DATABASE", "Failed to connect to Postgres: "+err.Error())
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	// Run migrations
	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		appLogger.Fatal("DATABASE", "Migrations failed: "+err.Error())
	}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Fatal("REDIS", "Failed to connect to Redis: "+err.Error())
	}

	// --- Kafka Setup ---
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.OrderConfirmed, cfg.Kafka.Topics.OrderPaid}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			appLogger.Warn("KAFKA", "Topic bootstrap failed: "+err.Error())
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderConfirmed, cfg.Kafka.Topics.OrderPaid)
		defer producer.Close()
	}

	// --- Initialize Dependencies ---
	dbLayer := &db.DB{Bun: bunDB}
	paymentLock := rediswrap.NewRedis(redisClient)
	gateway := payment.NewStripeGateway(cfg.Payment.StripeSecretKey, cfg.Payment.Currency, appLogger)
	ticketService := tickets.NewTicketService(dbLayer, qr.NewQRGenerator(cfg.Edition.TicketSecret), table)

	var publisher order.EventPublisher
	if producer != nil {
		publisher = producer
	}

	service := order.NewOrderService(dbLayer, dbLayer, gateway, paymentLock,
		publisher, ticketService, table, cfg.Payment.Description)
	handler := order_api.NewHandler(service)

	// --- Setup Router ---
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("SERVER", "Registration service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("SERVER", "HTTP server error: "+err.Error())
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("SERVER", "Shutdown signal received, cleaning up")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		appLogger.Fatal("SERVER", "Server forced to shutdown: "+err.Error())
	}

	appLogger.Info("SERVER", "Server exited gracefully")
}
