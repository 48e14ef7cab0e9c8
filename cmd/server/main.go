package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/rl1809/stock-reserve/internal/adapter/handler"
	"github.com/rl1809/stock-reserve/internal/adapter/queue"
	"github.com/rl1809/stock-reserve/internal/adapter/storage"
	"github.com/rl1809/stock-reserve/internal/config"
	"github.com/rl1809/stock-reserve/internal/core/domain"
	"github.com/rl1809/stock-reserve/internal/core/service"
	"github.com/rl1809/stock-reserve/internal/obs"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	obs.SetupLogging(cfg.LogLevel, cfg.LogPretty)

	defaultStrategy, err := domain.ParseStrategy(cfg.DefaultStrategy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid default strategy")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping mysql")
	}
	log.Info().Msg("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	log.Info().Msg("connected to redis")

	// Adapters
	stockStore := storage.NewMySQLStockStore(db)
	orderStore := storage.NewMySQLOrderStore(db)
	engine := storage.NewRedisEngine(rdb)
	ledger := storage.NewRedisLedger(rdb)

	// Seed durable counters; shadow counters populate lazily.
	for _, seed := range cfg.Seed {
		if err := stockStore.SetStock(ctx, seed.ProductKey, seed.Quantity); err != nil {
			log.Fatal().Err(err).Str("product_key", seed.ProductKey).Msg("failed to seed stock")
		}
		log.Info().Str("product_key", seed.ProductKey).Int("quantity", seed.Quantity).Msg("seeded stock")
	}

	coordinator := service.NewStockCoordinator(stockStore, engine, ledger)

	// Sequencer: kafka in production, in-process for local runs.
	var (
		workflow      *service.OrderWorkflow
		memSequencer  *queue.MemorySequencer
		kafkaWriter   *kafka.Writer
		kafkaConsumer *queue.KafkaConsumer
	)
	switch cfg.QueueMode {
	case "kafka":
		kafkaWriter = queue.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		reader := queue.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
		kafkaConsumer = queue.NewKafkaConsumer(reader, coordinator.HandleMessage)
		kafkaConsumer.Start(ctx)
		workflow = service.NewOrderWorkflow(orderStore, coordinator, queue.NewKafkaSequencer(kafkaWriter, ledger))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka sequencer active")
	default:
		memSequencer = queue.NewMemorySequencer(coordinator.HandleMessage)
		workflow = service.NewOrderWorkflow(orderStore, coordinator, memSequencer)
		log.Info().Msg("in-process sequencer active")
	}

	// HTTP server
	httpHandler := handler.NewHTTPHandler(workflow, defaultStrategy)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/orders", httpHandler.PlaceOrder)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info().Msg("HTTP server stopped")

	if memSequencer != nil {
		memSequencer.Close()
	}
	if kafkaWriter != nil {
		kafkaWriter.Close()
	}
	if kafkaConsumer != nil {
		kafkaConsumer.Stop()
	}
	log.Info().Msg("sequencer stopped")

	rdb.Close()
	db.Close()
	log.Info().Msg("connections closed")
}
