package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/lottery-pool-poc/internal/ledger"
	"github.com/radieske/lottery-pool-poc/internal/lottery"
	"github.com/radieske/lottery-pool-poc/internal/lottery-service/cache"
	lhttp "github.com/radieske/lottery-pool-poc/internal/lottery-service/http"
	"github.com/radieske/lottery-pool-poc/internal/lottery-service/metrics"
	"github.com/radieske/lottery-pool-poc/internal/lottery-service/producer"
	"github.com/radieske/lottery-pool-poc/internal/lottery-service/repo"
	"github.com/radieske/lottery-pool-poc/internal/lottery-service/ws"
	sharedcache "github.com/radieske/lottery-pool-poc/internal/shared/cache"
	"github.com/radieske/lottery-pool-poc/internal/shared/config"
	"github.com/radieske/lottery-pool-poc/internal/shared/db"
	"github.com/radieske/lottery-pool-poc/internal/shared/kafka"
	"github.com/radieske/lottery-pool-poc/internal/shared/logger"
	sharedmetrics "github.com/radieske/lottery-pool-poc/internal/shared/metrics"
)

// walletLedger é o que a rodada e os handlers /wallet precisam do ledger
type walletLedger interface {
	lottery.Ledger
	lhttp.Wallets
}

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "lottery-service"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]sharedmetrics.HealthFunc{}

	// Ledger: Postgres em produção, memória para rodar isolado
	var wl walletLedger
	var history lhttp.HistoryReader
	switch cfg.LedgerBackend {
	case "memory":
		wl = ledger.NewMemory()
		log.Warn("using in-memory ledger, balances are lost on restart")
	default:
		var pg *sql.DB
		pg, err = db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		checks["postgres"] = pg.PingContext
		wl = ledger.NewPostgres(pg)
		history = repo.NewHistoryRepo(pg)
		log.Info("postgres connected")
	}

	seed, _ := cfg.Seed() // já validado
	round, err := lottery.New(lottery.Config{
		ID:         cfg.LotteryID,
		Admin:      cfg.AdminID,
		FeePercent: cfg.FeePercent,
		Ledger:     wl,
		Seed:       seed,
		Log:        log,
	})
	if err != nil {
		log.Fatal("round init", zap.Error(err))
	}

	// Redis: snapshot da rodada + Pub/Sub para o /ws
	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	roundCache := cache.NewRoundCache(redisClient, 10*time.Minute, cfg.RedisPubSubChannel)

	hub := ws.NewHub(func(*http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisPubSubChannel, hub)

	// Kafka: eventos da rodada para a trilha de auditoria
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundEvents)
	defer writer.Close()
	publisher := producer.NewKafkaPublisher(writer)
	log.Info("kafka writer ready", zap.String("topic", cfg.TopicRoundEvents))

	m := metrics.New(prometheus.DefaultRegisterer)
	api := lhttp.NewServer(log, round, wl, publisher, roundCache, m)
	if history != nil {
		api.WithHistory(history)
	}

	r := api.Router()
	r.Get("/ws", hub.HandleWS)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := sharedmetrics.StartMetricsServer(log, cfg.MetricsPort, checks)

	go func() {
		log.Info("lottery-service listening",
			zap.String("addr", srv.Addr),
			zap.String("round_id", round.ID()),
			zap.String("admin", round.Admin()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics shutdown", zap.Error(err))
	}
}
