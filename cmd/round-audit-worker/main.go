package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/lottery-pool-poc/internal/round-audit/consumer"
	"github.com/radieske/lottery-pool-poc/internal/round-audit/repository"
	"github.com/radieske/lottery-pool-poc/internal/shared/config"
	"github.com/radieske/lottery-pool-poc/internal/shared/db"
	"github.com/radieske/lottery-pool-poc/internal/shared/kafka"
	"github.com/radieske/lottery-pool-poc/internal/shared/logger"
	"github.com/radieske/lottery-pool-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "round-audit-worker"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Consumer group round-audit
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRoundEvents, "round-audit")
	defer reader.Close()

	var dlq consumer.MessageWriter
	if cfg.TopicRoundEventsDLQ != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundEventsDLQ)
		defer w.Close()
		dlq = w
	}

	// Métricas Prometheus do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_audit_messages_consumed_total", Help: "mensagens consumidas"})
	persisted := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_audit_db_writes_total", Help: "eventos gravados na trilha"})
	deadLettered := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_audit_dlq_total", Help: "mensagens enviadas à DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_audit_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, persisted, deadLettered, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       repository.NewPostgresRepo(pg),
		DLQ:        dlq,
		Attempts:   3,
		Backoff:    300 * time.Millisecond,
		OnConsumed: func() { consumed.Inc() },
		OnPersist:  func() { persisted.Inc() },
		OnDLQ:      func() { deadLettered.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
	})
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = metricsSrv.Shutdown(sctx)
	}()

	log.Info("round-audit-worker started",
		zap.String("consume", cfg.TopicRoundEvents),
		zap.String("dlq", cfg.TopicRoundEventsDLQ),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped with error", zap.Error(err))
	}
	log.Info("round-audit-worker stopped")
}
