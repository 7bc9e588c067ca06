package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/lottery-pool-poc/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo processor
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MessageWriter é o subconjunto de *kafka.Writer usado para a DLQ
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Repository persiste o evento na trilha de auditoria
type Repository interface {
	InsertEvent(ctx context.Context, e events.RoundEvent, occurredAt time.Time) error
}

var errInvalidEvent = errors.New("invalid round event")

const maxRetryDelay = 30 * time.Second

// Processor consome os eventos de rodada do Kafka e grava cada um no Postgres.
// Mensagens que não decodificam, ou que falham Attempts vezes, vão para a DLQ.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   Repository
	DLQ    MessageWriter // opcional

	Attempts int           // default 3
	Backoff  time.Duration // espera base entre tentativas

	OnConsumed func()       // métricas (counter++), uma vez por mensagem lida
	OnPersist  func()       // métricas
	OnDLQ      func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop de consumo; o offset só é confirmado após persistir ou mandar para a DLQ.
// Commit no Kafka é marca d'água (confirmar N+1 confirma N): mensagem não tratada
// é repetida no lugar e o reader não avança até ela sair.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.stageError("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		for attempt := 1; ; attempt++ {
			err := p.Handle(ctx, m)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Error("round event not handled, retrying",
				zap.Int64("offset", m.Offset),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if !sleep(ctx, min(p.Backoff*time.Duration(attempt), maxRetryDelay)) {
				return ctx.Err()
			}
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Error(err))
			p.stageError("commit")
		}
	}
}

// Handle processa uma mensagem. Retorna erro só quando nem a persistência nem a DLQ funcionaram.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	ev, err := decode(m.Value)
	if err != nil {
		p.Log.Warn("invalid message", zap.Int64("offset", m.Offset), zap.Error(err))
		p.stageError("decode")
		return p.deadLetter(ctx, m, err)
	}

	occurredAt := m.Time
	if ev.TsUnixMs > 0 {
		occurredAt = time.UnixMilli(ev.TsUnixMs)
	}

	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	for i := 0; i < attempts; i++ {
		if i > 0 && !sleep(ctx, p.Backoff*time.Duration(i)) {
			return ctx.Err()
		}
		if err = p.Repo.InsertEvent(ctx, ev, occurredAt); err == nil {
			if p.OnPersist != nil {
				p.OnPersist()
			}
			p.Log.Debug("round event persisted",
				zap.String("round_id", ev.RoundID),
				zap.Uint64("round_no", ev.RoundNo),
				zap.String("type", ev.Type),
			)
			return nil
		}
		p.Log.Warn("db insert failed", zap.Int("attempt", i+1), zap.Error(err))
		p.stageError("db_insert")
	}
	return p.deadLetter(ctx, m, err)
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) error {
	if p.DLQ == nil {
		p.Log.Warn("dropping message, no DLQ configured", zap.Int64("offset", m.Offset), zap.Error(cause))
		return nil
	}
	headers := append(append([]kafka.Header(nil), m.Headers...), kafka.Header{Key: "error", Value: []byte(cause.Error())})
	err := p.DLQ.WriteMessages(ctx, kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
	})
	if err != nil {
		p.stageError("dlq")
		return fmt.Errorf("dlq write: %w", err)
	}
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
	return nil
}

func (p *Processor) stageError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func decode(b []byte) (events.RoundEvent, error) {
	var ev events.RoundEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, err
	}
	switch ev.Type {
	case events.RoundOpened, events.BetPlaced, events.RoundSettled, events.RoundCancelled:
	default:
		return ev, fmt.Errorf("%w: type %q", errInvalidEvent, ev.Type)
	}
	if ev.RoundID == "" {
		return ev, fmt.Errorf("%w: empty round id", errInvalidEvent)
	}
	return ev, nil
}

// sleep espera d ou até o contexto ser cancelado; retorna false se cancelado
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
