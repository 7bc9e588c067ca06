package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/radieske/lottery-pool-poc/pkg/contracts/events"
)

// PostgresRepo grava a trilha de auditoria das rodadas (tabela round_events)
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// InsertEvent adiciona o evento à trilha; o evento completo vai em payload (jsonb)
func (r *PostgresRepo) InsertEvent(ctx context.Context, e events.RoundEvent, occurredAt time.Time) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	const q = `
		INSERT INTO round_events
		  (round_id, round_no, event_type, caller, payload, occurred_at)
		VALUES
		  ($1,$2,$3,$4,$5::jsonb,$6)
	`
	_, err = r.DB.ExecContext(ctx, q,
		e.RoundID, int64(e.RoundNo), e.Type, e.Caller, string(payload), occurredAt,
	)
	return err
}

