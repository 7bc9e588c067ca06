package repo

import (
	"context"
	"database/sql"

	"github.com/radieske/lottery-pool-poc/internal/lottery-service/dto"
)

// HistoryRepo lê a trilha gravada pelo round-audit-worker
type HistoryRepo struct {
	DB *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{DB: db}
}

// ListRoundEvents retorna os eventos de uma rodada em ordem de gravação
func (r *HistoryRepo) ListRoundEvents(ctx context.Context, roundID string, roundNo uint64) ([]dto.AuditEvent, error) {
	const q = `
		SELECT event_type, caller, payload, occurred_at
		FROM round_events
		WHERE round_id = $1 AND round_no = $2
		ORDER BY id;
	`
	rows, err := r.DB.QueryContext(ctx, q, roundID, int64(roundNo))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []dto.AuditEvent{}
	for rows.Next() {
		var e dto.AuditEvent
		var payload []byte
		if err := rows.Scan(&e.Type, &e.Caller, &payload, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}
