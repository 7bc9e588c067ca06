//go:build integration

package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/lottery-pool-poc/internal/shared/testpg"
	"github.com/radieske/lottery-pool-poc/pkg/contracts/events"
)

func TestInsertEvent(t *testing.T) {
	pg := testpg.Start(t)
	repo := NewPostgresRepo(pg)
	ctx := context.Background()

	ev := events.RoundEvent{
		Type:     events.RoundCancelled,
		RoundID:  "lottery-1",
		RoundNo:  3,
		Caller:   "admin",
		Refunds:  []events.Entry{{Address: "alice", AmountCents: 50}},
		TsUnixMs: 1_700_000_000_000,
	}
	at := time.UnixMilli(ev.TsUnixMs).UTC()
	require.NoError(t, repo.InsertEvent(ctx, ev, at))

	var (
		eventType, caller string
		payload           []byte
		occurredAt        time.Time
	)
	require.NoError(t, pg.QueryRowContext(ctx,
		`SELECT event_type, caller, payload, occurred_at FROM round_events WHERE round_id=$1 AND round_no=$2`,
		"lottery-1", 3,
	).Scan(&eventType, &caller, &payload, &occurredAt))

	assert.Equal(t, events.RoundCancelled, eventType)
	assert.Equal(t, "admin", caller)
	assert.True(t, at.Equal(occurredAt))

	var got events.RoundEvent
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, ev, got)
}
