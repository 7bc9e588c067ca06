package dto

import (
	"encoding/json"
	"time"
)

type Participant struct {
	Address     string `json:"address"`
	AmountCents int64  `json:"amount_cents"`
}

type RoundResponse struct {
	RoundID      string        `json:"roundId"`
	Seq          uint64        `json:"seq"`
	RoundNo      uint64        `json:"round_no"`
	State        string        `json:"state"` // IDLE | BETTING
	BetCount     int           `json:"bet_count"`
	BetSizeCents int64         `json:"bet_size_cents"`
	Participants []Participant `json:"participants"`
	EscrowCents  int64         `json:"escrow_cents"`
	Admin        string        `json:"admin"`
	FeePercent   int64         `json:"fee_percent"`
}

type SettlementResponse struct {
	Winner      string `json:"winner"`
	PoolCents   int64  `json:"pool_cents"`
	PayoutCents int64  `json:"payout_cents"`
	FeeCents    int64  `json:"fee_cents"`
	Seed        string `json:"seed"`
}

type BetResponse struct {
	RoundNo    uint64              `json:"round_no"`
	Position   int                 `json:"position"`
	Filled     bool                `json:"filled"`
	Settlement *SettlementResponse `json:"settlement,omitempty"`
}

type CancelResponse struct {
	RoundNo uint64        `json:"round_no"`
	Refunds []Participant `json:"refunds"`
}

type WalletResponse struct {
	UserID       string `json:"userId"`
	BalanceCents int64  `json:"balance_cents"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// AuditEvent é uma linha da trilha de auditoria (round_events)
type AuditEvent struct {
	Type       string          `json:"type"`
	Caller     string          `json:"caller"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type HistoryResponse struct {
	RoundID string       `json:"roundId"`
	RoundNo uint64       `json:"round_no"`
	Events  []AuditEvent `json:"events"`
}
