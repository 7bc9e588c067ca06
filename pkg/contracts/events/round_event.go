package events

// Tipos de evento publicados no tópico "lottery_round_events"
const (
	RoundOpened    = "ROUND_OPENED"
	BetPlaced      = "BET_PLACED"
	RoundSettled   = "ROUND_SETTLED"
	RoundCancelled = "ROUND_CANCELLED"
)

// Entry é um participante (ou reembolso) dentro do evento
type Entry struct {
	Address     string `json:"address"`
	AmountCents int64  `json:"amount_cents"`
}

// RoundEvent é emitido pelo lottery-service após cada operação aceita na rodada.
// Campos que não se aplicam ao tipo ficam vazios.
type RoundEvent struct {
	Type         string  `json:"type"`
	RoundID      string  `json:"round_id"`
	RoundNo      uint64  `json:"round_no"`
	Caller       string  `json:"caller"`
	AmountCents  int64   `json:"amount_cents,omitempty"`
	BetCount     int     `json:"bet_count,omitempty"`
	BetSizeCents int64   `json:"bet_size_cents,omitempty"`
	Position     int     `json:"position,omitempty"`
	Winner       string  `json:"winner,omitempty"`
	PoolCents    int64   `json:"pool_cents,omitempty"`
	PayoutCents  int64   `json:"payout_cents,omitempty"`
	FeeCents     int64   `json:"fee_cents,omitempty"`
	Participants []Entry `json:"participants,omitempty"`
	Refunds      []Entry `json:"refunds,omitempty"`
	Seed         string  `json:"seed,omitempty"` // hex, para auditoria do sorteio
	TsUnixMs     int64   `json:"ts_unix_ms"`
}
