package topics

const (
	// Rodadas
	RoundEvents    = "lottery_round_events"
	RoundEventsDLQ = "lottery_round_events_dlq"

	// Canal Redis Pub/Sub com o snapshot da rodada (consumido pelo /ws)
	RoundBroadcast = "lottery_round_broadcast"
)
