package dto

type OpenRoundRequest struct {
	CallerID     string `json:"callerId"`
	BetCount     int    `json:"bet_count"`
	BetSizeCents int64  `json:"bet_size_cents"`
}

type PlaceBetRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"` // precisa ser exatamente o bet_size da rodada
}

type CancelRoundRequest struct {
	CallerID string `json:"callerId"`
}

type DepositRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ rastrear a origem
}
