package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// RoundID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type    string `json:"type"`
	RoundID string `json:"roundId"`
}

// RoundUpdate é o snapshot de rodada enviado aos clientes inscritos
type RoundUpdate struct {
	RoundID string          `json:"roundId"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}
