package events

import "encoding/json"

// Tipos de LiveUpdate
const (
	LiveBetPlaced     = "bet_placed"
	LiveStatusChanged = "status_changed"
	LiveSettled       = "settled"
)

// LiveUpdate é o envelope que vai do escrow-service para o Redis pub/sub
// e de lá para os clientes websocket inscritos na partida.
type LiveUpdate struct {
	MatchID string          `json:"matchId"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
