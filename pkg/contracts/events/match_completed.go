package events

import "time"

// MatchCompleted é o resultado reportado pelo subsistema de gameplay.
// O escrow não valida regras do jogo, só a autorização e o status da partida.
type MatchCompleted struct {
	MatchID  string    `json:"matchId"`
	Winner   uint8     `json:"winner"`
	ProofRef string    `json:"proofRef"`
	Source   string    `json:"source,omitempty"`
	Ts       time.Time `json:"ts"`
}
