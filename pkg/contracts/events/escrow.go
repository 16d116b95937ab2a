package events

// BetPlaced é publicado após a admissão de uma aposta.
// Pools traz o estado dos pools já com a aposta somada e MatchVersion a versão
// da partida gravada junto com ela.
type BetPlaced struct {
	BetID        string   `json:"bet_id"`
	MatchID      string   `json:"match_id"`
	Bettor       string   `json:"bettor"`
	Outcome      uint8    `json:"outcome"`
	Stake        uint64   `json:"stake"`
	Pools        []uint64 `json:"pools"`
	TotalBets    uint64   `json:"total_bets"`
	MatchVersion int64    `json:"match_version"`
	TsUnixMs     int64    `json:"ts_unix_ms"`
}

// MatchStatusChanged é publicado a cada transição do ciclo de vida.
type MatchStatusChanged struct {
	MatchID      string `json:"match_id"`
	From         string `json:"from,omitempty"`
	To           string `json:"to"`
	Winner       uint8  `json:"winner,omitempty"`
	ProofRef     string `json:"proof_ref,omitempty"`
	MatchVersion int64  `json:"match_version"`
	TsUnixMs     int64  `json:"ts_unix_ms"`
}

type BetPayout struct {
	BetID  string `json:"bet_id"`
	Bettor string `json:"bettor"`
	Status string `json:"status"` // WON | LOST | REFUNDED
	Stake  uint64 `json:"stake"`
	Payout uint64 `json:"payout"`
}

// MatchSettled é publicado uma única vez, quando a partida é finalizada ou cancelada.
type MatchSettled struct {
	MatchID        string      `json:"match_id"`
	Status         string      `json:"status"` // FINALIZED | CANCELLED
	Winner         uint8       `json:"winner,omitempty"`
	Refunded       bool        `json:"refunded"`
	TotalPool      uint64      `json:"total_pool"`
	Fee            uint64      `json:"fee"`
	Remainder      uint64      `json:"remainder"`
	TreasuryCredit uint64      `json:"treasury_credit"`
	Payouts        []BetPayout `json:"payouts"`
	MatchVersion   int64       `json:"match_version"`
	TsUnixMs       int64       `json:"ts_unix_ms"`
}
