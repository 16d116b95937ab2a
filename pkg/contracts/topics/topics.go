package topics

const (
	// Escrow (saída)
	BetPlaced    = "escrow_bet_placed"
	MatchStatus  = "escrow_match_status"
	MatchSettled = "escrow_match_settled"

	// Gameplay (entrada)
	MatchCompleted = "match_completed"

	// DLQs
	MatchCompletedDLQ = "match_completed_dlq"

	// Redis pub/sub: atualizações ao vivo de pools e status
	LiveMatchChannel = "escrow_live_updates"
)
