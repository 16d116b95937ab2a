package domain

import "time"

// MaxKYCTier é o maior tier de KYC aceito (tiers 0..3).
const MaxKYCTier = 3

// MaxFeeBps é 100% em basis points.
const MaxFeeBps = 10_000

// Platform é o registro singleton de configuração e totais da plataforma.
type Platform struct {
	Authority string
	Treasury  string
	Oracle    string // identidade do subsistema de gameplay que reporta resultados

	FeeBps   uint16
	MinStake uint64
	MaxStake uint64

	TotalMatches    uint64
	TotalBets       uint64
	TotalVolume     uint64
	TreasuryBalance uint64

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAccount guarda identidade, tier e totais acumulados de um apostador.
type UserAccount struct {
	Owner   string
	Address Address
	KYCTier uint8
	Region  string

	Blacklisted bool
	StakeCap    uint64 // limite apertado pelo colaborador de risco; 0 = sem limite extra

	TotalWagered     uint64
	TotalWon         uint64
	LastWithdrawalAt time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MatchType string

const (
	MatchHumanVsHuman MatchType = "HUMAN_VS_HUMAN"
	MatchHumanVsAI    MatchType = "HUMAN_VS_AI"
	MatchAIVsAI       MatchType = "AI_VS_AI"
)

func (t MatchType) Valid() bool {
	switch t {
	case MatchHumanVsHuman, MatchHumanVsAI, MatchAIVsAI:
		return true
	}
	return false
}

// Match é uma partida com um pool por resultado. O resultado i (1-based) acumula em Pools[i-1].
type Match struct {
	ID        string
	Type      MatchType
	Status    MatchStatus
	Pools     []uint64
	TotalBets uint64
	Creator   string

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	SettledAt   time.Time
	BetsCloseAt time.Time // zero = janela fecha só no StartMatch

	Winner   uint8 // 0 = não resolvido
	ProofRef string

	Version int64
}

// Outcomes retorna a quantidade de resultados possíveis.
func (m Match) Outcomes() int { return len(m.Pools) }

// ValidOutcome indica se o índice (1-based) existe nesta partida.
func (m Match) ValidOutcome(o uint8) bool { return o >= 1 && int(o) <= len(m.Pools) }

// Pool retorna o total apostado no resultado o (1-based).
func (m Match) Pool(o uint8) uint64 {
	if !m.ValidOutcome(o) {
		return 0
	}
	return m.Pools[o-1]
}

// Clone devolve uma cópia sem compartilhar o slice de pools.
func (m Match) Clone() Match {
	c := m
	c.Pools = append([]uint64(nil), m.Pools...)
	return c
}

type BetStatus string

const (
	BetPlaced   BetStatus = "PLACED"
	BetWon      BetStatus = "WON"
	BetLost     BetStatus = "LOST"
	BetRefunded BetStatus = "REFUNDED"
)

// Terminal indica que a aposta já foi liquidada e não muda mais.
func (s BetStatus) Terminal() bool { return s != BetPlaced }

// Bet é uma aposta registrada na admissão e liquidada exatamente uma vez.
type Bet struct {
	ID      string
	Bettor  string
	MatchID string
	Outcome uint8
	Stake   uint64
	Status  BetStatus
	Payout  *uint64 // nil até a liquidação

	PlacedAt  time.Time
	SettledAt time.Time

	Version int64
}

// Clone copia a aposta incluindo o ponteiro de payout.
func (b Bet) Clone() Bet {
	c := b
	if b.Payout != nil {
		p := *b.Payout
		c.Payout = &p
	}
	return c
}

// Escrow é o saldo custodiado de uma partida até a liquidação.
type Escrow struct {
	Address Address
	MatchID string
	Balance uint64
	Locked  bool

	Version int64
}
