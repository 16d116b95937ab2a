package dto

import (
	"strconv"
	"time"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/engine"
	"github.com/radieske/match-escrow/internal/escrow/settlement"
	"github.com/radieske/match-escrow/internal/ledger"
)

// Amount expõe um valor em unidades base (string, sem perda em clientes JS)
// e a forma decimal para exibição.
type Amount struct {
	Units   string `json:"units"`
	Display string `json:"display"`
}

func NewAmount(units uint64) Amount {
	return Amount{Units: strconv.FormatUint(units, 10), Display: ledger.Format(units)}
}

type ErrorResponse struct {
	Error     string `json:"error"` // kind estável, ex: "MatchNotOpen"
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type PlatformResponse struct {
	Authority       string    `json:"authority"`
	Treasury        string    `json:"treasury"`
	Oracle          string    `json:"oracle,omitempty"`
	FeeBps          uint16    `json:"fee_bps"`
	MinStake        Amount    `json:"min_stake"`
	MaxStake        Amount    `json:"max_stake"`
	TotalMatches    uint64    `json:"total_matches"`
	TotalBets       uint64    `json:"total_bets"`
	TotalVolume     Amount    `json:"total_volume"`
	TreasuryBalance Amount    `json:"treasury_balance"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func FromPlatform(p domain.Platform) PlatformResponse {
	return PlatformResponse{
		Authority: p.Authority, Treasury: p.Treasury, Oracle: p.Oracle, FeeBps: p.FeeBps,
		MinStake: NewAmount(p.MinStake), MaxStake: NewAmount(p.MaxStake),
		TotalMatches: p.TotalMatches, TotalBets: p.TotalBets,
		TotalVolume: NewAmount(p.TotalVolume), TreasuryBalance: NewAmount(p.TreasuryBalance),
		UpdatedAt: p.UpdatedAt,
	}
}

type AccountResponse struct {
	Owner            string     `json:"owner"`
	Address          string     `json:"address"`
	KYCTier          uint8      `json:"kyc_tier"`
	Region           string     `json:"region,omitempty"`
	Blacklisted      bool       `json:"blacklisted"`
	StakeCap         *Amount    `json:"stake_cap,omitempty"`
	TotalWagered     Amount     `json:"total_wagered"`
	TotalWon         Amount     `json:"total_won"`
	LastWithdrawalAt *time.Time `json:"last_withdrawal_at,omitempty"`
}

func FromAccount(a domain.UserAccount) AccountResponse {
	out := AccountResponse{
		Owner: a.Owner, Address: string(a.Address), KYCTier: a.KYCTier, Region: a.Region,
		Blacklisted: a.Blacklisted, TotalWagered: NewAmount(a.TotalWagered), TotalWon: NewAmount(a.TotalWon),
		LastWithdrawalAt: optTime(a.LastWithdrawalAt),
	}
	if a.StakeCap > 0 {
		c := NewAmount(a.StakeCap)
		out.StakeCap = &c
	}
	return out
}

type MatchResponse struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Pools       []Amount   `json:"pools"`
	TotalBets   uint64     `json:"total_bets"`
	Creator     string     `json:"creator"`
	Winner      uint8      `json:"winner,omitempty"`
	ProofRef    string     `json:"proof_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	BetsCloseAt *time.Time `json:"bets_close_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
	Version     int64      `json:"version"`
}

func FromMatch(m domain.Match) MatchResponse {
	out := MatchResponse{
		ID: m.ID, Type: string(m.Type), Status: string(m.Status), TotalBets: m.TotalBets,
		Creator: m.Creator, Winner: m.Winner, ProofRef: m.ProofRef, CreatedAt: m.CreatedAt,
		BetsCloseAt: optTime(m.BetsCloseAt), StartedAt: optTime(m.StartedAt),
		CompletedAt: optTime(m.CompletedAt), SettledAt: optTime(m.SettledAt),
		Version: m.Version,
	}
	for _, p := range m.Pools {
		out.Pools = append(out.Pools, NewAmount(p))
	}
	return out
}

type BetResponse struct {
	ID        string     `json:"id"`
	Bettor    string     `json:"bettor"`
	MatchID   string     `json:"match_id"`
	Outcome   uint8      `json:"outcome"`
	Stake     Amount     `json:"stake"`
	Status    string     `json:"status"`
	Payout    *Amount    `json:"payout"`
	PlacedAt  time.Time  `json:"placed_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

func FromBet(b domain.Bet) BetResponse {
	out := BetResponse{
		ID: b.ID, Bettor: b.Bettor, MatchID: b.MatchID, Outcome: b.Outcome,
		Stake: NewAmount(b.Stake), Status: string(b.Status), PlacedAt: b.PlacedAt,
		SettledAt: optTime(b.SettledAt),
	}
	if b.Payout != nil {
		p := NewAmount(*b.Payout)
		out.Payout = &p
	}
	return out
}

func FromBets(bets []domain.Bet) []BetResponse {
	out := make([]BetResponse, 0, len(bets))
	for _, b := range bets {
		out = append(out, FromBet(b))
	}
	return out
}

type EscrowResponse struct {
	Address string `json:"address"`
	MatchID string `json:"match_id"`
	Balance Amount `json:"balance"`
	Locked  bool   `json:"locked"`
}

func FromEscrow(e domain.Escrow) EscrowResponse {
	return EscrowResponse{Address: string(e.Address), MatchID: e.MatchID, Balance: NewAmount(e.Balance), Locked: e.Locked}
}

type AuditResponse struct {
	MatchID        string `json:"match_id"`
	EscrowBalance  Amount `json:"escrow_balance"`
	PlacedStakeSum Amount `json:"placed_stake_sum"`
	PoolSum        Amount `json:"pool_sum"`
	Balanced       bool   `json:"balanced"`
}

func FromReconciliation(matchID string, r settlement.Reconciliation) AuditResponse {
	return AuditResponse{
		MatchID: matchID, EscrowBalance: NewAmount(r.EscrowBalance),
		PlacedStakeSum: NewAmount(r.PlacedStakeSum), PoolSum: NewAmount(r.PoolSum), Balanced: r.Balanced,
	}
}

type SettlementResponse struct {
	Match          MatchResponse `json:"match"`
	Refunded       bool          `json:"refunded"`
	TotalPool      Amount        `json:"total_pool"`
	Fee            Amount        `json:"fee"`
	NetPool        Amount        `json:"net_pool"`
	Remainder      Amount        `json:"remainder"`
	TreasuryCredit Amount        `json:"treasury_credit"`
	Bets           []BetResponse `json:"bets"`
	StatsErrors    []string      `json:"stats_errors,omitempty"`
}

func FromSettlement(rep engine.SettlementReport) SettlementResponse {
	out := SettlementResponse{
		Match:          FromMatch(rep.Match),
		Refunded:       rep.Result.Refunded,
		TotalPool:      NewAmount(rep.Result.TotalPool),
		Fee:            NewAmount(rep.Result.Fee),
		NetPool:        NewAmount(rep.Result.NetPool),
		Remainder:      NewAmount(rep.Result.Remainder),
		TreasuryCredit: NewAmount(rep.Result.TreasuryCredit),
		Bets:           FromBets(rep.Result.Bets),
	}
	for _, e := range rep.StatsErrors {
		out.StatsErrors = append(out.StatsErrors, e.Error())
	}
	return out
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
