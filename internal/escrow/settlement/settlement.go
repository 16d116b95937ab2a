// Package settlement calcula taxa, payouts e reembolsos de uma partida.
// É puro: recebe o estado lido e devolve o estado liquidado, sem I/O. Qualquer
// erro significa que nada deve ser gravado.
package settlement

import (
	"fmt"
	"time"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/ledger"
)

// Result descreve uma liquidação completa.
type Result struct {
	Bets []domain.Bet // apostas liquidadas (cópias), na ordem de entrada

	TotalPool    uint64
	WinningStake uint64
	Fee          uint64
	NetPool      uint64
	Payouts      uint64 // soma paga aos vencedores ou reembolsada
	Remainder    uint64 // poeira de arredondamento, vai para a tesouraria

	// TreasuryCredit = Fee + Remainder
	TreasuryCredit uint64
	Refunded       bool
}

// Reconciliation compara o saldo da escrow com as apostas e pools.
type Reconciliation struct {
	EscrowBalance  uint64
	PlacedStakeSum uint64
	PoolSum        uint64
	Balanced       bool
}

// Reconcile verifica que Σ stakes Placed == Σ pools == saldo da escrow, e que
// cada pool bate com as apostas do seu resultado.
func Reconcile(m domain.Match, bets []domain.Bet, escrowBalance uint64) (Reconciliation, error) {
	rec := Reconciliation{EscrowBalance: escrowBalance}

	perOutcome := make([]uint64, len(m.Pools))
	for _, b := range bets {
		if b.MatchID != m.ID {
			return rec, fmt.Errorf("bet %s belongs to match %s: %w", b.ID, b.MatchID, domain.ErrInvariantViolation)
		}
		if b.Status != domain.BetPlaced {
			continue
		}
		if !m.ValidOutcome(b.Outcome) {
			return rec, fmt.Errorf("bet %s on outcome %d: %w", b.ID, b.Outcome, domain.ErrInvariantViolation)
		}
		var err error
		if perOutcome[b.Outcome-1], err = ledger.Add(perOutcome[b.Outcome-1], b.Stake); err != nil {
			return rec, err
		}
		if rec.PlacedStakeSum, err = ledger.Add(rec.PlacedStakeSum, b.Stake); err != nil {
			return rec, err
		}
	}

	poolSum, err := ledger.Sum(m.Pools...)
	if err != nil {
		return rec, err
	}
	rec.PoolSum = poolSum

	rec.Balanced = rec.PlacedStakeSum == rec.PoolSum && rec.PoolSum == rec.EscrowBalance
	for i := range perOutcome {
		if perOutcome[i] != m.Pools[i] {
			rec.Balanced = false
		}
	}
	if !rec.Balanced {
		return rec, fmt.Errorf("escrow %d, placed %d, pools %d: %w",
			rec.EscrowBalance, rec.PlacedStakeSum, rec.PoolSum, domain.ErrInvariantViolation)
	}
	return rec, nil
}

// Finalize distribui o pool da partida para o resultado vencedor m.Winner.
// Sem stake no vencedor, cai no caminho de reembolso sem taxa.
func Finalize(m domain.Match, bets []domain.Bet, escrowBalance uint64, feeBps uint16, now time.Time) (Result, error) {
	if !m.ValidOutcome(m.Winner) {
		return Result{}, domain.ErrInvalidOutcome
	}

	totalPool, err := ledger.Sum(m.Pools...)
	if err != nil {
		return Result{}, fmt.Errorf("total pool: %w", err)
	}
	if _, err := Reconcile(m, bets, escrowBalance); err != nil {
		return Result{}, err
	}

	winningStake := m.Pool(m.Winner)
	if winningStake == 0 {
		return refund(bets, totalPool, now)
	}

	fee, netPool, err := ledger.FeeSplit(totalPool, feeBps)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		TotalPool:    totalPool,
		WinningStake: winningStake,
		Fee:          fee,
		NetPool:      netPool,
		Bets:         make([]domain.Bet, 0, len(bets)),
	}
	for _, b := range bets {
		if b.Status != domain.BetPlaced {
			continue
		}
		s := b.Clone()
		var payout uint64
		if b.Outcome == m.Winner {
			if payout, err = ledger.MulDiv(netPool, b.Stake, winningStake); err != nil {
				return Result{}, err
			}
			if res.Payouts, err = ledger.Add(res.Payouts, payout); err != nil {
				return Result{}, err
			}
			s.Status = domain.BetWon
		} else {
			s.Status = domain.BetLost
		}
		s.Payout = &payout
		s.SettledAt = now
		res.Bets = append(res.Bets, s)
	}

	if res.Remainder, err = ledger.Sub(netPool, res.Payouts); err != nil {
		return Result{}, fmt.Errorf("rounding remainder: %w", domain.ErrInvariantViolation)
	}
	if res.TreasuryCredit, err = ledger.Add(fee, res.Remainder); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Refund devolve a cada aposta Placed exatamente o seu stake, sem taxa.
func Refund(m domain.Match, bets []domain.Bet, escrowBalance uint64, now time.Time) (Result, error) {
	rec, err := Reconcile(m, bets, escrowBalance)
	if err != nil {
		return Result{}, err
	}
	return refund(bets, rec.PoolSum, now)
}

func refund(bets []domain.Bet, totalPool uint64, now time.Time) (Result, error) {
	res := Result{TotalPool: totalPool, NetPool: totalPool, Refunded: true, Bets: make([]domain.Bet, 0, len(bets))}
	var err error
	for _, b := range bets {
		if b.Status != domain.BetPlaced {
			continue
		}
		s := b.Clone()
		payout := b.Stake
		s.Status = domain.BetRefunded
		s.Payout = &payout
		s.SettledAt = now
		if res.Payouts, err = ledger.Add(res.Payouts, payout); err != nil {
			return Result{}, err
		}
		res.Bets = append(res.Bets, s)
	}
	if res.Payouts != totalPool {
		return Result{}, fmt.Errorf("refunds %d != pool %d: %w", res.Payouts, totalPool, domain.ErrInvariantViolation)
	}
	return res, nil
}
