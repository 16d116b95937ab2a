package engine

import (
	"context"
	"fmt"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/settlement"
	"github.com/radieske/match-escrow/internal/ledger"
)

// Audit confere o invariante da escrow de uma partida:
// ativa -> saldo == Σ stakes Placed == Σ pools; liquidada -> saldo 0 e nenhuma aposta Placed.
// As três leituras vêm do mesmo snapshot do store.
func (e *Engine) Audit(ctx context.Context, matchID string) (settlement.Reconciliation, error) {
	st, err := e.store.MatchState(ctx, matchID)
	if err != nil {
		return settlement.Reconciliation{}, err
	}
	m, esc, bets := st.Match, st.Escrow, st.Bets

	if m.Status.Active() {
		return settlement.Reconcile(m, bets, esc.Balance)
	}

	rec := settlement.Reconciliation{EscrowBalance: esc.Balance}
	if rec.PoolSum, err = ledger.Sum(m.Pools...); err != nil {
		return rec, err
	}
	for _, b := range bets {
		if b.Status == domain.BetPlaced {
			if rec.PlacedStakeSum, err = ledger.Add(rec.PlacedStakeSum, b.Stake); err != nil {
				return rec, err
			}
		}
	}
	rec.Balanced = rec.EscrowBalance == 0 && rec.PlacedStakeSum == 0
	if !rec.Balanced {
		return rec, fmt.Errorf("settled match %s holds %d with %d placed: %w",
			matchID, rec.EscrowBalance, rec.PlacedStakeSum, domain.ErrInvariantViolation)
	}
	return rec, nil
}
