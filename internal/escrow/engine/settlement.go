package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/settlement"
	"github.com/radieske/match-escrow/internal/escrow/store"
	"github.com/radieske/match-escrow/internal/ledger"
)

// StatsError é a falha ao atualizar os totais de um apostador após a liquidação.
type StatsError struct {
	BetID  string
	Bettor string
	Err    error
}

func (s StatsError) Error() string {
	return fmt.Sprintf("record outcome for %s (bet %s): %v", s.Bettor, s.BetID, s.Err)
}

func (s StatsError) Unwrap() error { return s.Err }

// SettlementReport é o retorno de FinalizeMatch e CancelMatch.
// StatsErrors não invalida a liquidação, que já foi gravada.
type SettlementReport struct {
	Match       domain.Match
	Result      settlement.Result
	StatsErrors []StatsError
}

// FinalizeMatch liquida uma partida Completed. Toda a movimentação (apostas,
// escrow, tesouraria, status) vai num único commit; se qualquer cálculo falhar a
// partida continua Completed.
func (e *Engine) FinalizeMatch(ctx context.Context, caller, id string) (SettlementReport, error) {
	return e.settle(ctx, "finalize", caller, id, domain.StatusFinalized)
}

// CancelMatch reembolsa todas as apostas de uma partida ainda não resolvida.
func (e *Engine) CancelMatch(ctx context.Context, caller, id string) (SettlementReport, error) {
	return e.settle(ctx, "cancel", caller, id, domain.StatusCancelled)
}

func (e *Engine) settle(ctx context.Context, op, caller, id string, to domain.MatchStatus) (SettlementReport, error) {
	var (
		report SettlementReport
		from   domain.MatchStatus
	)
	err := e.retry(ctx, op, func() error {
		var err error
		report, from, err = e.settleOnce(ctx, caller, id, to)
		return err
	})
	if err != nil {
		e.rejected(op, err, zap.String("match_id", id))
		return SettlementReport{}, err
	}

	report.StatsErrors = e.applyStats(ctx, report.Result)
	m := report.Match
	e.log.Info("match settled",
		zap.String("match_id", m.ID), zap.String("status", string(m.Status)),
		zap.Uint8("winner", m.Winner), zap.Bool("refunded", report.Result.Refunded),
		zap.Uint64("total_pool", report.Result.TotalPool), zap.Uint64("fee", report.Result.Fee),
		zap.Uint64("remainder", report.Result.Remainder), zap.Int("bets", len(report.Result.Bets)),
		zap.Int("stats_errors", len(report.StatsErrors)))
	e.emitStatus(ctx, from, m)
	e.emitSettled(ctx, m, report.Result)
	return report, nil
}

func (e *Engine) settleOnce(ctx context.Context, caller, id string, to domain.MatchStatus) (SettlementReport, domain.MatchStatus, error) {
	p, err := e.store.Platform(ctx)
	if err != nil {
		return SettlementReport{}, "", err
	}
	st, err := e.store.MatchState(ctx, id)
	if err != nil {
		return SettlementReport{}, "", err
	}
	m, esc, bets := st.Match, st.Escrow, st.Bets
	if err := authorize(p, m, caller, actorAuthority); err != nil {
		return SettlementReport{}, "", err
	}
	switch {
	case m.Status == to, to == domain.StatusFinalized && m.Status.Settled():
		return SettlementReport{}, "", domain.ErrAlreadyFinalized
	case !domain.CanTransition(m.Status, to):
		return SettlementReport{}, "", domain.ErrInvalidStatusTransition
	}

	now := e.now()
	var res settlement.Result
	if to == domain.StatusFinalized {
		res, err = settlement.Finalize(m, bets, esc.Balance, p.FeeBps, now)
	} else {
		res, err = settlement.Refund(m, bets, esc.Balance, now)
	}
	if err != nil {
		e.log.Warn("settlement computation failed", zap.String("match_id", m.ID),
			zap.String("kind", domain.KindOf(err)), zap.Error(err))
		return SettlementReport{}, "", err
	}

	from := m.Status
	m.Status = to
	m.SettledAt = now
	if esc.Balance, err = ledger.Sub(esc.Balance, res.TotalPool); err != nil || esc.Balance != 0 {
		return SettlementReport{}, "", fmt.Errorf("escrow not drained: %w", domain.ErrInvariantViolation)
	}
	esc.Locked = false

	if p.TreasuryBalance, err = ledger.Add(p.TreasuryBalance, res.TreasuryCredit); err != nil {
		return SettlementReport{}, "", err
	}
	if p.TotalMatches, err = ledger.Add(p.TotalMatches, 1); err != nil {
		return SettlementReport{}, "", err
	}
	if !res.Refunded {
		if p.TotalBets, err = ledger.Add(p.TotalBets, uint64(len(res.Bets))); err != nil {
			return SettlementReport{}, "", err
		}
		if p.TotalVolume, err = ledger.Add(p.TotalVolume, res.TotalPool); err != nil {
			return SettlementReport{}, "", err
		}
	}
	p.UpdatedAt = now

	cs := &store.ChangeSet{
		Platform: &p,
		Matches:  []domain.Match{m},
		Escrows:  []domain.Escrow{esc},
		Bets:     res.Bets,
	}
	if err := e.store.Commit(ctx, cs); err != nil {
		return SettlementReport{}, "", err
	}
	res.Bets = cs.Bets
	return SettlementReport{Match: cs.Matches[0], Result: res}, from, nil
}

// applyStats atualiza os totais de cada apostador depois do commit. Reembolsos
// não contam como volume apostado. Cada atualização é independente.
func (e *Engine) applyStats(ctx context.Context, res settlement.Result) []StatsError {
	if res.Refunded {
		return nil
	}
	var errs []StatsError
	for _, b := range res.Bets {
		if err := e.recordOutcome(ctx, b.Bettor, b.Stake, *b.Payout); err != nil {
			se := StatsError{BetID: b.ID, Bettor: b.Bettor, Err: err}
			e.log.Warn("record outcome failed", zap.String("bet_id", b.ID),
				zap.String("bettor", b.Bettor), zap.Error(err))
			if e.hooks.StatsFailed != nil {
				e.hooks.StatsFailed()
			}
			errs = append(errs, se)
		}
	}
	return errs
}
