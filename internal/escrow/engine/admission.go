package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/store"
	"github.com/radieske/match-escrow/internal/ledger"
)

type BetRequest struct {
	Bettor  string
	MatchID string
	Outcome uint8
	Stake   uint64
}

// PlaceBet valida e registra uma aposta. Os checks seguem uma ordem fixa para
// que o erro devolvido seja estável; nenhum deles grava estado.
// Uma aposta por usuário por partida.
func (e *Engine) PlaceBet(ctx context.Context, req BetRequest) (domain.Bet, error) {
	b, err := e.placeBet(ctx, req)
	if err != nil {
		if isConflict(err) {
			e.conflict("place_bet")
		}
		e.rejected("place_bet", err, zap.String("match_id", req.MatchID), zap.String("bettor", req.Bettor))
		return domain.Bet{}, err
	}
	return b, nil
}

func (e *Engine) placeBet(ctx context.Context, req BetRequest) (domain.Bet, error) {
	if req.Bettor == "" {
		return domain.Bet{}, domain.ErrUnauthorized
	}
	p, err := e.store.Platform(ctx)
	if err != nil {
		return domain.Bet{}, err
	}
	m, err := e.store.Match(ctx, req.MatchID)
	if err != nil {
		return domain.Bet{}, err
	}
	now := e.now()

	if m.Status != domain.StatusOpen {
		return domain.Bet{}, domain.ErrMatchNotOpen
	}
	if !m.BetsCloseAt.IsZero() && !now.Before(m.BetsCloseAt) {
		return domain.Bet{}, domain.ErrMatchNotOpen
	}
	if !m.ValidOutcome(req.Outcome) {
		return domain.Bet{}, domain.ErrInvalidOutcome
	}
	if req.Stake < p.MinStake {
		return domain.Bet{}, domain.ErrBelowMinimum
	}
	if req.Stake > p.MaxStake {
		return domain.Bet{}, domain.ErrAboveMaximum
	}

	a, err := e.store.Account(ctx, domain.UserAddress(req.Bettor))
	if err != nil {
		return domain.Bet{}, err
	}
	if int(a.KYCTier) >= len(e.cfg.TierLimits) {
		return domain.Bet{}, domain.ErrInvalidTier
	}
	if req.Stake > e.cfg.TierLimits[a.KYCTier] {
		return domain.Bet{}, domain.ErrInsufficientKyc
	}
	if a.Blacklisted {
		return domain.Bet{}, domain.ErrAccountBlacklisted
	}
	if a.StakeCap > 0 && req.Stake > a.StakeCap {
		return domain.Bet{}, domain.ErrRiskLimitExceeded
	}

	esc, err := e.store.Escrow(ctx, domain.EscrowAddress(m.ID))
	if err != nil {
		return domain.Bet{}, err
	}
	if esc.Balance, err = ledger.Add(esc.Balance, req.Stake); err != nil {
		return domain.Bet{}, err
	}
	if m.Pools[req.Outcome-1], err = ledger.Add(m.Pools[req.Outcome-1], req.Stake); err != nil {
		return domain.Bet{}, err
	}
	if m.TotalBets, err = ledger.Add(m.TotalBets, 1); err != nil {
		return domain.Bet{}, err
	}

	bet := domain.Bet{
		ID:       e.newID(),
		Bettor:   req.Bettor,
		MatchID:  m.ID,
		Outcome:  req.Outcome,
		Stake:    req.Stake,
		Status:   domain.BetPlaced,
		PlacedAt: now,
	}
	cs := &store.ChangeSet{
		Matches: []domain.Match{m},
		Escrows: []domain.Escrow{esc},
		Bets:    []domain.Bet{bet},
	}
	// duplicidade (match, bettor) é garantida pelo store no commit
	if err := e.store.Commit(ctx, cs); err != nil {
		return domain.Bet{}, err
	}

	bet, m = cs.Bets[0], cs.Matches[0]
	e.log.Info("bet placed", zap.String("bet_id", bet.ID), zap.String("match_id", m.ID),
		zap.String("bettor", bet.Bettor), zap.Uint8("outcome", bet.Outcome), zap.Uint64("stake", bet.Stake))
	if e.hooks.BetPlaced != nil {
		e.hooks.BetPlaced(bet.Stake)
	}
	e.emitBetPlaced(ctx, m, bet)
	return bet, nil
}
