package engine

import (
	"context"
	"errors"

	"github.com/radieske/match-escrow/internal/escrow/domain"
)

func (e *Engine) Platform(ctx context.Context) (domain.Platform, error) {
	return e.store.Platform(ctx)
}

func (e *Engine) Account(ctx context.Context, owner string) (domain.UserAccount, error) {
	return e.store.Account(ctx, domain.UserAddress(owner))
}

func (e *Engine) Match(ctx context.Context, id string) (domain.Match, error) {
	return e.store.Match(ctx, id)
}

func (e *Engine) Bet(ctx context.Context, id string) (domain.Bet, error) {
	return e.store.Bet(ctx, id)
}

func (e *Engine) MatchBets(ctx context.Context, matchID string) ([]domain.Bet, error) {
	if _, err := e.store.Match(ctx, matchID); err != nil {
		return nil, err
	}
	return e.store.BetsByMatch(ctx, matchID)
}

// Escrow devolve a custódia da partida, endereçada pelo id da partida.
func (e *Engine) Escrow(ctx context.Context, matchID string) (domain.Escrow, error) {
	return e.store.Escrow(ctx, domain.EscrowAddress(matchID))
}

func isConflict(err error) bool { return errors.Is(err, domain.ErrConflict) }
