package cache

import (
	"context"

	"github.com/radieske/match-escrow/pkg/contracts/events"
)

// MatchInvalidator é o lado de escrita do cache usado pelo Invalidator.
type MatchInvalidator interface {
	InvalidateMatch(ctx context.Context, matchID string, version int64) error
}

// Invalidator é um engine.EventSink que derruba a visão em cache da partida a
// cada evento gravado, venha a mutação da API ou do result-worker.
type Invalidator struct{ c MatchInvalidator }

func NewInvalidator(c MatchInvalidator) *Invalidator { return &Invalidator{c: c} }

func (i *Invalidator) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	return i.c.InvalidateMatch(ctx, e.MatchID, e.MatchVersion)
}

func (i *Invalidator) PublishStatusChanged(ctx context.Context, e events.MatchStatusChanged) error {
	return i.c.InvalidateMatch(ctx, e.MatchID, e.MatchVersion)
}

func (i *Invalidator) PublishSettled(ctx context.Context, e events.MatchSettled) error {
	return i.c.InvalidateMatch(ctx, e.MatchID, e.MatchVersion)
}
