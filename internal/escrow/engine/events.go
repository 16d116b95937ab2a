package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/settlement"
	"github.com/radieske/match-escrow/pkg/contracts/events"
)

// EventSink recebe os eventos depois que o commit correspondente foi gravado.
// Falhas de publicação são só logadas: o estado já é definitivo.
type EventSink interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishStatusChanged(ctx context.Context, e events.MatchStatusChanged) error
	PublishSettled(ctx context.Context, e events.MatchSettled) error
}

type nopSink struct{}

func (nopSink) PublishBetPlaced(context.Context, events.BetPlaced) error              { return nil }
func (nopSink) PublishStatusChanged(context.Context, events.MatchStatusChanged) error { return nil }
func (nopSink) PublishSettled(context.Context, events.MatchSettled) error             { return nil }

type fanout []EventSink

// Sinks combina vários sinks; todos recebem o evento e os erros são agregados.
func Sinks(sinks ...EventSink) EventSink { return fanout(sinks) }

func (f fanout) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.PublishBetPlaced(ctx, e))
	}
	return errors.Join(errs...)
}

func (f fanout) PublishStatusChanged(ctx context.Context, e events.MatchStatusChanged) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.PublishStatusChanged(ctx, e))
	}
	return errors.Join(errs...)
}

func (f fanout) PublishSettled(ctx context.Context, e events.MatchSettled) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.PublishSettled(ctx, e))
	}
	return errors.Join(errs...)
}

func (e *Engine) emitBetPlaced(ctx context.Context, m domain.Match, b domain.Bet) {
	ev := events.BetPlaced{
		BetID: b.ID, MatchID: m.ID, Bettor: b.Bettor, Outcome: b.Outcome, Stake: b.Stake,
		Pools: append([]uint64(nil), m.Pools...), TotalBets: m.TotalBets,
		MatchVersion: m.Version, TsUnixMs: b.PlacedAt.UnixMilli(),
	}
	if err := e.sink.PublishBetPlaced(ctx, ev); err != nil {
		e.log.Warn("publish bet placed failed", zap.String("bet_id", b.ID), zap.Error(err))
	}
}

func (e *Engine) emitStatus(ctx context.Context, from domain.MatchStatus, m domain.Match) {
	ev := events.MatchStatusChanged{
		MatchID: m.ID, From: string(from), To: string(m.Status),
		Winner: m.Winner, ProofRef: m.ProofRef, MatchVersion: m.Version, TsUnixMs: e.now().UnixMilli(),
	}
	if err := e.sink.PublishStatusChanged(ctx, ev); err != nil {
		e.log.Warn("publish status changed failed", zap.String("match_id", m.ID), zap.Error(err))
	}
	if e.hooks.Transition != nil {
		e.hooks.Transition(m.Status)
	}
}

func (e *Engine) emitSettled(ctx context.Context, m domain.Match, res settlement.Result) {
	ev := events.MatchSettled{
		MatchID: m.ID, Status: string(m.Status), Winner: m.Winner, Refunded: res.Refunded,
		TotalPool: res.TotalPool, Fee: res.Fee, Remainder: res.Remainder, TreasuryCredit: res.TreasuryCredit,
		Payouts:      make([]events.BetPayout, 0, len(res.Bets)),
		MatchVersion: m.Version,
		TsUnixMs:     m.SettledAt.UnixMilli(),
	}
	for _, b := range res.Bets {
		ev.Payouts = append(ev.Payouts, events.BetPayout{
			BetID: b.ID, Bettor: b.Bettor, Status: string(b.Status), Stake: b.Stake, Payout: *b.Payout,
		})
	}
	if err := e.sink.PublishSettled(ctx, ev); err != nil {
		e.log.Warn("publish settled failed", zap.String("match_id", m.ID), zap.Error(err))
	}
	if e.hooks.Settled != nil {
		e.hooks.Settled(m.Status, res.Refunded, res.Fee)
	}
}
