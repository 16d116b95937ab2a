package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/engine"
	"github.com/radieske/match-escrow/pkg/contracts/events"
)

// Engine é o subconjunto do engine usado pelo handler.
type Engine interface {
	Match(ctx context.Context, id string) (domain.Match, error)
	CompleteMatch(ctx context.Context, caller, id string, winner uint8, proofRef string) (domain.Match, error)
	FinalizeMatch(ctx context.Context, caller, id string) (engine.SettlementReport, error)
}

var (
	// ErrInvalidEvent: mensagem sem match id, vencedor ou prova. Vai para a DLQ.
	ErrInvalidEvent = errors.New("invalid match completed event")
	// ErrResultMismatch: a partida já foi concluída com outro vencedor.
	ErrResultMismatch = errors.New("match already completed with a different winner")
)

// Outcome descreve o que aconteceu com um resultado.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed" // concluída, sem auto-finalize
	OutcomeFinalized Outcome = "finalized"
	OutcomeReplay    Outcome = "replay" // já aplicado antes; só ack
)

// Handler aplica resultados de gameplay: CompleteMatch como oráculo e,
// com AutoFinalize, FinalizeMatch como autoridade.
// Reentregas do mesmo resultado são idempotentes.
type Handler struct {
	Engine       Engine
	Oracle       string
	Authority    string
	AutoFinalize bool
	Retries      int           // tentativas extras em ErrConflict
	Backoff      time.Duration // multiplicado pela tentativa
	Log          *zap.Logger
}

// Handle devolve erro só quando a mensagem não pode ser aplicada.
// Erros com domain.IsRetryable ainda podem ter sucesso numa reentrega.
func (h *Handler) Handle(ctx context.Context, ev events.MatchCompleted) (Outcome, error) {
	if ev.MatchID == "" || ev.Winner == 0 || ev.ProofRef == "" {
		return "", ErrInvalidEvent
	}
	log := h.logger().With(zap.String("match_id", ev.MatchID), zap.Uint8("winner", ev.Winner), zap.String("source", ev.Source))

	var m domain.Match
	err := h.retry(ctx, func() error {
		var err error
		m, err = h.Engine.CompleteMatch(ctx, h.Oracle, ev.MatchID, ev.Winner, ev.ProofRef)
		return err
	})
	switch {
	case err == nil:
		log.Info("match completed from result")
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		// reentrega: decide pelo estado atual
		m, err = h.Engine.Match(ctx, ev.MatchID)
		if err != nil {
			return "", err
		}
		if m.Status.Settled() {
			log.Info("result replay ignored", zap.String("status", string(m.Status)))
			return OutcomeReplay, nil
		}
		if m.Status != domain.StatusCompleted {
			return "", fmt.Errorf("complete match %s in %s: %w", ev.MatchID, m.Status, err)
		}
		if m.Winner != ev.Winner {
			return "", fmt.Errorf("match %s winner %d: %w", ev.MatchID, m.Winner, ErrResultMismatch)
		}
		if !h.AutoFinalize {
			return OutcomeReplay, nil
		}
	default:
		return "", fmt.Errorf("complete match %s: %w", ev.MatchID, err)
	}

	if !h.AutoFinalize {
		return OutcomeCompleted, nil
	}
	var rep engine.SettlementReport
	err = h.retry(ctx, func() error {
		var err error
		rep, err = h.Engine.FinalizeMatch(ctx, h.Authority, ev.MatchID)
		return err
	})
	switch {
	case err == nil:
		log.Info("match finalized from result",
			zap.Bool("refunded", rep.Result.Refunded), zap.Int("stats_errors", len(rep.StatsErrors)))
		return OutcomeFinalized, nil
	case errors.Is(err, domain.ErrAlreadyFinalized):
		log.Info("finalize replay ignored")
		return OutcomeReplay, nil
	default:
		return "", fmt.Errorf("finalize match %s: %w", ev.MatchID, err)
	}
}

// retry repete fn enquanto o erro for ErrConflict, com backoff linear.
func (h *Handler) retry(ctx context.Context, fn func() error) error {
	err := fn()
	for i := 0; i < h.Retries && errors.Is(err, domain.ErrConflict); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.Backoff * time.Duration(i+1)):
		}
		err = fn()
	}
	return err
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
