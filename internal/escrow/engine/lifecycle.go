package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/store"
)

// MaxOutcomes limita a quantidade de pools de uma partida (índice cabe em uint8).
const MaxOutcomes = 255

// actor identifica os papéis que podem disparar uma transição.
type actor uint8

const (
	actorAuthority actor = 1 << iota
	actorCreator
	actorOracle
)

// authorize compara a identidade de quem chama com os campos gravados.
// Endereços derivados nunca dão permissão.
func authorize(p domain.Platform, m domain.Match, caller string, allowed actor) error {
	switch {
	case caller == "":
		return domain.ErrUnauthorized
	case allowed&actorAuthority != 0 && caller == p.Authority:
		return nil
	case allowed&actorCreator != 0 && caller == m.Creator:
		return nil
	case allowed&actorOracle != 0 && p.Oracle != "" && caller == p.Oracle:
		return nil
	}
	return domain.ErrUnauthorized
}

type MatchParams struct {
	ID          string // vazio = uuid gerado
	Type        domain.MatchType
	Outcomes    int
	BetsCloseAt time.Time
}

// CreateMatch cria a partida em Created e abre a escrow (saldo 0, travada).
// Pode ser chamado pela autoridade ou por quem tem conta não bloqueada.
func (e *Engine) CreateMatch(ctx context.Context, caller string, params MatchParams) (domain.Match, error) {
	p, err := e.store.Platform(ctx)
	if err != nil {
		return domain.Match{}, err
	}
	if caller == "" {
		return domain.Match{}, domain.ErrUnauthorized
	}
	if caller != p.Authority {
		a, err := e.store.Account(ctx, domain.UserAddress(caller))
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Match{}, domain.ErrUnauthorized
		}
		if err != nil {
			return domain.Match{}, err
		}
		if a.Blacklisted {
			return domain.Match{}, domain.ErrAccountBlacklisted
		}
	}

	now := e.now()
	if !params.Type.Valid() || params.Outcomes < 2 || params.Outcomes > MaxOutcomes {
		return domain.Match{}, domain.ErrInvalidMatch
	}
	if !params.BetsCloseAt.IsZero() && !params.BetsCloseAt.After(now) {
		return domain.Match{}, domain.ErrInvalidMatch
	}
	id := params.ID
	if id == "" {
		id = e.newID()
	}

	m := domain.Match{
		ID:          id,
		Type:        params.Type,
		Status:      domain.StatusCreated,
		Pools:       make([]uint64, params.Outcomes),
		Creator:     caller,
		CreatedAt:   now,
		BetsCloseAt: params.BetsCloseAt,
	}
	esc := domain.Escrow{Address: domain.EscrowAddress(id), MatchID: id, Locked: true}
	cs := &store.ChangeSet{Matches: []domain.Match{m}, Escrows: []domain.Escrow{esc}}
	if err := e.store.Commit(ctx, cs); err != nil {
		return domain.Match{}, err
	}
	m = cs.Matches[0]
	e.log.Info("match created", zap.String("match_id", id), zap.String("type", string(m.Type)),
		zap.Int("outcomes", params.Outcomes), zap.String("creator", caller))
	e.emitStatus(ctx, "", m)
	return m, nil
}

// OpenMatch habilita apostas (Created -> Open).
func (e *Engine) OpenMatch(ctx context.Context, caller, id string) (domain.Match, error) {
	return e.transition(ctx, caller, id, domain.StatusOpen, actorAuthority|actorCreator, nil)
}

// StartMatch fecha as apostas (Open -> InProgress). O commit é guardado pela
// versão da partida, então nenhuma aposta concorrente entra depois dele.
func (e *Engine) StartMatch(ctx context.Context, caller, id string) (domain.Match, error) {
	return e.transition(ctx, caller, id, domain.StatusInProgress, actorAuthority|actorCreator, func(m *domain.Match) error {
		m.StartedAt = e.now()
		return nil
	})
}

// CompleteMatch registra o vencedor e a prova vindos do gameplay (InProgress -> Completed).
func (e *Engine) CompleteMatch(ctx context.Context, caller, id string, winner uint8, proofRef string) (domain.Match, error) {
	return e.transition(ctx, caller, id, domain.StatusCompleted, actorAuthority|actorCreator|actorOracle, func(m *domain.Match) error {
		if !m.ValidOutcome(winner) {
			return domain.ErrInvalidOutcome
		}
		if proofRef == "" {
			return domain.ErrInvalidMatch
		}
		m.Winner = winner
		m.ProofRef = proofRef
		m.CompletedAt = e.now()
		return nil
	})
}

func (e *Engine) transition(ctx context.Context, caller, id string, to domain.MatchStatus, allowed actor, mutate func(*domain.Match) error) (domain.Match, error) {
	p, err := e.store.Platform(ctx)
	if err != nil {
		return domain.Match{}, err
	}
	m, err := e.store.Match(ctx, id)
	if err != nil {
		return domain.Match{}, err
	}
	if err := authorize(p, m, caller, allowed); err != nil {
		e.rejected("transition", err, zap.String("match_id", id), zap.String("to", string(to)))
		return domain.Match{}, err
	}
	if !domain.CanTransition(m.Status, to) {
		e.rejected("transition", domain.ErrInvalidStatusTransition,
			zap.String("match_id", id), zap.String("from", string(m.Status)), zap.String("to", string(to)))
		return domain.Match{}, domain.ErrInvalidStatusTransition
	}
	from := m.Status
	m.Status = to
	if mutate != nil {
		if err := mutate(&m); err != nil {
			return domain.Match{}, err
		}
	}

	cs := &store.ChangeSet{Matches: []domain.Match{m}}
	if err := e.store.Commit(ctx, cs); err != nil {
		if isConflict(err) {
			e.conflict("transition")
		}
		return domain.Match{}, err
	}
	m = cs.Matches[0]
	e.log.Info("match status changed", zap.String("match_id", id),
		zap.String("from", string(from)), zap.String("to", string(to)))
	e.emitStatus(ctx, from, m)
	return m, nil
}
