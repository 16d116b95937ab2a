// Package store persiste o estado do escrow com controle de concorrência otimista:
// cada registro carrega a versão em que foi lido e o Commit só grava se todas as
// versões ainda baterem.
package store

import (
	"context"

	"github.com/radieske/match-escrow/internal/escrow/domain"
)

// Store é o contrato de persistência usado pelo engine.
type Store interface {
	Platform(ctx context.Context) (domain.Platform, error)
	Account(ctx context.Context, addr domain.Address) (domain.UserAccount, error)
	Match(ctx context.Context, id string) (domain.Match, error)
	Escrow(ctx context.Context, addr domain.Address) (domain.Escrow, error)
	Bet(ctx context.Context, id string) (domain.Bet, error)
	// BetsByMatch retorna as apostas da partida em ordem de admissão.
	BetsByMatch(ctx context.Context, matchID string) ([]domain.Bet, error)
	// MatchState lê partida, escrow e apostas de um mesmo instante.
	MatchState(ctx context.Context, matchID string) (MatchState, error)
	// Commit aplica o ChangeSet de forma atômica (tudo ou nada).
	Commit(ctx context.Context, cs *ChangeSet) error
}

// MatchState é a leitura consistente de uma partida com sua escrow e apostas.
type MatchState struct {
	Match  domain.Match
	Escrow domain.Escrow
	Bets   []domain.Bet
}

// ChangeSet agrupa as escritas de uma operação.
//
// Version de cada registro é a versão lida; 0 significa inserção. Uma versão
// divergente faz o Commit inteiro falhar com domain.ErrConflict. Em caso de
// sucesso, a Version de cada registro é avançada no próprio ChangeSet.
type ChangeSet struct {
	Platform *domain.Platform
	Accounts []domain.UserAccount
	Matches  []domain.Match
	Escrows  []domain.Escrow
	Bets     []domain.Bet
}

// Empty indica que não há nada a gravar.
func (cs *ChangeSet) Empty() bool {
	return cs.Platform == nil && len(cs.Accounts) == 0 && len(cs.Matches) == 0 &&
		len(cs.Escrows) == 0 && len(cs.Bets) == 0
}

func (cs *ChangeSet) bumpVersions() {
	if cs.Platform != nil {
		cs.Platform.Version++
	}
	for i := range cs.Accounts {
		cs.Accounts[i].Version++
	}
	for i := range cs.Matches {
		cs.Matches[i].Version++
	}
	for i := range cs.Escrows {
		cs.Escrows[i].Version++
	}
	for i := range cs.Bets {
		cs.Bets[i].Version++
	}
}
