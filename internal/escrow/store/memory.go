package store

import (
	"context"
	"sort"
	"sync"

	"github.com/radieske/match-escrow/internal/escrow/domain"
)

type betKey struct{ matchID, bettor string }

// Memory é a implementação em memória, usada em testes e no modo local.
type Memory struct {
	mu       sync.RWMutex
	platform *domain.Platform
	accounts map[domain.Address]domain.UserAccount
	matches  map[string]domain.Match
	escrows  map[domain.Address]domain.Escrow
	bets     map[string]domain.Bet
	byBettor map[betKey]string
	seq      map[string]int64 // ordem de admissão
	nextSeq  int64
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[domain.Address]domain.UserAccount),
		matches:  make(map[string]domain.Match),
		escrows:  make(map[domain.Address]domain.Escrow),
		bets:     make(map[string]domain.Bet),
		byBettor: make(map[betKey]string),
		seq:      make(map[string]int64),
	}
}

func (m *Memory) Platform(ctx context.Context) (domain.Platform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.platform == nil {
		return domain.Platform{}, domain.ErrPlatformNotInitialized
	}
	return *m.platform, nil
}

func (m *Memory) Account(ctx context.Context, addr domain.Address) (domain.UserAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[addr]
	if !ok {
		return domain.UserAccount{}, domain.ErrAccountNotFound
	}
	return a, nil
}

func (m *Memory) Match(ctx context.Context, id string) (domain.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.matches[id]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	return mt.Clone(), nil
}

func (m *Memory) Escrow(ctx context.Context, addr domain.Address) (domain.Escrow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.escrows[addr]
	if !ok {
		return domain.Escrow{}, domain.ErrEscrowNotFound
	}
	return e, nil
}

func (m *Memory) Bet(ctx context.Context, id string) (domain.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrBetNotFound
	}
	return b.Clone(), nil
}

func (m *Memory) BetsByMatch(ctx context.Context, matchID string) ([]domain.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.betsOf(matchID), nil
}

func (m *Memory) MatchState(ctx context.Context, matchID string) (MatchState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.matches[matchID]
	if !ok {
		return MatchState{}, domain.ErrMatchNotFound
	}
	e, ok := m.escrows[domain.EscrowAddress(matchID)]
	if !ok {
		return MatchState{}, domain.ErrEscrowNotFound
	}
	return MatchState{Match: mt.Clone(), Escrow: e, Bets: m.betsOf(matchID)}, nil
}

// betsOf exige o lock já adquirido.
func (m *Memory) betsOf(matchID string) []domain.Bet {
	var out []domain.Bet
	for _, b := range m.bets {
		if b.MatchID == matchID {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out
}

// Commit valida todas as versões antes de gravar qualquer coisa.
func (m *Memory) Commit(ctx context.Context, cs *ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(cs); err != nil {
		return err
	}
	cs.bumpVersions()

	if cs.Platform != nil {
		p := *cs.Platform
		m.platform = &p
	}
	for _, a := range cs.Accounts {
		m.accounts[a.Address] = a
	}
	for _, mt := range cs.Matches {
		m.matches[mt.ID] = mt.Clone()
	}
	for _, e := range cs.Escrows {
		m.escrows[e.Address] = e
	}
	for _, b := range cs.Bets {
		if _, ok := m.bets[b.ID]; !ok {
			m.nextSeq++
			m.seq[b.ID] = m.nextSeq
			m.byBettor[betKey{b.MatchID, b.Bettor}] = b.ID
		}
		m.bets[b.ID] = b.Clone()
	}
	return nil
}

func (m *Memory) check(cs *ChangeSet) error {
	if p := cs.Platform; p != nil {
		switch {
		case p.Version == 0 && m.platform != nil:
			return domain.ErrPlatformExists
		case p.Version != 0 && (m.platform == nil || m.platform.Version != p.Version):
			return domain.ErrConflict
		}
	}
	for _, a := range cs.Accounts {
		cur, ok := m.accounts[a.Address]
		if a.Version == 0 && ok {
			return domain.ErrAccountExists
		}
		if a.Version != 0 && (!ok || cur.Version != a.Version) {
			return domain.ErrConflict
		}
	}
	for _, mt := range cs.Matches {
		cur, ok := m.matches[mt.ID]
		if mt.Version == 0 && ok {
			return domain.ErrInvalidMatch
		}
		if mt.Version != 0 && (!ok || cur.Version != mt.Version) {
			return domain.ErrConflict
		}
	}
	for _, e := range cs.Escrows {
		cur, ok := m.escrows[e.Address]
		if e.Version == 0 && ok {
			return domain.ErrConflict
		}
		if e.Version != 0 && (!ok || cur.Version != e.Version) {
			return domain.ErrConflict
		}
	}
	pending := make(map[betKey]bool)
	for _, b := range cs.Bets {
		cur, ok := m.bets[b.ID]
		if b.Version == 0 {
			k := betKey{b.MatchID, b.Bettor}
			if _, dup := m.byBettor[k]; dup || ok || pending[k] {
				return domain.ErrDuplicateBet
			}
			pending[k] = true
			continue
		}
		if !ok || cur.Version != b.Version {
			return domain.ErrConflict
		}
	}
	return nil
}
