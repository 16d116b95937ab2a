package engine_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/engine"
	"github.com/radieske/match-escrow/internal/escrow/store"
	"github.com/radieske/match-escrow/internal/ledger"
	"github.com/radieske/match-escrow/pkg/contracts/events"
)

const (
	authority = "authority"
	oracle    = "oracle"
	treasury  = "treasury"
)

var one = ledger.Unit

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingSink guarda os eventos publicados.
type recordingSink struct {
	mu       sync.Mutex
	placed   []events.BetPlaced
	statuses []events.MatchStatusChanged
	settled  []events.MatchSettled
}

func (s *recordingSink) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed = append(s.placed, e)
	return nil
}

func (s *recordingSink) PublishStatusChanged(_ context.Context, e events.MatchStatusChanged) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, e)
	return nil
}

func (s *recordingSink) PublishSettled(_ context.Context, e events.MatchSettled) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled = append(s.settled, e)
	return nil
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.Memory
	eng   *engine.Engine
	clock *clock
	sink  *recordingSink
}

func testConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.TierLimits = [4]uint64{10 * one, 100 * one, 1_000 * one, 10_000 * one}
	return cfg
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store.NewMemory(),
		clock: &clock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)},
		sink:  &recordingSink{},
	}
	var seq atomic.Int64
	opts = append([]engine.Option{
		engine.WithClock(f.clock.Now),
		engine.WithSink(f.sink),
		engine.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	}, opts...)
	eng, err := engine.New(f.store, testConfig(), opts...)
	require.NoError(t, err)
	f.eng = eng

	_, err = eng.InitializePlatform(f.ctx, authority, engine.PlatformParams{
		Treasury: treasury, Oracle: oracle, FeeBps: 250, MinStake: one / 100, MaxStake: 5_000 * one,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) account(owner string, tier uint8) {
	f.t.Helper()
	_, err := f.eng.CreateUserAccount(f.ctx, authority, owner, tier, "BR")
	require.NoError(f.t, err)
}

// openMatch cria e abre uma partida com n resultados.
func (f *fixture) openMatch(id string, outcomes int) domain.Match {
	f.t.Helper()
	_, err := f.eng.CreateMatch(f.ctx, authority, engine.MatchParams{ID: id, Type: domain.MatchHumanVsAI, Outcomes: outcomes})
	require.NoError(f.t, err)
	m, err := f.eng.OpenMatch(f.ctx, authority, id)
	require.NoError(f.t, err)
	return m
}

func (f *fixture) bet(owner, matchID string, outcome uint8, stake uint64) domain.Bet {
	f.t.Helper()
	b, err := f.eng.PlaceBet(f.ctx, engine.BetRequest{Bettor: owner, MatchID: matchID, Outcome: outcome, Stake: stake})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) complete(matchID string, winner uint8) {
	f.t.Helper()
	_, err := f.eng.StartMatch(f.ctx, authority, matchID)
	require.NoError(f.t, err)
	_, err = f.eng.CompleteMatch(f.ctx, oracle, matchID, winner, "proof-"+matchID)
	require.NoError(f.t, err)
}

// fourBettors monta o cenário de 3 apostas em A e 1 em B, 1.0 cada.
func (f *fixture) fourBettors(matchID string) []domain.Bet {
	f.t.Helper()
	f.openMatch(matchID, 2)
	var bets []domain.Bet
	for i, o := range []uint8{1, 1, 1, 2} {
		owner := fmt.Sprintf("%s-user-%d", matchID, i)
		f.account(owner, 1)
		bets = append(bets, f.bet(owner, matchID, o, one))
	}
	return bets
}
