package engine_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/engine"
)

func TestPlaceBetUpdatesPoolsAndEscrow(t *testing.T) {
	f := newFixture(t)
	f.openMatch("m1", 3)
	f.account("alice", 2)
	f.account("bob", 2)

	b := f.bet("alice", "m1", 2, 5*one)
	assert.Equal(t, domain.BetPlaced, b.Status)
	assert.Nil(t, b.Payout)
	assert.EqualValues(t, 1, b.Version)
	f.bet("bob", "m1", 2, 3*one)

	m, err := f.eng.Match(f.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 8 * one, 0}, m.Pools)
	assert.EqualValues(t, 2, m.TotalBets)

	esc, err := f.eng.Escrow(f.ctx, "m1")
	require.NoError(t, err)
	assert.EqualValues(t, 8*one, esc.Balance)
	assert.True(t, esc.Locked)

	require.Len(t, f.sink.placed, 2)
	assert.Equal(t, []uint64{0, 8 * one, 0}, f.sink.placed[1].Pools)
}

func TestPlaceBetRejections(t *testing.T) {
	f := newFixture(t)
	f.openMatch("open", 2)
	_, err := f.eng.CreateMatch(f.ctx, authority, engine.MatchParams{ID: "created", Type: domain.MatchAIVsAI, Outcomes: 2})
	require.NoError(t, err)

	f.account("t0", 0)
	f.account("banned", 3)
	f.account("capped", 3)
	f.account("dup", 3)
	_, err = f.eng.SetRiskControls(f.ctx, authority, "banned", engine.RiskControls{Blacklisted: true})
	require.NoError(t, err)
	_, err = f.eng.SetRiskControls(f.ctx, authority, "capped", engine.RiskControls{StakeCap: 2 * one})
	require.NoError(t, err)
	f.bet("dup", "open", 1, one)

	cases := []struct {
		name string
		req  engine.BetRequest
		want error
	}{
		{"match not open", engine.BetRequest{Bettor: "t0", MatchID: "created", Outcome: 1, Stake: one}, domain.ErrMatchNotOpen},
		{"unknown match", engine.BetRequest{Bettor: "t0", MatchID: "nope", Outcome: 1, Stake: one}, domain.ErrMatchNotFound},
		{"outcome zero", engine.BetRequest{Bettor: "t0", MatchID: "open", Outcome: 0, Stake: one}, domain.ErrInvalidOutcome},
		{"outcome out of range", engine.BetRequest{Bettor: "t0", MatchID: "open", Outcome: 3, Stake: one}, domain.ErrInvalidOutcome},
		{"below minimum", engine.BetRequest{Bettor: "t0", MatchID: "open", Outcome: 1, Stake: one/100 - 1}, domain.ErrBelowMinimum},
		{"above maximum", engine.BetRequest{Bettor: "t0", MatchID: "open", Outcome: 1, Stake: 5_000*one + 1}, domain.ErrAboveMaximum},
		{"no account", engine.BetRequest{Bettor: "ghost", MatchID: "open", Outcome: 1, Stake: one}, domain.ErrAccountNotFound},
		{"tier limit", engine.BetRequest{Bettor: "t0", MatchID: "open", Outcome: 1, Stake: 10*one + 1}, domain.ErrInsufficientKyc},
		{"blacklisted", engine.BetRequest{Bettor: "banned", MatchID: "open", Outcome: 1, Stake: one}, domain.ErrAccountBlacklisted},
		{"risk cap", engine.BetRequest{Bettor: "capped", MatchID: "open", Outcome: 1, Stake: 2*one + 1}, domain.ErrRiskLimitExceeded},
		{"duplicate", engine.BetRequest{Bettor: "dup", MatchID: "open", Outcome: 2, Stake: one}, domain.ErrDuplicateBet},
		{"anonymous", engine.BetRequest{MatchID: "open", Outcome: 1, Stake: one}, domain.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.eng.PlaceBet(f.ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	// nenhuma rejeição alterou o estado
	esc, err := f.eng.Escrow(f.ctx, "open")
	require.NoError(t, err)
	assert.EqualValues(t, one, esc.Balance)
	m, err := f.eng.Match(f.ctx, "open")
	require.NoError(t, err)
	assert.EqualValues(t, 1, m.TotalBets)
}

func TestPlaceBetCheckOrder(t *testing.T) {
	f := newFixture(t)
	f.openMatch("m1", 2)
	f.account("banned", 0)
	_, err := f.eng.SetRiskControls(f.ctx, authority, "banned", engine.RiskControls{Blacklisted: true})
	require.NoError(t, err)

	// acima do tier e bloqueado: o tier vem antes
	_, err = f.eng.PlaceBet(f.ctx, engine.BetRequest{Bettor: "banned", MatchID: "m1", Outcome: 1, Stake: 11 * one})
	require.ErrorIs(t, err, domain.ErrInsufficientKyc)

	// abaixo do mínimo e com outcome inválido: o outcome vem antes
	_, err = f.eng.PlaceBet(f.ctx, engine.BetRequest{Bettor: "banned", MatchID: "m1", Outcome: 9, Stake: 1})
	require.ErrorIs(t, err, domain.ErrInvalidOutcome)
}

func TestTierGating(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.UpdatePlatform(f.ctx, authority, engine.PlatformParams{
		Treasury: treasury, Oracle: oracle, FeeBps: 250, MinStake: 1, MaxStake: 1_000_000 * one,
	})
	require.NoError(t, err)
	f.openMatch("m1", 2)

	limits := f.eng.Config().TierLimits
	for tier := uint8(0); tier <= domain.MaxKYCTier; tier++ {
		owner := fmt.Sprintf("tier-%d", tier)
		f.account(owner, tier)
		limit := limits[tier]

		_, err := f.eng.PlaceBet(f.ctx, engine.BetRequest{Bettor: owner, MatchID: "m1", Outcome: 1, Stake: limit + 1})
		require.ErrorIs(t, err, domain.ErrInsufficientKyc, "tier %d", tier)

		b, err := f.eng.PlaceBet(f.ctx, engine.BetRequest{Bettor: owner, MatchID: "m1", Outcome: 1, Stake: limit})
		require.NoError(t, err, "tier %d", tier)
		assert.Equal(t, limit, b.Stake)
	}
}

func TestBettingWindowCloses(t *testing.T) {
	f := newFixture(t)
	closeAt := f.clock.Now().Add(10 * time.Minute)
	_, err := f.eng.CreateMatch(f.ctx, authority, engine.MatchParams{ID: "m1", Type: domain.MatchHumanVsHuman, Outcomes: 2, BetsCloseAt: closeAt})
	require.NoError(t, err)
	_, err = f.eng.OpenMatch(f.ctx, authority, "m1")
	require.NoError(t, err)
	f.account("alice", 1)
	f.account("bob", 1)

	f.bet("alice", "m1", 1, one)
	f.clock.Advance(10 * time.Minute)
	_, err = f.eng.PlaceBet(f.ctx, engine.BetRequest{Bettor: "bob", MatchID: "m1", Outcome: 1, Stake: one})
	require.ErrorIs(t, err, domain.ErrMatchNotOpen)
}

func TestStartMatchClosesBetting(t *testing.T) {
	f := newFixture(t)
	f.openMatch("m1", 2)
	f.account("alice", 1)
	_, err := f.eng.StartMatch(f.ctx, authority, "m1")
	require.NoError(t, err)

	_, err = f.eng.PlaceBet(f.ctx, engine.BetRequest{Bettor: "alice", MatchID: "m1", Outcome: 1, Stake: one})
	require.ErrorIs(t, err, domain.ErrMatchNotOpen)
}

func TestConcurrentPlaceBetKeepsEscrowBalanced(t *testing.T) {
	f := newFixture(t)
	f.openMatch("m1", 2)
	const n = 16
	for i := 0; i < n; i++ {
		f.account(fmt.Sprintf("u%d", i), 1)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		placed int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.eng.PlaceBet(f.ctx, engine.BetRequest{
				Bettor: fmt.Sprintf("u%d", i), MatchID: "m1", Outcome: uint8(1 + i%2), Stake: one,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				placed++
				return
			}
			assert.ErrorIs(t, err, domain.ErrConflict)
			assert.True(t, domain.IsRetryable(err))
		}(i)
	}
	wg.Wait()
	require.GreaterOrEqual(t, placed, 1)

	esc, err := f.eng.Escrow(f.ctx, "m1")
	require.NoError(t, err)
	assert.EqualValues(t, uint64(placed)*one, esc.Balance)

	rec, err := f.eng.Audit(f.ctx, "m1")
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assert.EqualValues(t, uint64(placed)*one, rec.PlacedStakeSum)
}
