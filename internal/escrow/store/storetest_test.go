package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/store"
)

// runStoreSuite exercita o contrato do Store; usado pela implementação em
// memória e pela Postgres.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("platform insert once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Platform(ctx)
		require.ErrorIs(t, err, domain.ErrPlatformNotInitialized)
		require.ErrorIs(t, err, domain.ErrNotFound)

		cs := &store.ChangeSet{Platform: samplePlatform()}
		require.NoError(t, s.Commit(ctx, cs))
		assert.EqualValues(t, 1, cs.Platform.Version)

		err = s.Commit(ctx, &store.ChangeSet{Platform: samplePlatform()})
		require.ErrorIs(t, err, domain.ErrPlatformExists)

		got, err := s.Platform(ctx)
		require.NoError(t, err)
		assert.Equal(t, "authority", got.Authority)
		assert.EqualValues(t, 250, got.FeeBps)
		assert.EqualValues(t, 1, got.Version)
	})

	t.Run("stale version conflicts and writes nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		m, e := seedMatch(t, s, "m-stale")

		fresh := m
		fresh.Status = domain.StatusOpen
		require.NoError(t, s.Commit(ctx, &store.ChangeSet{Matches: []domain.Match{fresh}}))

		// m ainda carrega a versão antiga; a escrow junto não pode ser gravada
		stale := m.Clone()
		stale.Status = domain.StatusCancelled
		e.Balance = 99
		err := s.Commit(ctx, &store.ChangeSet{Matches: []domain.Match{stale}, Escrows: []domain.Escrow{e}})
		require.ErrorIs(t, err, domain.ErrConflict)
		assert.True(t, domain.IsRetryable(err))

		got, err := s.Match(ctx, "m-stale")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOpen, got.Status)
		ge, err := s.Escrow(ctx, e.Address)
		require.NoError(t, err)
		assert.Zero(t, ge.Balance)
	})

	t.Run("bets keep admission order and reject duplicates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedMatch(t, s, "m-bets")

		for _, id := range []string{"b-3", "b-1", "b-2"} {
			b := domain.Bet{ID: id, Bettor: "user-" + id, MatchID: "m-bets", Outcome: 1, Stake: 10,
				Status: domain.BetPlaced, PlacedAt: time.Now().UTC()}
			require.NoError(t, s.Commit(ctx, &store.ChangeSet{Bets: []domain.Bet{b}}))
		}

		dup := domain.Bet{ID: "b-4", Bettor: "user-b-1", MatchID: "m-bets", Outcome: 2, Stake: 10,
			Status: domain.BetPlaced, PlacedAt: time.Now().UTC()}
		require.ErrorIs(t, s.Commit(ctx, &store.ChangeSet{Bets: []domain.Bet{dup}}), domain.ErrDuplicateBet)

		bets, err := s.BetsByMatch(ctx, "m-bets")
		require.NoError(t, err)
		require.Len(t, bets, 3)
		assert.Equal(t, "b-3", bets[0].ID)
		assert.Equal(t, "b-1", bets[1].ID)
		assert.Equal(t, "b-2", bets[2].ID)
		assert.Nil(t, bets[0].Payout)

		settled := bets[0]
		payout := uint64(25)
		settled.Status = domain.BetWon
		settled.Payout = &payout
		settled.SettledAt = time.Now().UTC()
		require.NoError(t, s.Commit(ctx, &store.ChangeSet{Bets: []domain.Bet{settled}}))

		got, err := s.Bet(ctx, "b-3")
		require.NoError(t, err)
		assert.Equal(t, domain.BetWon, got.Status)
		require.NotNil(t, got.Payout)
		assert.EqualValues(t, 25, *got.Payout)
		assert.EqualValues(t, 2, got.Version)
	})

	t.Run("match state reads match escrow and bets together", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		m, e := seedMatch(t, s, "m-state")

		b := domain.Bet{ID: "b-1", Bettor: "alice", MatchID: "m-state", Outcome: 1, Stake: 10,
			Status: domain.BetPlaced, PlacedAt: time.Now().UTC()}
		m.Pools[0] = 10
		e.Balance = 10
		require.NoError(t, s.Commit(ctx, &store.ChangeSet{
			Matches: []domain.Match{m}, Escrows: []domain.Escrow{e}, Bets: []domain.Bet{b},
		}))

		st, err := s.MatchState(ctx, "m-state")
		require.NoError(t, err)
		assert.EqualValues(t, 2, st.Match.Version)
		assert.EqualValues(t, 10, st.Match.Pools[0])
		assert.EqualValues(t, 10, st.Escrow.Balance)
		require.Len(t, st.Bets, 1)
		assert.Equal(t, "b-1", st.Bets[0].ID)

		_, err = s.MatchState(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrMatchNotFound)
	})

	t.Run("account insert and update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		addr := domain.UserAddress("alice")
		a := domain.UserAccount{Owner: "alice", Address: addr, KYCTier: 2, Region: "BR",
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		cs := &store.ChangeSet{Accounts: []domain.UserAccount{a}}
		require.NoError(t, s.Commit(ctx, cs))
		require.ErrorIs(t, s.Commit(ctx, &store.ChangeSet{Accounts: []domain.UserAccount{a}}), domain.ErrAccountExists)

		upd := cs.Accounts[0]
		upd.TotalWagered = 1_000_000_000_000
		upd.Blacklisted = true
		require.NoError(t, s.Commit(ctx, &store.ChangeSet{Accounts: []domain.UserAccount{upd}}))

		got, err := s.Account(ctx, addr)
		require.NoError(t, err)
		assert.True(t, got.Blacklisted)
		assert.EqualValues(t, 1_000_000_000_000, got.TotalWagered)
		assert.True(t, got.LastWithdrawalAt.IsZero())

		_, err = s.Account(ctx, domain.UserAddress("bob"))
		require.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("concurrent commits on one version admit a single winner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		m, _ := seedMatch(t, s, "m-race")

		const n = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok, confl int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c := m.Clone()
				c.Pools[0] += uint64(i + 1)
				err := s.Commit(ctx, &store.ChangeSet{Matches: []domain.Match{c}})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else if assert.ErrorIs(t, err, domain.ErrConflict) {
					confl++
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, confl)
	})
}

func samplePlatform() *domain.Platform {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Platform{
		Authority: "authority", Treasury: "treasury", FeeBps: 250,
		MinStake: 1, MaxStake: 1_000_000, CreatedAt: now, UpdatedAt: now,
	}
}

func seedMatch(t *testing.T, s store.Store, id string) (domain.Match, domain.Escrow) {
	t.Helper()
	m := domain.Match{
		ID: id, Type: domain.MatchHumanVsAI, Status: domain.StatusCreated,
		Pools: []uint64{0, 0}, Creator: "authority", CreatedAt: time.Now().UTC(),
	}
	e := domain.Escrow{Address: domain.EscrowAddress(id), MatchID: id, Locked: true}
	cs := &store.ChangeSet{Matches: []domain.Match{m}, Escrows: []domain.Escrow{e}}
	require.NoError(t, s.Commit(context.Background(), cs))
	return cs.Matches[0], cs.Escrows[0]
}
