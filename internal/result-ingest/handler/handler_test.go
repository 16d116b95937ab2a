package handler_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/engine"
	"github.com/radieske/match-escrow/internal/escrow/store"
	"github.com/radieske/match-escrow/internal/ledger"
	"github.com/radieske/match-escrow/internal/result-ingest/handler"
	"github.com/radieske/match-escrow/pkg/contracts/events"
)

const (
	authority = "authority"
	oracle    = "oracle"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	ctx := context.Background()
	var seq atomic.Int64
	eng, err := engine.New(store.NewMemory(), engine.DefaultConfig(),
		engine.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }))
	require.NoError(t, err)
	_, err = eng.InitializePlatform(ctx, authority, engine.PlatformParams{
		Treasury: "treasury", Oracle: oracle, FeeBps: 100, MinStake: 1, MaxStake: 100 * ledger.Unit,
	})
	require.NoError(t, err)

	_, err = eng.CreateMatch(ctx, authority, engine.MatchParams{ID: "m1", Type: domain.MatchAIVsAI, Outcomes: 2})
	require.NoError(t, err)
	_, err = eng.OpenMatch(ctx, authority, "m1")
	require.NoError(t, err)
	for i, o := range []uint8{1, 2} {
		owner := fmt.Sprintf("u%d", i)
		_, err = eng.CreateUserAccount(ctx, authority, owner, 1, "")
		require.NoError(t, err)
		_, err = eng.PlaceBet(ctx, engine.BetRequest{Bettor: owner, MatchID: "m1", Outcome: o, Stake: ledger.Unit})
		require.NoError(t, err)
	}
	_, err = eng.StartMatch(ctx, authority, "m1")
	require.NoError(t, err)
	return eng
}

func result(winner uint8) events.MatchCompleted {
	return events.MatchCompleted{MatchID: "m1", Winner: winner, ProofRef: "replay://m1", Source: "test", Ts: time.Now()}
}

func TestCompleteAndFinalize(t *testing.T) {
	eng := newEngine(t)
	h := &handler.Handler{Engine: eng, Oracle: oracle, Authority: authority, AutoFinalize: true}
	ctx := context.Background()

	out, err := h.Handle(ctx, result(2))
	require.NoError(t, err)
	assert.Equal(t, handler.OutcomeFinalized, out)

	m, err := eng.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinalized, m.Status)
	assert.Equal(t, uint8(2), m.Winner)

	out, err = h.Handle(ctx, result(2))
	require.NoError(t, err)
	assert.Equal(t, handler.OutcomeReplay, out)
}

func TestCompleteOnlyThenReplayFinalizes(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	h := &handler.Handler{Engine: eng, Oracle: oracle, Authority: authority}

	out, err := h.Handle(ctx, result(1))
	require.NoError(t, err)
	assert.Equal(t, handler.OutcomeCompleted, out)

	// reentrega com auto-finalize ligado retoma a liquidação
	h.AutoFinalize = true
	out, err = h.Handle(ctx, result(1))
	require.NoError(t, err)
	assert.Equal(t, handler.OutcomeFinalized, out)
}

func TestRejectedResults(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	h := &handler.Handler{Engine: eng, Oracle: oracle, Authority: authority}

	_, err := h.Handle(ctx, events.MatchCompleted{MatchID: "m1", Winner: 1})
	assert.ErrorIs(t, err, handler.ErrInvalidEvent)

	_, err = h.Handle(ctx, result(3))
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)

	_, err = h.Handle(ctx, result(1))
	require.NoError(t, err)
	_, err = h.Handle(ctx, result(2))
	assert.ErrorIs(t, err, handler.ErrResultMismatch)

	_, err = (&handler.Handler{Engine: eng, Oracle: "someone", Authority: authority}).Handle(ctx, events.MatchCompleted{MatchID: "m1", Winner: 1, ProofRef: "p"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = h.Handle(ctx, events.MatchCompleted{MatchID: "ghost", Winner: 1, ProofRef: "p"})
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)
}

// flaky devolve ErrConflict nas primeiras chamadas.
type flaky struct {
	handler.Engine
	conflicts int
	calls     int
}

func (f *flaky) CompleteMatch(ctx context.Context, caller, id string, winner uint8, proof string) (domain.Match, error) {
	f.calls++
	if f.calls <= f.conflicts {
		return domain.Match{}, domain.ErrConflict
	}
	return f.Engine.CompleteMatch(ctx, caller, id, winner, proof)
}

func TestRetriesConflicts(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	f := &flaky{Engine: eng, conflicts: 2}
	h := &handler.Handler{Engine: f, Oracle: oracle, Authority: authority, Retries: 3, Backoff: time.Millisecond}
	out, err := h.Handle(ctx, result(1))
	require.NoError(t, err)
	assert.Equal(t, handler.OutcomeCompleted, out)
	assert.Equal(t, 3, f.calls)

	f = &flaky{Engine: eng, conflicts: 10}
	h.Engine = f
	_, err = h.Handle(ctx, result(1))
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 4, f.calls)
}
