package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTable(t *testing.T) {
	all := []MatchStatus{
		StatusCreated, StatusOpen, StatusInProgress,
		StatusCompleted, StatusFinalized, StatusCancelled,
	}
	allowed := map[[2]MatchStatus]bool{
		{StatusCreated, StatusOpen}:         true,
		{StatusCreated, StatusCancelled}:    true,
		{StatusOpen, StatusInProgress}:      true,
		{StatusOpen, StatusCancelled}:       true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusCancelled}: true,
		{StatusCompleted, StatusFinalized}:  true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]MatchStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err       error
		kind      string
		class     Class
		retryable bool
	}{
		{ErrMatchNotOpen, "MatchNotOpen", ClassAdmission, false},
		{fmt.Errorf("wrapped: %w", ErrInsufficientKyc), "InsufficientKyc", ClassAdmission, false},
		{ErrUnauthorized, "Unauthorized", ClassAuthorization, false},
		{ErrInvalidStatusTransition, "InvalidStatusTransition", ClassAuthorization, false},
		{ErrArithmeticOverflow, "ArithmeticOverflow", ClassArithmetic, false},
		{ErrConflict, "Conflict", ClassConcurrency, true},
		{ErrAlreadyFinalized, "AlreadyFinalized", ClassConcurrency, true},
		{ErrMatchNotFound, "MatchNotFound", ClassNotFound, false},
		{errors.New("boom"), "Internal", ClassInternal, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err), tc.err.Error())
		assert.Equal(t, tc.class, ClassOf(tc.err), tc.err.Error())
		assert.Equal(t, tc.retryable, IsRetryable(tc.err), tc.err.Error())
	}
	require.ErrorIs(t, ErrBetNotFound, ErrNotFound)
	assert.NotErrorIs(t, ErrBetNotFound, ErrMatchNotFound)
}

func TestDeriveAddress(t *testing.T) {
	a := UserAddress("alice")
	assert.Equal(t, a, UserAddress("alice"))
	assert.Len(t, string(a), 64)
	assert.NotEqual(t, a, EscrowAddress("alice"))
	assert.NotEqual(t, UserAddress("alice"), UserAddress("bob"))
}

func TestMatchHelpers(t *testing.T) {
	m := Match{Pools: []uint64{5, 7}}
	assert.False(t, m.ValidOutcome(0))
	assert.True(t, m.ValidOutcome(2))
	assert.False(t, m.ValidOutcome(3))
	assert.EqualValues(t, 7, m.Pool(2))
	assert.Zero(t, m.Pool(3))

	c := m.Clone()
	c.Pools[0] = 99
	assert.EqualValues(t, 5, m.Pools[0])
}
