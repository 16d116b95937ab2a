package domain

import "errors"

// Class agrupa os erros por tipo de reação esperada do chamador:
// corrigir a entrada, não tentar de novo, abortar ou reler e repetir.
type Class string

const (
	ClassAdmission     Class = "admission"
	ClassAuthorization Class = "authorization"
	ClassArithmetic    Class = "arithmetic"
	ClassConcurrency   Class = "concurrency"
	ClassNotFound      Class = "not_found"
	ClassInternal      Class = "internal"
)

// Erros de admissão (corrigíveis pelo chamador, nenhum estado alterado)
var (
	ErrMatchNotOpen       = errors.New("match not open for betting")
	ErrBelowMinimum       = errors.New("stake below platform minimum")
	ErrAboveMaximum       = errors.New("stake above platform maximum")
	ErrInsufficientKyc    = errors.New("stake exceeds kyc tier limit")
	ErrAccountBlacklisted = errors.New("account blacklisted")
	ErrRiskLimitExceeded  = errors.New("stake exceeds risk limit")
	ErrDuplicateBet       = errors.New("bettor already has a bet on this match")
	ErrInvalidOutcome     = errors.New("invalid outcome")
	ErrInvalidTier        = errors.New("invalid kyc tier")
	ErrAccountExists      = errors.New("account already exists")
	ErrPlatformExists     = errors.New("platform already initialized")
	ErrCooldownActive     = errors.New("withdrawal cooldown active")
	ErrInvalidFee         = errors.New("fee basis points out of range")
	ErrInvalidBounds      = errors.New("invalid stake bounds")
	ErrInvalidMatch       = errors.New("invalid match parameters")
)

// Erros de autorização / uso indevido
var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// Erros aritméticos: abortam a operação sem escrita parcial
var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrInvariantViolation = errors.New("escrow invariant violated")
)

// Erros de concorrência: reler e tentar de novo
var (
	ErrConflict         = errors.New("version conflict")
	ErrAlreadyFinalized = errors.New("match already settled")
)

var (
	ErrNotFound               = errors.New("not found")
	ErrMatchNotFound          = wrapNotFound("match not found")
	ErrAccountNotFound        = wrapNotFound("account not found")
	ErrBetNotFound            = wrapNotFound("bet not found")
	ErrEscrowNotFound         = wrapNotFound("escrow not found")
	ErrPlatformNotInitialized = wrapNotFound("platform not initialized")
)

type notFoundError struct{ msg string }

func (e *notFoundError) Error() string        { return e.msg }
func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

func wrapNotFound(msg string) error { return &notFoundError{msg: msg} }

type kindInfo struct {
	kind  string
	class Class
}

// ordem importa: o primeiro match em errors.Is vence
var kinds = []struct {
	err  error
	info kindInfo
}{
	{ErrMatchNotOpen, kindInfo{"MatchNotOpen", ClassAdmission}},
	{ErrBelowMinimum, kindInfo{"BelowMinimum", ClassAdmission}},
	{ErrAboveMaximum, kindInfo{"AboveMaximum", ClassAdmission}},
	{ErrInsufficientKyc, kindInfo{"InsufficientKyc", ClassAdmission}},
	{ErrAccountBlacklisted, kindInfo{"AccountBlacklisted", ClassAdmission}},
	{ErrRiskLimitExceeded, kindInfo{"RiskLimitExceeded", ClassAdmission}},
	{ErrDuplicateBet, kindInfo{"DuplicateBet", ClassAdmission}},
	{ErrInvalidOutcome, kindInfo{"InvalidOutcome", ClassAdmission}},
	{ErrInvalidTier, kindInfo{"InvalidTier", ClassAdmission}},
	{ErrAccountExists, kindInfo{"AccountExists", ClassAdmission}},
	{ErrPlatformExists, kindInfo{"PlatformExists", ClassAdmission}},
	{ErrCooldownActive, kindInfo{"CooldownActive", ClassAdmission}},
	{ErrInvalidFee, kindInfo{"InvalidFee", ClassAdmission}},
	{ErrInvalidBounds, kindInfo{"InvalidBounds", ClassAdmission}},
	{ErrInvalidMatch, kindInfo{"InvalidMatch", ClassAdmission}},
	{ErrUnauthorized, kindInfo{"Unauthorized", ClassAuthorization}},
	{ErrInvalidStatusTransition, kindInfo{"InvalidStatusTransition", ClassAuthorization}},
	{ErrArithmeticOverflow, kindInfo{"ArithmeticOverflow", ClassArithmetic}},
	{ErrDivisionByZero, kindInfo{"DivisionByZero", ClassArithmetic}},
	{ErrInvariantViolation, kindInfo{"InvariantViolation", ClassArithmetic}},
	{ErrConflict, kindInfo{"Conflict", ClassConcurrency}},
	{ErrAlreadyFinalized, kindInfo{"AlreadyFinalized", ClassConcurrency}},
	{ErrMatchNotFound, kindInfo{"MatchNotFound", ClassNotFound}},
	{ErrAccountNotFound, kindInfo{"AccountNotFound", ClassNotFound}},
	{ErrBetNotFound, kindInfo{"BetNotFound", ClassNotFound}},
	{ErrEscrowNotFound, kindInfo{"EscrowNotFound", ClassNotFound}},
	{ErrPlatformNotInitialized, kindInfo{"PlatformNotInitialized", ClassNotFound}},
	{ErrNotFound, kindInfo{"NotFound", ClassNotFound}},
}

func lookup(err error) kindInfo {
	if err == nil {
		return kindInfo{}
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.info
		}
	}
	return kindInfo{"Internal", ClassInternal}
}

// KindOf retorna o nome estável do erro (ex: "MatchNotOpen"), usado na API.
func KindOf(err error) string { return lookup(err).kind }

// ClassOf retorna a classe do erro.
func ClassOf(err error) Class { return lookup(err).class }

// IsRetryable indica se o chamador deve reler o estado e tentar de novo.
func IsRetryable(err error) bool { return ClassOf(err) == ClassConcurrency }
