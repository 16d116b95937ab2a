// Package engine orquestra contas, ciclo de vida das partidas, admissão de
// apostas e liquidação sobre um store.Store versionado.
//
// Toda mutação lê o estado, valida e grava um único ChangeSet. Quem perde a
// corrida recebe domain.ErrConflict e nada é gravado.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/store"
	"github.com/radieske/match-escrow/internal/ledger"
)

// Config reúne os parâmetros de negócio vindos de configuração.
type Config struct {
	// TierLimits[t] é o stake máximo por aposta para o tier de KYC t.
	TierLimits [domain.MaxKYCTier + 1]uint64
	// WithdrawalCooldown é o intervalo mínimo entre saques do mesmo usuário.
	WithdrawalCooldown time.Duration
	// CommitRetries limita as releituras internas após ErrConflict em operações
	// que só disputam registros compartilhados (plataforma, totais do usuário).
	CommitRetries int
	// KYCIssuers são as identidades, além da autoridade, que definem tiers de KYC.
	KYCIssuers []string
}

func DefaultConfig() Config {
	return Config{
		TierLimits:         [domain.MaxKYCTier + 1]uint64{100 * ledger.Unit, 1_000 * ledger.Unit, 10_000 * ledger.Unit, 100_000 * ledger.Unit},
		WithdrawalCooldown: 24 * time.Hour,
		CommitRetries:      3,
	}
}

// Validate exige limites de tier não decrescentes.
func (c Config) Validate() error {
	for t := 1; t < len(c.TierLimits); t++ {
		if c.TierLimits[t] < c.TierLimits[t-1] {
			return fmt.Errorf("tier %d limit %d below tier %d limit %d: %w",
				t, c.TierLimits[t], t-1, c.TierLimits[t-1], domain.ErrInvalidBounds)
		}
	}
	if c.WithdrawalCooldown < 0 || c.CommitRetries < 0 {
		return domain.ErrInvalidBounds
	}
	return nil
}

// Hooks são callbacks opcionais para métricas, no mesmo estilo dos workers.
type Hooks struct {
	BetPlaced   func(stake uint64)
	BetRejected func(kind string)
	Transition  func(to domain.MatchStatus)
	Settled     func(status domain.MatchStatus, refunded bool, fee uint64)
	Conflict    func(op string)
	StatsFailed func()
}

type Engine struct {
	store store.Store
	cfg   Config
	log   *zap.Logger
	sink  EventSink
	hooks Hooks
	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option        { return func(e *Engine) { e.log = l } }
func WithSink(s EventSink) Option            { return func(e *Engine) { e.sink = s } }
func WithHooks(h Hooks) Option               { return func(e *Engine) { e.hooks = h } }
func WithClock(now func() time.Time) Option  { return func(e *Engine) { e.now = now } }
func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

func New(st store.Store, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		store: st,
		cfg:   cfg,
		log:   zap.NewNop(),
		sink:  nopSink{},
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Config devolve a configuração efetiva.
func (e *Engine) Config() Config { return e.cfg }

// retry repete op enquanto ela falhar com ErrConflict, até CommitRetries vezes.
func (e *Engine) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= e.cfg.CommitRetries; attempt++ {
		if err = fn(); !isConflict(err) {
			return err
		}
		e.conflict(op)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func (e *Engine) conflict(op string) {
	e.log.Debug("version conflict", zap.String("op", op))
	if e.hooks.Conflict != nil {
		e.hooks.Conflict(op)
	}
}

func (e *Engine) rejected(op string, err error, fields ...zap.Field) {
	kind := domain.KindOf(err)
	e.log.Debug("operation rejected", append(fields, zap.String("op", op), zap.String("kind", kind), zap.Error(err))...)
	if op == "place_bet" && e.hooks.BetRejected != nil {
		e.hooks.BetRejected(kind)
	}
}
