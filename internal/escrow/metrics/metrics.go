package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/match-escrow/internal/escrow/domain"
	"github.com/radieske/match-escrow/internal/escrow/engine"
	"github.com/radieske/match-escrow/internal/ledger"
)

// Escrow agrupa os contadores do engine. Valores monetários são expostos em
// unidades de exibição (1.0 = ledger.Unit).
type Escrow struct {
	BetsPlaced   prometheus.Counter
	StakeVolume  prometheus.Counter
	BetsRejected *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	Settlements  *prometheus.CounterVec
	FeesCharged  prometheus.Counter
	Conflicts    *prometheus.CounterVec
	StatsFailed  prometheus.Counter
}

func NewEscrow(reg prometheus.Registerer) *Escrow {
	m := &Escrow{
		BetsPlaced:   prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_bets_placed_total", Help: "apostas admitidas"}),
		StakeVolume:  prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_stake_volume_total", Help: "volume apostado (unidades)"}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_bets_rejected_total", Help: "apostas rejeitadas por motivo"}, []string{"kind"}),
		Transitions:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_match_transitions_total", Help: "transições de status"}, []string{"to"}),
		Settlements:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_settlements_total", Help: "liquidações"}, []string{"status", "refunded"}),
		FeesCharged:  prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_fees_total", Help: "taxas cobradas (unidades)"}),
		Conflicts:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_version_conflicts_total", Help: "conflitos de versão por operação"}, []string{"op"}),
		StatsFailed:  prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_stats_failures_total", Help: "falhas ao atualizar totais de usuário"}),
	}
	reg.MustRegister(m.BetsPlaced, m.StakeVolume, m.BetsRejected, m.Transitions, m.Settlements, m.FeesCharged, m.Conflicts, m.StatsFailed)
	return m
}

// Hooks liga os contadores aos callbacks do engine.
func (m *Escrow) Hooks() engine.Hooks {
	return engine.Hooks{
		BetPlaced: func(stake uint64) {
			m.BetsPlaced.Inc()
			m.StakeVolume.Add(units(stake))
		},
		BetRejected: func(kind string) { m.BetsRejected.WithLabelValues(kind).Inc() },
		Transition:  func(to domain.MatchStatus) { m.Transitions.WithLabelValues(string(to)).Inc() },
		Settled: func(status domain.MatchStatus, refunded bool, fee uint64) {
			r := "false"
			if refunded {
				r = "true"
			}
			m.Settlements.WithLabelValues(string(status), r).Inc()
			m.FeesCharged.Add(units(fee))
		},
		Conflict:    func(op string) { m.Conflicts.WithLabelValues(op).Inc() },
		StatsFailed: func() { m.StatsFailed.Inc() },
	}
}

func units(v uint64) float64 { return float64(v) / float64(ledger.Unit) }
